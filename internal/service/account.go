// Package service contains the storefront's state core: the account
// registry, the cart store and the session manager that ties them together.
//
//	Handler (HTTP) → SessionManager → AccountRegistry → KeyValueStore
//	               ↘ CartStore ─────────────────────↗
//
// None of these types know about HTTP. They are constructed once per process
// in the server's composition root and passed explicitly to their consumers.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/storefront/internal/apperror"
	"github.com/sakif/storefront/internal/auth"
	"github.com/sakif/storefront/internal/model"
	"github.com/sakif/storefront/internal/repository"
)

const (
	MinUsernameLength = 3
	MinPasswordLength = 6
)

// emailPattern is the basic local@domain.tld shape.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// PasswordHasher turns a submitted password into its stored form and checks a
// submitted password against it. Verify returns auth.ErrPasswordMismatch on
// a wrong password.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(stored, plaintext string) error
}

// AccountRegistry owns the durable account list stored under "users".
type AccountRegistry struct {
	store     repository.KeyValueStore
	passwords PasswordHasher
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// RegistryOption customises an AccountRegistry.
type RegistryOption func(*AccountRegistry)

// WithClock overrides the createdAt source.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *AccountRegistry) { r.now = now }
}

// WithIDGenerator overrides account id allocation.
func WithIDGenerator(newID func() string) RegistryOption {
	return func(r *AccountRegistry) { r.newID = newID }
}

// NewAccountRegistry creates a registry. A nil hasher stores passwords verbatim.
func NewAccountRegistry(store repository.KeyValueStore, passwords PasswordHasher, logger *slog.Logger, opts ...RegistryOption) *AccountRegistry {
	if passwords == nil {
		passwords = auth.PlainPasswords{}
	}
	r := &AccountRegistry{
		store:     store,
		passwords: passwords,
		logger:    logger,
		now:       time.Now,
		newID:     func() string { return "user_" + xid.New().String() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register validates data, creates the account and its empty cart, and
// returns the stored account.
//
// Checks run in a fixed order and the first failure wins, so the user always
// sees one message at a time:
// firstName → lastName → username → username length → email → email shape →
// password → password length → uniqueness.
func (r *AccountRegistry) Register(ctx context.Context, data model.RegisterData) (*model.Account, error) {
	if err := validateRegistration(data); err != nil {
		return nil, err
	}

	email := normalizeEmail(data.Email)
	username := strings.TrimSpace(data.Username)

	// Unlike lookups, registration must not treat an unreadable list as empty:
	// writing the new account back would wipe every existing one.
	accounts, err := r.load(ctx)
	if err != nil {
		return nil, apperror.Persistence("Registration failed. Please try again.", err)
	}

	for _, a := range accounts {
		if normalizeEmail(a.Email) == email || a.Username == username {
			return nil, apperror.Conflict("User with this email or username already exists")
		}
	}

	stored, err := r.passwords.Hash(data.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	account := model.Account{
		ID:        r.newID(),
		FirstName: strings.TrimSpace(data.FirstName),
		LastName:  strings.TrimSpace(data.LastName),
		Username:  username,
		Email:     email,
		Password:  stored,
		Address:   strings.TrimSpace(data.Address),
		CreatedAt: r.now().UTC(),
	}

	accounts = append(accounts, account)
	if err := repository.SetJSON(ctx, r.store, repository.UsersKey, accounts); err != nil {
		return nil, apperror.Persistence("Registration failed. Please try again.", err)
	}

	if err := repository.SetJSON(ctx, r.store, repository.CartKey(account.ID), []model.CartLine{}); err != nil {
		// The account exists; the cart store treats a missing slot as empty.
		r.logger.Warn("initialising empty cart failed",
			slog.String("accountID", account.ID),
			slog.String("error", err.Error()),
		)
	}

	r.logger.Info("account registered",
		slog.String("accountID", account.ID),
		slog.String("username", account.Username),
	)

	return &account, nil
}

// Authenticate returns the account whose email (case-insensitive, trimmed)
// and password match. Unknown emails and wrong passwords produce the same
// generic error.
func (r *AccountRegistry) Authenticate(ctx context.Context, email, password string) (*model.Account, error) {
	if strings.TrimSpace(email) == "" {
		return nil, apperror.ValidationFailed("email", "Email is required")
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "Password is required")
	}

	account, err := r.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.InvalidCredentials()
		}
		return nil, err
	}

	if err := r.passwords.Verify(account.Password, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			r.logger.Warn("password verification failed",
				slog.String("accountID", account.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, apperror.InvalidCredentials()
	}

	return account, nil
}

// FindByEmail looks an account up by case-insensitive, trimmed email.
func (r *AccountRegistry) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	email = normalizeEmail(email)
	for _, a := range r.accounts(ctx) {
		if normalizeEmail(a.Email) == email {
			return &a, nil
		}
	}
	return nil, apperror.NotFound("account", email)
}

// FindByID looks an account up by id.
func (r *AccountRegistry) FindByID(ctx context.Context, id string) (*model.Account, error) {
	for _, a := range r.accounts(ctx) {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, apperror.NotFound("account", id)
}

// Count returns the number of registered accounts.
func (r *AccountRegistry) Count(ctx context.Context) int {
	return len(r.accounts(ctx))
}

// accounts is the degrading read: storage failures and corrupt data read as
// an empty list.
func (r *AccountRegistry) accounts(ctx context.Context) []model.Account {
	accounts, err := r.load(ctx)
	if err != nil {
		r.logger.Warn("account list unreadable; treating as empty", slog.String("error", err.Error()))
		return nil
	}
	return accounts
}

func (r *AccountRegistry) load(ctx context.Context) ([]model.Account, error) {
	var accounts []model.Account
	if _, err := repository.GetJSON(ctx, r.store, repository.UsersKey, &accounts); err != nil {
		return nil, fmt.Errorf("service/account: loading accounts: %w", err)
	}
	return accounts, nil
}

func validateRegistration(d model.RegisterData) error {
	switch {
	case strings.TrimSpace(d.FirstName) == "":
		return apperror.ValidationFailed("firstName", "First name is required")
	case strings.TrimSpace(d.LastName) == "":
		return apperror.ValidationFailed("lastName", "Last name is required")
	case strings.TrimSpace(d.Username) == "":
		return apperror.ValidationFailed("username", "Username is required")
	case len([]rune(strings.TrimSpace(d.Username))) < MinUsernameLength:
		return apperror.ValidationFailed("username",
			fmt.Sprintf("Username must be at least %d characters long", MinUsernameLength))
	case strings.TrimSpace(d.Email) == "":
		return apperror.ValidationFailed("email", "Email is required")
	case !emailPattern.MatchString(strings.TrimSpace(d.Email)):
		return apperror.ValidationFailed("email", "Please enter a valid email address")
	case d.Password == "":
		return apperror.ValidationFailed("password", "Password is required")
	case len([]rune(d.Password)) < MinPasswordLength:
		return apperror.ValidationFailed("password",
			fmt.Sprintf("Password must be at least %d characters long", MinPasswordLength))
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
