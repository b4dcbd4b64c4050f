package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/sakif/storefront/internal/model"
	"github.com/sakif/storefront/internal/repository"
)

// Accounts is the part of the account registry the session depends on.
type Accounts interface {
	Register(ctx context.Context, data model.RegisterData) (*model.Account, error)
	Authenticate(ctx context.Context, email, password string) (*model.Account, error)
}

// authSnapshot is the persisted session under "auth-store". The envelope
// keeps profiles written by the browser storefront readable.
type authSnapshot struct {
	State   authState `json:"state"`
	Version int       `json:"version"`
}

type authState struct {
	User *model.Account `json:"user"`
}

// SessionManager owns the process's single signed-in identity and keeps the
// cart store bound to it.
//
// Whenever the current account changes (register, login, logout, restore at
// startup) the cart store is rebound in the same call, so the active cart is
// always the current account's cart.
type SessionManager struct {
	mu       sync.Mutex
	accounts Accounts
	cart     *CartStore
	store    repository.KeyValueStore
	logger   *slog.Logger

	current *model.Account
	loading atomic.Bool
}

// NewSessionManager builds the session and restores the previously signed-in
// account, if one was persisted, together with its cart.
func NewSessionManager(ctx context.Context, accounts Accounts, cart *CartStore, store repository.KeyValueStore, logger *slog.Logger) *SessionManager {
	s := &SessionManager{
		accounts: accounts,
		cart:     cart,
		store:    store,
		logger:   logger,
	}
	s.restore(ctx)
	return s
}

func (s *SessionManager) restore(ctx context.Context) {
	var snap authSnapshot
	ok, err := repository.GetJSON(ctx, s.store, repository.AuthStoreKey, &snap)
	if err != nil {
		s.logger.Warn("persisted session unreadable; starting signed out", slog.String("error", err.Error()))
		return
	}
	if !ok || snap.State.User == nil || snap.State.User.ID == "" {
		return
	}

	s.current = snap.State.User
	s.cart.Bind(ctx, s.current.ID)
	s.logger.Info("session restored", slog.String("accountID", s.current.ID))
}

// Register creates an account and signs it in. On failure the session is
// left exactly as it was.
func (s *SessionManager) Register(ctx context.Context, data model.RegisterData) (res Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer s.beginLoading()()
	defer s.recoverInto(&res, "Registration failed. Please try again.")

	account, err := s.accounts.Register(ctx, data)
	if err != nil {
		s.logger.Info("registration rejected", slog.String("reason", err.Error()))
		return failure(err, "Registration failed. Please try again.")
	}

	s.signIn(ctx, account)
	return success(account, "Registration successful", "Registration successful! Welcome aboard!")
}

// Login authenticates credentials and signs the account in.
func (s *SessionManager) Login(ctx context.Context, creds model.Credentials) (res Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer s.beginLoading()()
	defer s.recoverInto(&res, "Login failed. Please try again.")

	account, err := s.accounts.Authenticate(ctx, creds.Email, creds.Password)
	if err != nil {
		s.logger.Info("login rejected", slog.String("reason", err.Error()))
		return failure(err, "Login failed. Please try again.")
	}

	s.signIn(ctx, account)
	return success(account, "Login successful", fmt.Sprintf("Welcome back, %s!", account.FirstName))
}

// Logout signs out and empties the in-memory cart. The account's persisted
// cart is kept for its next login.
func (s *SessionManager) Logout(ctx context.Context) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current
	s.current = nil
	s.cart.Unbind()
	s.persist(ctx)

	if prev != nil {
		s.logger.Info("signed out", slog.String("accountID", prev.ID))
	}
	return success(nil, "Logged out successfully", "")
}

// IsAuthenticated reports whether an account is signed in.
func (s *SessionManager) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// CurrentAccount returns a copy of the signed-in account.
func (s *SessionManager) CurrentAccount() (*model.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, false
	}
	a := *s.current
	return &a, true
}

// DisplayName is "First Last" of the signed-in account, or "".
func (s *SessionManager) DisplayName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.DisplayName()
}

// IsLoading is true while a register or login call is in progress.
func (s *SessionManager) IsLoading() bool {
	return s.loading.Load()
}

// Cart exposes the cart store bound to this session.
func (s *SessionManager) Cart() *CartStore {
	return s.cart
}

func (s *SessionManager) signIn(ctx context.Context, account *model.Account) {
	s.current = account
	s.cart.Bind(ctx, account.ID)
	s.persist(ctx)
	s.logger.Info("signed in", slog.String("accountID", account.ID))
}

// persist writes the current account to "auth-store". A failed write only
// costs the restore on next start, so it is logged and otherwise ignored.
func (s *SessionManager) persist(ctx context.Context) {
	snap := authSnapshot{State: authState{User: s.current}}
	if err := repository.SetJSON(ctx, s.store, repository.AuthStoreKey, snap); err != nil {
		s.logger.Warn("persisting session failed", slog.String("error", err.Error()))
	}
}

// beginLoading raises the loading flag and returns the func that lowers it.
func (s *SessionManager) beginLoading() func() {
	s.loading.Store(true)
	return func() { s.loading.Store(false) }
}

// recoverInto turns a panic inside register/login into a failed Result.
func (s *SessionManager) recoverInto(res *Result, msg string) {
	if r := recover(); r != nil {
		s.logger.Error("session operation panicked", slog.Any("panic", r))
		*res = Result{Kind: KindInternal, Message: msg}
	}
}
