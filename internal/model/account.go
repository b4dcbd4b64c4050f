// Package model defines the data structures shared by the storefront core.
// The json tags are the persisted wire format, so renaming one breaks every
// account and cart already stored.
package model

import "time"

// Account is a registered storefront identity.
//
// Email is stored lowercased and trimmed; Username is stored trimmed and is
// compared exactly. Password holds whatever the configured password policy
// produced: the plaintext itself by default, or a bcrypt hash.
type Account struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  string    `json:"password"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// DisplayName is "First Last", the label shown next to the cart icon.
func (a *Account) DisplayName() string {
	if a == nil {
		return ""
	}
	return a.FirstName + " " + a.LastName
}

// PublicAccount is an Account without its credential, safe to hand to the
// presentation layer.
type PublicAccount struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (a *Account) Public() PublicAccount {
	return PublicAccount{
		ID:        a.ID,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Username:  a.Username,
		Email:     a.Email,
		Address:   a.Address,
		CreatedAt: a.CreatedAt,
	}
}

// RegisterData is the registration form as submitted.
type RegisterData struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Address   string `json:"address,omitempty"`
}

// Credentials is the login form as submitted.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
