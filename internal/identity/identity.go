// Package identity is the boundary to the external identity provider: the
// managed service that owns authentication, password storage and bearer
// credentials. This service only creates and deletes accounts there and
// verifies the tokens it issues.
package identity

import (
	"context"
	"errors"
	"time"
)

// ErrAccountNotFound is returned when no account exists for a UID.
var ErrAccountNotFound = errors.New("account not found")

// ErrEmailTaken is returned when creating an account with an email that is
// already registered. Email uniqueness is enforced by the provider.
var ErrEmailTaken = errors.New("email already registered")

// ErrInvalidToken is returned when a bearer token fails verification.
var ErrInvalidToken = errors.New("invalid token")

// Account is the identity-provider record for a principal.
type Account struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewAccount is the request to create an identity-provider account.
type NewAccount struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

// Provider performs privileged account administration against the identity
// provider. Every call is a network operation and honors ctx cancellation.
type Provider interface {
	// CreateAccount registers a new account and returns the generated record.
	// Returns ErrEmailTaken if the email is already registered.
	CreateAccount(ctx context.Context, req NewAccount) (*Account, error)
	// DeleteAccount removes the account, or returns ErrAccountNotFound.
	DeleteAccount(ctx context.Context, uid string) error
	// GetAccount fetches a single account, or returns ErrAccountNotFound.
	GetAccount(ctx context.Context, uid string) (*Account, error)
	// ListAccounts returns every account, for cross-store reconciliation.
	ListAccounts(ctx context.Context) ([]Account, error)
}

// Claims are the verified fields extracted from a bearer token.
type Claims struct {
	UID   string
	Email string
}

// Verifier validates bearer tokens issued by the identity provider.
type Verifier interface {
	// VerifyToken returns the token's claims, or ErrInvalidToken.
	VerifyToken(ctx context.Context, token string) (*Claims, error)
}
