package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// LocalProvider is an in-process identity provider for development and
// tests, standing in for the managed service. Accounts live in memory and
// passwords are bcrypt-hashed. It can mint HS256 tokens that the JWTVerifier
// accepts, so a full login round-trip works against a local stack.
type LocalProvider struct {
	mu         sync.Mutex
	byUID      map[string]*localAccount
	byEmail    map[string]string // email -> uid
	bcryptCost int
	secret     []byte
	issuer     string
}

type localAccount struct {
	account      Account
	passwordHash string
}

// NewLocalProvider creates an empty local provider. The secret and issuer
// are used for token minting and may be empty if MintToken is never called.
func NewLocalProvider(bcryptCost int, secret []byte, issuer string) *LocalProvider {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &LocalProvider{
		byUID:      make(map[string]*localAccount),
		byEmail:    make(map[string]string),
		bcryptCost: bcryptCost,
		secret:     secret,
		issuer:     issuer,
	}
}

// CreateAccount registers a new account with a generated UID.
func (p *LocalProvider) CreateAccount(_ context.Context, req NewAccount) (*Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), p.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byEmail[req.Email]; exists {
		return nil, ErrEmailTaken
	}

	account := Account{
		UID:         uuid.New().String(),
		Email:       req.Email,
		DisplayName: req.DisplayName,
		CreatedAt:   time.Now().UTC(),
	}
	p.byUID[account.UID] = &localAccount{account: account, passwordHash: string(hash)}
	p.byEmail[account.Email] = account.UID

	return &account, nil
}

// DeleteAccount removes the account for uid.
func (p *LocalProvider) DeleteAccount(_ context.Context, uid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	la, ok := p.byUID[uid]
	if !ok {
		return ErrAccountNotFound
	}
	delete(p.byUID, uid)
	delete(p.byEmail, la.account.Email)
	return nil
}

// GetAccount fetches the account for uid.
func (p *LocalProvider) GetAccount(_ context.Context, uid string) (*Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	la, ok := p.byUID[uid]
	if !ok {
		return nil, ErrAccountNotFound
	}
	account := la.account
	return &account, nil
}

// ListAccounts returns every account.
func (p *LocalProvider) ListAccounts(_ context.Context) ([]Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	accounts := make([]Account, 0, len(p.byUID))
	for _, la := range p.byUID {
		accounts = append(accounts, la.account)
	}
	return accounts, nil
}

// Authenticate checks an email/password pair and returns the account.
func (p *LocalProvider) Authenticate(_ context.Context, email, password string) (*Account, error) {
	p.mu.Lock()
	uid, ok := p.byEmail[email]
	var la *localAccount
	if ok {
		la = p.byUID[uid]
	}
	p.mu.Unlock()

	if la == nil {
		return nil, ErrAccountNotFound
	}
	if bcrypt.CompareHashAndPassword([]byte(la.passwordHash), []byte(password)) != nil {
		return nil, ErrInvalidToken
	}
	account := la.account
	return &account, nil
}

// MintToken issues an HS256 bearer token for the account, valid for ttl.
func (p *LocalProvider) MintToken(uid string, ttl time.Duration) (string, error) {
	p.mu.Lock()
	la, ok := p.byUID[uid]
	p.mu.Unlock()
	if !ok {
		return "", ErrAccountNotFound
	}

	now := time.Now()
	claims := jwtv5.MapClaims{
		"sub":   la.account.UID,
		"email": la.account.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	if p.issuer != "" {
		claims["iss"] = p.issuer
	}

	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}
