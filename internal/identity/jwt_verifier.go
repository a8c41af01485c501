package identity

import (
	"context"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// JWTVerifier verifies HS256 bearer tokens against a shared secret. The UID
// is taken from the "sub" claim and the email from the "email" claim.
type JWTVerifier struct {
	secret []byte
	issuer string
}

// NewJWTVerifier creates a verifier. If issuer is non-empty, tokens must
// carry a matching "iss" claim.
func NewJWTVerifier(secret []byte, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: secret, issuer: issuer}
}

// VerifyToken validates the signature, expiry and issuer, and extracts the
// subject and email claims.
func (v *JWTVerifier) VerifyToken(_ context.Context, token string) (*Claims, error) {
	keyfunc := func(t *jwtv5.Token) (any, error) {
		return v.secret, nil
	}

	opts := []jwtv5.ParserOption{
		jwtv5.WithValidMethods([]string{"HS256"}),
		jwtv5.WithLeeway(30 * time.Second),
	}
	if v.issuer != "" {
		opts = append(opts, jwtv5.WithIssuer(v.issuer))
	}

	tok, err := jwtv5.Parse(token, keyfunc, opts...)
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	email, _ := claims["email"].(string)

	return &Claims{UID: sub, Email: email}, nil
}
