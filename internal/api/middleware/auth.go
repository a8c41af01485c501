package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/clinicore/clinicore/internal/api/response"
	"github.com/clinicore/clinicore/internal/identity"
	"github.com/clinicore/clinicore/internal/provision"
)

const callerKey contextKey = "caller"

// Auth is middleware that extracts the Authorization bearer token, verifies
// it against the identity provider's signing key, and stores the verified
// caller in the request context. Missing or invalid tokens return 401.
func Auth(verifier identity.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				response.Err(w, http.StatusUnauthorized, "UNAUTHENTICATED", "No token provided", requestID)
				return
			}
			token := strings.TrimPrefix(header, "Bearer ")

			claims, err := verifier.VerifyToken(r.Context(), token)
			if err != nil {
				response.Err(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Invalid or expired token", requestID)
				return
			}

			caller := &provision.Caller{UID: claims.UID, Email: claims.Email}
			ctx := context.WithValue(r.Context(), callerKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetCaller retrieves the verified caller from the request context.
func GetCaller(ctx context.Context) *provision.Caller {
	if c, ok := ctx.Value(callerKey).(*provision.Caller); ok {
		return c
	}
	return nil
}
