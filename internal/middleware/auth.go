package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"salon-loyalty-api/internal/apperr"
	"salon-loyalty-api/internal/models"
)

// Cookie names carrying session tokens.
const (
	CustomerCookie = "customerToken"
	BusinessCookie = "businessToken"
)

type subjectKey struct{}

// Authenticator resolves a token to the id of an active account.
type Authenticator func(ctx context.Context, token string) (string, error)

// TokenFromRequest returns the bearer token, or the named cookie's value
// when no Authorization header is present.
func TokenFromRequest(r *http.Request, cookie string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(cookie); err == nil {
		return c.Value
	}
	return ""
}

// RequireAuth rejects requests without a token that authn accepts and
// stores the resolved account id in the request context.
func RequireAuth(authn Authenticator, cookie string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r, cookie)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "access denied: no token provided")
				return
			}

			subject, err := authn(r.Context(), token)
			if err != nil {
				writeError(w, apperr.HTTPStatus(err), apperr.Message(err))
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey{}, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Subject returns the account id stored by RequireAuth.
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey{}).(string)
	return s
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.Response{Success: false, Message: message})
}
