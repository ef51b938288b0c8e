package devauth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/mbank/internal/common"
	"github.com/go-chi/httprate"
)

type claimsKey struct{}

// RateLimitByIP limits requests per client IP. httprate fills in Retry-After.
func RateLimitByIP(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		perMinute,
		time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
		}),
	)
}

// RequireAccess admits requests carrying a valid access token and stores its
// claims in the request context.
func RequireAccess(issuer *Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearer(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			claims, err := issuer.Parse(token, typeAccess)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid_token", "invalid or expired access token")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}

func claimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get(common.AuthorizationHeader)
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}
