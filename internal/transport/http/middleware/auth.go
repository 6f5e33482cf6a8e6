package httpmw

import (
	"context"
	"net/http"
	"strings"

	"github.com/Tobby-pro/New-Rental-Stack/internal/auth"
	"github.com/Tobby-pro/New-Rental-Stack/pkg/httputil"
)

type ctxKey string

const ctxKeyPrincipal ctxKey = "principal"

type TokenVerifier interface {
	Verify(token string) (auth.Principal, error)
}

// Auth requires a valid Bearer token and stores the caller in the context.
func Auth(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") || len(h) <= 7 {
				httputil.Error(r.Context(), w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			p, err := v.Verify(strings.TrimSpace(h[7:]))
			if err != nil {
				httputil.Error(r.Context(), w, http.StatusUnauthorized, "unauthorized", err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func WithPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal, p)
}

func PrincipalFromCtx(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal).(auth.Principal)
	return p, ok
}
