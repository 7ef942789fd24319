package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/opswell/gatekeep/pkg/jwtx"
	"github.com/opswell/gatekeep/pkg/slogx"
)

// AuthnMiddleware verifies the bearer token against the codec for one of the
// given audiences and injects the claims into the request context. Every
// validation failure gets the same response; the reason is only logged.
func AuthnMiddleware(codec *jwtx.Codec, audiences ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				writeBearerError(w, "missing bearer token")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))

			var claims jwtx.Claims
			err := jwtx.ErrInvalidToken
			for _, audience := range audiences {
				claims, err = codec.Validate(raw, audience)
				if err == nil {
					break
				}
			}
			if err != nil {
				log.Warn("bearer token rejected", "err", err)
				writeBearerError(w, "token verification failed")
				return
			}

			next.ServeHTTP(w, r.WithContext(contextWithAuth(ctx, claims)))
		})
	}
}

func contextWithAuth(ctx context.Context, c jwtx.Claims) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, c.Subject)
	ctx = context.WithValue(ctx, CtxKeyPermissions, c.Permissions)
	ctx = context.WithValue(ctx, CtxKeyClaims, c)
	return ctx
}

// RFC 6750-compliant error response for bearer auth, with the service's
// usual JSON envelope alongside the challenge header.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteError(w, http.StatusUnauthorized, "invalid_token", desc)
}
