package httpx

import (
	"net/http"
	"strings"
)

// RequireAnyPermission admits the caller when at least one of the listed
// permissions is present on their claims.
func RequireAnyPermission(required ...string) Middleware {
	want := make(map[string]struct{}, len(required))
	for _, p := range required {
		want[p] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range permissionsFromCtx(r.Context()) {
				if _, ok := want[p]; ok {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeBearerPermissionError(w, required...)
		})
	}
}

// RFC 6750-style error response for insufficient permissions.
func writeBearerPermissionError(w http.ResponseWriter, required ...string) {
	w.Header().Set(
		"WWW-Authenticate",
		`Bearer error="insufficient_scope", scope="`+strings.Join(required, " ")+`"`,
	)
	WriteError(w, http.StatusForbidden, "insufficient_permissions",
		"caller lacks a required permission")
}
