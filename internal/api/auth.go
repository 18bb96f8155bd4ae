package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// BearerAuth guards the admin routes with a single static token. The
// comparison is constant-time.
func BearerAuth(token string) func(http.Handler) http.Handler {
	expected := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
				httpError(w, http.StatusUnauthorized, "authentication_error", "admin token missing or invalid")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
