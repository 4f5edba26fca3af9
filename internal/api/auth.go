package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// SecretHeader carries the shared secret of the trigger endpoint.
const SecretHeader = "X-Pulse-Secret"

func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if token == "" || !strings.HasPrefix(auth, prefix) || !equal(auth[len(prefix):], token) {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SecretAuth rejects requests whose X-Pulse-Secret header does not match
// secret. An empty secret rejects everything.
func SecretAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" || !equal(r.Header.Get(SecretHeader), secret) {
				httpError(w, http.StatusUnauthorized, "authentication_error", "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func equal(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
