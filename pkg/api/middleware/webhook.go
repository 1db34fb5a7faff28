// Package middleware provides HTTP middleware for the Thunder listener.
package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SecretTokenHeader carries the webhook secret when the platform is told to
// send it.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookSecret rejects webhook calls whose {secret} path segment does not
// match secret. A request carrying the secret header must match as well.
// Mismatches get 404 so the endpoint cannot be probed.
func WebhookSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !matches(chi.URLParam(r, "secret"), secret) {
				http.NotFound(w, r)
				return
			}
			if h := r.Header.Get(SecretTokenHeader); h != "" && !matches(h, secret) {
				http.NotFound(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func matches(got, want string) bool {
	return want != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
