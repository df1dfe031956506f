// Package api implements the QR Director HTTP surface using chi: public
// redirects, the cookie-authenticated admin UI and the token-authenticated
// JSON API.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
)

// SessionName is the cookie that carries the admin session.
const SessionName = "qrdirector-session"

const sessionAuthKey = "authenticated"

// AuthMiddleware returns middleware that requires a valid
// "Authorization: Bearer <token>" header. In disabled mode the routes it
// guards are not mounted at all.
func AuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || !secureEqual(strings.TrimPrefix(auth, "Bearer "), token) {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSession redirects to the login page unless the request carries an
// authenticated admin session.
func RequireSession(store sessions.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isAuthenticated(store, r) {
				http.Redirect(w, r, "/admin/login", http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isAuthenticated(store sessions.Store, r *http.Request) bool {
	session, err := store.Get(r, SessionName)
	if err != nil {
		return false
	}
	ok, _ := session.Values[sessionAuthKey].(bool)
	return ok
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
