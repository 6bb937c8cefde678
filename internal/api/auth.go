package api

import (
	"crypto/subtle"
	"log"
	"net/http"
	"strings"
)

// AdminTokenHeader carries the admin token when no bearer token is sent
const AdminTokenHeader = "X-Admin-Token"

// AdminAuth guards mutating routes with a shared admin token
type AdminAuth struct {
	token []byte
}

// NewAdminAuth creates the guard. An empty token disables the check.
func NewAdminAuth(token string) *AdminAuth {
	if token == "" {
		log.Println("⚠️ No admin token configured, admin routes are open")
	}
	return &AdminAuth{token: []byte(token)}
}

// Enabled reports whether a token is required
func (a *AdminAuth) Enabled() bool {
	return len(a.token) > 0
}

// Validate checks the token presented by a request
func (a *AdminAuth) Validate(r *http.Request) bool {
	if !a.Enabled() {
		return true
	}
	presented := r.Header.Get(AdminTokenHeader)
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		presented = strings.TrimPrefix(auth, "Bearer ")
	}
	return subtle.ConstantTimeCompare([]byte(presented), a.token) == 1
}

// Middleware rejects requests without a valid admin token
func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Validate(r) {
			RecordConnectionRejected("unauthorized")
			w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
			writeError(w, "Admin authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
