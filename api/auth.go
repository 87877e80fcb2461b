/*
auth.go - Static-credential login and bearer-token sessions

PURPOSE:
  The admin surface has exactly one operator account, configured at
  startup. Login exchanges the credentials for a random bearer token;
  the middleware gates every other /api route on it. Tokens live in
  process memory and expire after twelve hours - restarting the server
  logs everyone out, which is acceptable for this tool.

SEE ALSO:
  - server.go: wires the middleware around the API routes
*/
package api

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"
)

const sessionTTL = 12 * time.Hour

// Auth holds the configured credentials and the live session tokens.
type Auth struct {
	username string
	password string

	mu     sync.Mutex
	tokens map[string]time.Time // token -> expiry
}

// NewAuth creates the authenticator for the single operator account.
func NewAuth(username, password string) *Auth {
	return &Auth{
		username: username,
		password: password,
		tokens:   make(map[string]time.Time),
	}
}

// Login validates credentials and issues a bearer token.
// POST /api/auth/login
func (a *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(a.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(a.password)) == 1
	if !userOK || !passOK {
		writeError(w, http.StatusUnauthorized, "Invalid username or password", nil)
		return
	}

	token := newToken()
	a.mu.Lock()
	a.tokens[token] = time.Now().Add(sessionTTL)
	a.mu.Unlock()

	writeJSON(w, http.StatusOK, LoginResponse{Token: token, Username: req.Username})
}

// Middleware rejects requests without a live bearer token.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || !a.valid(token) {
			writeError(w, http.StatusUnauthorized, "Authentication required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Auth) valid(token string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	expiry, ok := a.tokens[token]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(a.tokens, token)
		return false
	}
	return true
}

func newToken() string {
	buf := make([]byte, 16)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}
