// Package auth protects the operator console with HTTP basic auth backed by
// bcrypt password hashes.
package auth

import (
	"errors"
	"net/http"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned when the provided credentials are invalid.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when registering a username twice.
	ErrUserExists = errors.New("user already exists")
)

// dummyHash is compared against when the username is unknown.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("ticketdesk"), bcrypt.MinCost)

// HashPassword returns the bcrypt hash stored in configuration.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("empty password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Auth holds the operators allowed into the console.
type Auth struct {
	mu    sync.RWMutex
	users map[string][]byte
}

func New() *Auth {
	return &Auth{users: make(map[string][]byte)}
}

// Register adds an operator by username and bcrypt hash.
func (a *Auth) Register(username, passwordHash string) error {
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.users[username]; ok {
		return ErrUserExists
	}
	a.users[username] = []byte(passwordHash)
	return nil
}

// Enabled reports whether any operator is registered.
func (a *Auth) Enabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.users) > 0
}

// Check verifies a username and password.
func (a *Auth) Check(username, password string) error {
	a.mu.RLock()
	hash, ok := a.users[username]
	a.mu.RUnlock()
	if !ok {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Middleware rejects requests without valid basic-auth credentials. With no
// operators registered every request passes. Paths in open skip the check.
func (a *Auth) Middleware(realm string, open ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.Enabled() || isOpen(r.URL.Path, open) {
				next.ServeHTTP(w, r)
				return
			}
			user, pass, ok := r.BasicAuth()
			if !ok || a.Check(user, pass) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="`+realm+`", charset="UTF-8"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isOpen(path string, open []string) bool {
	for _, p := range open {
		if p == path {
			return true
		}
	}
	return false
}
