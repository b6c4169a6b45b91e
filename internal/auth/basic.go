package auth

import (
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// BasicAuthenticator authenticates requests using HTTP Basic authentication
// with bcrypt-hashed passwords.
type BasicAuthenticator struct {
	users map[string]string // username -> bcrypt hash
}

// NewBasicAuthenticator parses a "user1:hash1,user2:hash2" list.
func NewBasicAuthenticator(usersConfig string) (*BasicAuthenticator, error) {
	trimmed := strings.TrimSpace(usersConfig)
	if trimmed == "" {
		return nil, fmt.Errorf("basic auth: users config must not be empty")
	}

	users := make(map[string]string)
	for _, entry := range strings.Split(trimmed, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		// Bcrypt hashes contain '$' but never ':'.
		username, hash, found := strings.Cut(entry, ":")
		if !found {
			return nil, fmt.Errorf("basic auth: invalid entry format, expected user:hash")
		}
		if username == "" || hash == "" {
			return nil, fmt.Errorf("basic auth: username and hash must not be empty")
		}

		users[username] = hash
	}

	if len(users) == 0 {
		return nil, fmt.Errorf("basic auth: no valid user entries found")
	}

	return &BasicAuthenticator{users: users}, nil
}

// Authenticate verifies Basic credentials against the stored bcrypt hash.
func (a *BasicAuthenticator) Authenticate(r *http.Request) (*Info, error) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return nil, ErrUnauthenticated
	}

	hash, exists := a.users[username]
	if !exists {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &Info{Method: MethodBasic, Subject: username}, nil
}

// Method returns the authentication method type.
func (a *BasicAuthenticator) Method() Method {
	return MethodBasic
}
