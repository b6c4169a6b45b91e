package auth

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
)

// APIKeyHeader is the HTTP header carrying the API key.
const APIKeyHeader = "X-API-Key"

// APIKeyAuthenticator compares the X-API-Key header against configured keys
// in constant time.
type APIKeyAuthenticator struct {
	keys []apiKey
}

type apiKey struct {
	value []byte
	name  string
}

// NewAPIKeyAuthenticator parses a "key1:name1,key2:name2" list.
// An entry without a name is accepted and named "default".
func NewAPIKeyAuthenticator(keysConfig string) (*APIKeyAuthenticator, error) {
	trimmed := strings.TrimSpace(keysConfig)
	if trimmed == "" {
		return nil, fmt.Errorf("apikey auth: keys config must not be empty")
	}

	var keys []apiKey
	for _, entry := range strings.Split(trimmed, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		key, name, found := strings.Cut(entry, ":")
		key = strings.TrimSpace(key)
		name = strings.TrimSpace(name)
		if !found {
			name = "default"
		}

		if key == "" || name == "" {
			return nil, fmt.Errorf("apikey auth: key and name must not be empty")
		}

		keys = append(keys, apiKey{value: []byte(key), name: name})
	}

	if len(keys) == 0 {
		return nil, fmt.Errorf("apikey auth: no valid key entries found")
	}

	return &APIKeyAuthenticator{keys: keys}, nil
}

// Authenticate checks the X-API-Key header. Every configured key is compared
// so the time taken does not depend on which key matched.
func (a *APIKeyAuthenticator) Authenticate(r *http.Request) (*Info, error) {
	provided := r.Header.Get(APIKeyHeader)
	if provided == "" {
		return nil, ErrUnauthenticated
	}

	var subject string
	for _, k := range a.keys {
		if subtle.ConstantTimeCompare([]byte(provided), k.value) == 1 && subject == "" {
			subject = k.name
		}
	}

	if subject == "" {
		return nil, ErrInvalidAPIKey
	}

	return &Info{Method: MethodAPIKey, Subject: subject}, nil
}

// Method returns the authentication method type.
func (a *APIKeyAuthenticator) Method() Method {
	return MethodAPIKey
}
