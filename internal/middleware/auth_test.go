package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/productapi/internal/auth"
	"github.com/vyrodovalexey/productapi/internal/model"
)

// testAuthenticator is a configurable authenticator for testing.
type testAuthenticator struct {
	info *auth.Info
	err  error
}

func (a *testAuthenticator) Authenticate(_ *http.Request) (*auth.Info, error) {
	return a.info, a.err
}

func (a *testAuthenticator) Method() auth.Method {
	return auth.MethodAPIKey
}

func rejectAll() *testAuthenticator {
	return &testAuthenticator{err: auth.ErrUnauthenticated}
}

func TestAuth_PublicPaths(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"health", "/health", http.StatusOK},
		{"ready", "/ready", http.StatusOK},
		{"metrics", "/metrics", http.StatusOK},
		{"health sub-path", "/health/live", http.StatusOK},
		{"shared prefix is not public", "/healthz", http.StatusForbidden},
		{"products", "/api/products", http.StatusForbidden},
		{"change feed", "/ws/products", http.StatusForbidden},
		{"unknown route", "/nope", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			Auth(rejectAll(), zap.NewNop())(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}
}

func TestAuth_OptionsRequestBypassesAuth(t *testing.T) {
	rr := httptest.NewRecorder()
	Auth(rejectAll(), zap.NewNop())(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/api/products", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestAuth_ValidAuth_StoresInfo(t *testing.T) {
	// Arrange
	want := &auth.Info{Method: auth.MethodAPIKey, Subject: "default"}
	var got *auth.Info
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	rr := httptest.NewRecorder()

	// Act
	Auth(&testAuthenticator{info: want}, zap.NewNop())(handler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/products", nil))

	// Assert
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if got != want {
		t.Errorf("context info = %+v, want %+v", got, want)
	}
}

func TestAuth_Failure_Returns403(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantMessage string
	}{
		{"missing credentials", auth.ErrUnauthenticated, "Missing credentials"},
		{"invalid api key", auth.ErrInvalidAPIKey, "Invalid API key"},
		{"invalid credentials", auth.ErrInvalidCredentials, "Invalid credentials"},
		{"wrapped token error", fmt.Errorf("%w: signature is invalid", auth.ErrInvalidToken), "Invalid token"},
		{"unknown error", errors.New("boom"), "Authentication failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			called := false
			handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})
			rr := httptest.NewRecorder()

			// Act
			Auth(&testAuthenticator{err: tt.err}, zap.NewNop())(handler).ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/products/1", nil))

			// Assert
			if rr.Code != http.StatusForbidden {
				t.Errorf("status = %d, want %d", rr.Code, http.StatusForbidden)
			}
			if called {
				t.Error("handler should not be called on auth failure")
			}

			var body model.ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Error != model.KindUnauthorized {
				t.Errorf("error = %q, want %q", body.Error, model.KindUnauthorized)
			}
			if body.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", body.Message, tt.wantMessage)
			}
		})
	}
}

func TestAuth_WithAPIKeyAuthenticator(t *testing.T) {
	a, err := auth.NewAPIKeyAuthenticator("mysecretkey123")
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	wrapped := Auth(a, zap.NewNop())(okHandler())

	tests := []struct {
		name       string
		key        string
		wantStatus int
	}{
		{"correct key", "mysecretkey123", http.StatusOK},
		{"wrong key", "wrong", http.StatusForbidden},
		{"no key", "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
			if tt.key != "" {
				req.Header.Set(auth.APIKeyHeader, tt.key)
			}
			rr := httptest.NewRecorder()

			wrapped.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}
}
