package auth_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vyrodovalexey/productapi/internal/auth"
)

// mockAuthenticator is a configurable authenticator for tests.
type mockAuthenticator struct {
	info   *auth.Info
	err    error
	called bool
}

func (m *mockAuthenticator) Authenticate(_ *http.Request) (*auth.Info, error) {
	m.called = true
	return m.info, m.err
}

func (m *mockAuthenticator) Method() auth.Method {
	return auth.MethodNone
}

func TestMultiAuthenticator_Authenticate(t *testing.T) {
	t.Parallel()

	okInfo := &auth.Info{Method: auth.MethodAPIKey, Subject: "svc"}

	tests := []struct {
		name        string
		auths       []*mockAuthenticator
		wantErr     error
		wantCalled  []bool
		wantSubject string
	}{
		{
			name:        "first succeeds",
			auths:       []*mockAuthenticator{{info: okInfo}, {err: auth.ErrInvalidToken}},
			wantCalled:  []bool{true, false},
			wantSubject: "svc",
		},
		{
			name:        "falls through on missing credentials",
			auths:       []*mockAuthenticator{{err: auth.ErrUnauthenticated}, {info: okInfo}},
			wantCalled:  []bool{true, true},
			wantSubject: "svc",
		},
		{
			name:       "stops on invalid credentials",
			auths:      []*mockAuthenticator{{err: auth.ErrInvalidAPIKey}, {info: okInfo}},
			wantErr:    auth.ErrInvalidAPIKey,
			wantCalled: []bool{true, false},
		},
		{
			name:       "nobody has credentials",
			auths:      []*mockAuthenticator{{err: auth.ErrUnauthenticated}, {err: auth.ErrUnauthenticated}},
			wantErr:    auth.ErrUnauthenticated,
			wantCalled: []bool{true, true},
		},
		{
			name:    "no authenticators",
			wantErr: auth.ErrUnauthenticated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Arrange
			list := make([]auth.Authenticator, 0, len(tt.auths))
			for _, a := range tt.auths {
				list = append(list, a)
			}
			m := auth.NewMultiAuthenticator(list...)

			// Act
			info, err := m.Authenticate(httptest.NewRequest(http.MethodGet, "/", nil))

			// Assert
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Authenticate() error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil || info.Subject != tt.wantSubject {
				t.Errorf("Authenticate() = %+v, %v", info, err)
			}

			for i, want := range tt.wantCalled {
				if tt.auths[i].called != want {
					t.Errorf("authenticator %d called = %v, want %v", i, tt.auths[i].called, want)
				}
			}
		})
	}
}

func TestMultiAuthenticator_Method(t *testing.T) {
	t.Parallel()

	if m := auth.NewMultiAuthenticator(); m.Method() != auth.MethodMulti {
		t.Errorf("Method() = %q, want %q", m.Method(), auth.MethodMulti)
	}
}
