// Package auth provides the request authentication gate of the product API.
package auth

import (
	"context"
	"errors"
	"net/http"
)

// Method identifies how a request was authenticated.
type Method string

// Supported authentication methods.
const (
	MethodNone   Method = "none"
	MethodAPIKey Method = "apikey"
	MethodBasic  Method = "basic"
	MethodJWT    Method = "jwt"
	MethodMulti  Method = "multi"
)

// Info holds authenticated identity information.
type Info struct {
	Method  Method
	Subject string
	Claims  map[string]any
}

// Authenticator validates a request and returns the caller identity.
type Authenticator interface {
	Authenticate(r *http.Request) (*Info, error)
	Method() Method
}

// Sentinel errors for authentication failures.
var (
	ErrUnauthenticated    = errors.New("no credentials provided")
	ErrInvalidAPIKey      = errors.New("invalid API key")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

type contextKey string

const infoKey contextKey = "auth_info"

// FromContext retrieves Info from the context.
func FromContext(ctx context.Context) (*Info, bool) {
	info, ok := ctx.Value(infoKey).(*Info)
	return info, ok
}

// WithInfo stores Info in the context.
func WithInfo(ctx context.Context, info *Info) context.Context {
	return context.WithValue(ctx, infoKey, info)
}
