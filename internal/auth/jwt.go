package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultJWTIssuer is used when no issuer is configured.
const DefaultJWTIssuer = "productapi"

// Claims are the JWT claims accepted by JWTAuthenticator.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuthenticator authenticates Bearer tokens signed with HS256.
type JWTAuthenticator struct {
	secret []byte
	issuer string
	parser *jwt.Parser
}

// NewJWTAuthenticator creates an authenticator for tokens signed with secret.
func NewJWTAuthenticator(secret, issuer string) (*JWTAuthenticator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("jwt auth: secret must not be empty")
	}
	if issuer == "" {
		issuer = DefaultJWTIssuer
	}

	return &JWTAuthenticator{
		secret: []byte(secret),
		issuer: issuer,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
		),
	}, nil
}

// Authenticate verifies the Bearer token of the Authorization header.
func (a *JWTAuthenticator) Authenticate(r *http.Request) (*Info, error) {
	raw, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found || raw == "" {
		return nil, ErrUnauthenticated
	}

	var claims Claims
	token, err := a.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	info := &Info{
		Method:  MethodJWT,
		Subject: claims.Subject,
		Claims:  map[string]any{},
	}
	if claims.Role != "" {
		info.Claims["role"] = claims.Role
	}

	return info, nil
}

// Issue signs a token for subject that expires after ttl.
func (a *JWTAuthenticator) Issue(subject, role string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("jwt auth: ttl must be positive")
	}

	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Method returns the authentication method type.
func (a *JWTAuthenticator) Method() Method {
	return MethodJWT
}
