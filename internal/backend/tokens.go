package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/benomayebu/Farmily-Docs/internal/pkg/clock"
	"github.com/benomayebu/Farmily-Docs/internal/pkg/localstore"
)

var (
	ErrTokenMissing = errors.New("no bearer token for role")
	ErrTokenExpired = errors.New("bearer token expired")
	ErrUnknownRole  = errors.New("unknown role")
)

// ValidRole reports whether role has a base path on the backend.
func ValidRole(role string) bool {
	switch role {
	case RoleFarmer, RoleDistributor, RoleRetailer, RoleConsumer:
		return true
	}
	return false
}

// TokenSource supplies the bearer token for a role.
type TokenSource interface {
	Token(ctx context.Context, role string) (string, error)
}

// StaticTokens is a fixed role to token map.
type StaticTokens map[string]string

func (s StaticTokens) Token(_ context.Context, role string) (string, error) {
	if tok, ok := s[role]; ok && tok != "" {
		return tok, nil
	}
	return "", fmt.Errorf("%w %s", ErrTokenMissing, role)
}

// StoreTokens reads tokens saved in the local store and refuses JWTs whose
// exp claim has passed, so an expired login fails before reaching the API.
type StoreTokens struct {
	Store *localstore.Store
	Clock clock.Clock
}

func (s StoreTokens) Token(_ context.Context, role string) (string, error) {
	tok, err := s.Store.Token(role)
	if errors.Is(err, localstore.ErrNotFound) {
		return "", fmt.Errorf("%w %s", ErrTokenMissing, role)
	}
	if err != nil {
		return "", err
	}
	now := time.Now()
	if s.Clock != nil {
		now = s.Clock.Now()
	}
	if err := CheckExpiry(tok, now); err != nil {
		return "", err
	}
	return tok, nil
}

// CheckExpiry returns ErrTokenExpired when tok is a JWT with an exp claim
// before now. The signature is not verified; that is the backend's job.
// Opaque tokens pass.
func CheckExpiry(tok string, now time.Time) error {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if !now.Before(exp.Time) {
		return fmt.Errorf("%w at %s", ErrTokenExpired, exp.Time.Format(time.RFC3339))
	}
	return nil
}

type tokenKey struct{}

// WithToken attaches a bearer token to ctx, as the gateway does with the
// caller's Authorization header.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the token attached by WithToken.
func TokenFromContext(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(tokenKey{}).(string)
	return tok, ok && tok != ""
}

// ContextTokens uses the token carried by the request context.
type ContextTokens struct{}

func (ContextTokens) Token(ctx context.Context, role string) (string, error) {
	if tok, ok := TokenFromContext(ctx); ok {
		return tok, nil
	}
	return "", fmt.Errorf("%w %s", ErrTokenMissing, role)
}

// FirstOf tries each source in order and returns the first token found.
// Errors other than ErrTokenMissing stop the search.
type FirstOf []TokenSource

func (f FirstOf) Token(ctx context.Context, role string) (string, error) {
	for _, src := range f {
		tok, err := src.Token(ctx, role)
		if err == nil {
			return tok, nil
		}
		if !errors.Is(err, ErrTokenMissing) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w %s", ErrTokenMissing, role)
}
