// Package auth resolves bearer credentials to the owner id every record is
// scoped by.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"budgetbuddy/internal/cache"
	"budgetbuddy/internal/core"
)

// Resolver maps a credential to its owner id. Failures wrap
// core.ErrUnauthorized.
type Resolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// Identity is a verified credential.
type Identity struct {
	OwnerID   string
	ExpiresAt time.Time
}

// Verifier is a Resolver that also reports when the credential expires.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// Claims carries the owner id in the registered subject.
type Claims struct {
	jwt.RegisteredClaims
}

// JWTResolver verifies HS256 tokens signed with a shared secret.
type JWTResolver struct {
	secret []byte
	now    func() time.Time
}

func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for ownerID valid for ttl (24h when ttl <= 0).
func (r *JWTResolver) Issue(ownerID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := r.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(r.secret)
}

func (r *JWTResolver) Verify(_ context.Context, tokenStr string) (Identity, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return Identity{}, fmt.Errorf("%w: missing token", core.ErrUnauthorized)
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return r.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(r.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", core.ErrUnauthorized, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: %v", core.ErrUnauthorized, jwt.ErrTokenInvalidClaims)
	}
	id := Identity{OwnerID: claims.Subject}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

func (r *JWTResolver) Resolve(ctx context.Context, token string) (string, error) {
	id, err := r.Verify(ctx, token)
	if err != nil {
		return "", err
	}
	return id.OwnerID, nil
}

// CachingResolver remembers verified tokens until they expire or the cache
// ttl elapses, whichever comes first. Failed verifications are not cached.
type CachingResolver struct {
	next  Verifier
	cache cache.Cache[string]
}

func NewCachingResolver(next Verifier, c cache.Cache[string]) *CachingResolver {
	return &CachingResolver{next: next, cache: c}
}

func (r *CachingResolver) Resolve(ctx context.Context, token string) (string, error) {
	if owner, ok := r.cache.Get(token); ok {
		return owner, nil
	}
	id, err := r.next.Verify(ctx, token)
	if err != nil {
		return "", err
	}
	r.cache.SetUntil(token, id.OwnerID, id.ExpiresAt)
	return id.OwnerID, nil
}

// StaticResolver maps fixed tokens to owners. Useful for tests and local runs.
type StaticResolver map[string]string

func (s StaticResolver) Resolve(_ context.Context, token string) (string, error) {
	if owner, ok := s[token]; ok {
		return owner, nil
	}
	return "", fmt.Errorf("%w: unknown token", core.ErrUnauthorized)
}

// IsUnauthorized reports whether err is a credential failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, core.ErrUnauthorized)
}
