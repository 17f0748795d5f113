// Package auth authenticates API clients. Every API key belongs to exactly
// one store, which scopes all requests made with it.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/go-faster/errors"
)

var (
	// ErrUnauthorized is returned for missing, unknown or revoked keys.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrKeyNotFound is returned by a Repository for unknown hashes.
	ErrKeyNotFound = errors.New("api key not found")
)

// APIKeyInfo holds the identity and permission data for a validated API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	StoreID string
	Scopes  []string
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

// Authenticator validates raw API keys.
type Authenticator struct {
	keys   Repository
	pepper []byte
}

// NewAuthenticator creates an Authenticator hashing keys with pepper.
func NewAuthenticator(keys Repository, pepper []byte) *Authenticator {
	return &Authenticator{keys: keys, pepper: pepper}
}

// Hash returns the hex HMAC-SHA256 of key under pepper, as stored in the
// repository.
func Hash(pepper []byte, key string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// Authenticate resolves key to its APIKeyInfo. Lookup failures other than
// ErrKeyNotFound are returned wrapped so callers can tell an outage from a
// bad key.
func (a *Authenticator) Authenticate(ctx context.Context, key string) (*APIKeyInfo, error) {
	if key == "" {
		return nil, ErrUnauthorized
	}
	hexHash := Hash(a.pepper, key)

	info, err := a.keys.FindByHash(ctx, hexHash)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, errors.Wrap(err, "find api key")
	}

	// The repository matched on the hash; compare again in constant time in
	// case it returned a different row.
	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil {
		return nil, ErrUnauthorized
	}
	computed, _ := hex.DecodeString(hexHash)
	if subtle.ConstantTimeCompare(computed, stored) != 1 {
		return nil, ErrUnauthorized
	}
	return info, nil
}

type keyCtx struct{}

// WithKey returns a copy of ctx carrying info.
func WithKey(ctx context.Context, info *APIKeyInfo) context.Context {
	return context.WithValue(ctx, keyCtx{}, info)
}

// FromContext returns the authenticated key stored by WithKey.
func FromContext(ctx context.Context) (*APIKeyInfo, bool) {
	info, ok := ctx.Value(keyCtx{}).(*APIKeyInfo)
	return info, ok && info != nil
}
