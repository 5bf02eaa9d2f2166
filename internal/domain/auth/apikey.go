// Package auth authenticates staff devices (kitchen displays, reception
// terminals, admin consoles) by API key.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"slices"

	"github.com/go-faster/errors"
)

// Scopes granted to staff keys.
const (
	// ScopeKitchen allows status changes on orders and order items.
	ScopeKitchen = "kitchen"
	// ScopeAdmin allows catalog and table registry changes.
	ScopeAdmin = "admin"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("api key not found")
)

// Key is a stored staff API key. Only the HMAC of the raw key is persisted.
type Key struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// Allows reports whether the key carries scope. Admin keys allow everything.
func (k *Key) Allows(scope string) bool {
	return slices.Contains(k.Scopes, scope) || slices.Contains(k.Scopes, ScopeAdmin)
}

// Repository looks up and stores API keys by HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*Key, error)
	Create(ctx context.Context, k *Key) error
}

// Authenticator checks raw keys against the repository using HMAC-SHA256
// with a server-side pepper.
type Authenticator struct {
	keys   Repository
	pepper []byte
}

// NewAuthenticator returns an Authenticator.
func NewAuthenticator(keys Repository, pepper []byte) *Authenticator {
	return &Authenticator{keys: keys, pepper: pepper}
}

// Hash returns the hex HMAC of a raw key.
func (a *Authenticator) Hash(raw string) string {
	return hex.EncodeToString(a.sum(raw))
}

func (a *Authenticator) sum(raw string) []byte {
	mac := hmac.New(sha256.New, a.pepper)
	mac.Write([]byte(raw))
	return mac.Sum(nil)
}

// Authenticate resolves raw to its stored key and checks that it carries
// scope.
func (a *Authenticator) Authenticate(ctx context.Context, raw, scope string) (*Key, error) {
	if raw == "" {
		return nil, ErrUnauthorized
	}
	sum := a.sum(raw)
	k, err := a.keys.FindByHash(ctx, hex.EncodeToString(sum))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, errors.Wrap(err, "find key")
	}
	stored, err := hex.DecodeString(k.KeyHash)
	if err != nil || subtle.ConstantTimeCompare(sum, stored) != 1 {
		return nil, ErrUnauthorized
	}
	if !k.Allows(scope) {
		return nil, ErrForbidden
	}
	return k, nil
}

// Register stores a new key for raw under name.
func (a *Authenticator) Register(ctx context.Context, id, name, raw string, scopes []string) (*Key, error) {
	if raw == "" {
		return nil, errors.New("empty key")
	}
	k := &Key{ID: id, KeyHash: a.Hash(raw), Name: name, Scopes: scopes}
	if err := a.keys.Create(ctx, k); err != nil {
		return nil, errors.Wrap(err, "create key")
	}
	return k, nil
}
