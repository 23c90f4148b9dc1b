package server

import (
	"crypto/subtle"
	"net/http"
	"slices"
	"strings"

	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

// Identity is the caller a request was authenticated as.
type Identity struct {
	Subject string
	Roles   []string
}

// HasAnyRole reports whether the identity has one of roles. An empty list
// admits everyone.
func (id Identity) HasAnyRole(roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range id.Roles {
		if slices.Contains(roles, r) {
			return true
		}
	}
	return false
}

// Authenticator resolves the identity of a request.
type Authenticator interface {
	Authenticate(r *http.Request) (Identity, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(r *http.Request) (Identity, error)

// Authenticate calls f(r).
func (f AuthenticatorFunc) Authenticate(r *http.Request) (Identity, error) {
	return f(r)
}

// Anonymous authenticates every request as an identity with the anon
// role.
func Anonymous() Authenticator {
	return AuthenticatorFunc(func(*http.Request) (Identity, error) {
		return Identity{Subject: "anon", Roles: []string{"anon"}}, nil
	})
}

// APIKey is one static key and the identity it grants.
type APIKey struct {
	Key     string   `mapstructure:"key" yaml:"key"`
	Subject string   `mapstructure:"subject" yaml:"subject"`
	Roles   []string `mapstructure:"roles" yaml:"roles"`
}

// APIKeys authenticates requests by a static key sent as
// "Authorization: Bearer <key>" or in the apikey header.
type APIKeys struct {
	keys []APIKey
}

// NewAPIKeys creates an authenticator over keys.
func NewAPIKeys(keys ...APIKey) *APIKeys {
	return &APIKeys{keys: keys}
}

// Authenticate implements Authenticator.
func (a *APIKeys) Authenticate(r *http.Request) (Identity, error) {
	key := r.Header.Get("apikey")
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, token, ok := strings.Cut(auth, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return Identity{}, &types.Error{Code: types.CodeUnauthorized, Message: "unsupported authorization scheme", Hint: "use Authorization: Bearer <key>"}
		}
		key = strings.TrimSpace(token)
	}
	if key == "" {
		return Identity{}, &types.Error{Code: types.CodeUnauthorized, Message: "missing api key"}
	}
	for _, k := range a.keys {
		if subtle.ConstantTimeCompare([]byte(k.Key), []byte(key)) == 1 {
			return Identity{Subject: k.Subject, Roles: k.Roles}, nil
		}
	}
	return Identity{}, &types.Error{Code: types.CodeUnauthorized, Message: "invalid api key"}
}
