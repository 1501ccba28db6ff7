// SPDX-FileCopyrightText: Copyright 2026 Carabiner Systems, Inc
// SPDX-License-Identifier: Apache-2.0

// Package auth implements the login strategies the client uses to obtain
// vault tokens. Strategies exchange a local credential (a service account
// token, an AppRole secret, an OIDC authorization code) for a client token
// by posting to the vault's auth mount.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
)

// Conn is the read-only view of the client connection that strategies use
// to reach the vault. It is implemented by client.Client.
type Conn interface {
	// BaseURL returns the vault base URL without a trailing slash.
	BaseURL() string

	// HTTPClient returns the HTTP client configured for the connection,
	// including its TLS trust settings.
	HTTPClient() (*http.Client, error)
}

// Lease is a token returned by a login exchange together with its validity.
type Lease struct {
	// Token is the client token to send on subsequent requests.
	Token string

	// TTL is how long the vault will honor the token.
	TTL time.Duration
}

// Strategy obtains a vault token. Implementations must be safe for
// concurrent use; the credential manager serializes calls to Login but
// strategies may be shared across clients.
type Strategy interface {
	// Name returns the auth method name (e.g. "kubernetes").
	Name() string

	// Login performs the credential exchange and returns a fresh lease.
	Login(ctx context.Context, conn Conn) (*Lease, error)
}

// LoginFunc adapts a plain function to a Strategy.
type LoginFunc func(ctx context.Context, conn Conn) (*Lease, error)

type funcStrategy struct {
	name string
	fn   LoginFunc
}

func (s *funcStrategy) Name() string { return s.name }

func (s *funcStrategy) Login(ctx context.Context, conn Conn) (*Lease, error) {
	return s.fn(ctx, conn)
}

// FromFunc wraps fn in a Strategy with the given method name.
func FromFunc(name string, fn LoginFunc) Strategy {
	return &funcStrategy{name: name, fn: fn}
}

// Factory builds a strategy from its string options. Factories validate
// their options and fail early on unknown keys or missing values.
type Factory func(options map[string]string) (Strategy, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func init() {
	Register(MethodKubernetes, NewKubernetes)
	Register(MethodAppRole, NewAppRole)
	Register(MethodJWT, NewJWT)
	Register(MethodOIDC, NewOIDC)
}

// Register makes an auth method available to New under the given name.
// Registering a name twice replaces the earlier factory, which lets
// programs override a built-in method.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// New builds the strategy registered under name. The options map is
// method specific; see the method constructors for the supported keys.
func New(name string, options map[string]string) (Strategy, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown auth method %q (available: %s)", name, strings.Join(Methods(), ", "))
	}
	return factory(options)
}

// Methods returns the registered auth method names, sorted.
func Methods() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// checkOptions rejects option keys a method does not understand.
func checkOptions(options map[string]string, known ...string) error {
	for k := range options {
		if !slices.Contains(known, k) {
			return fmt.Errorf("unknown option %q (supported: %s)", k, strings.Join(known, ", "))
		}
	}
	return nil
}
