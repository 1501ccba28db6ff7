// SPDX-FileCopyrightText: Copyright 2026 Carabiner Systems, Inc
// SPDX-License-Identifier: Apache-2.0

// Package credentials caches the vault token and decides when a login
// is needed. A Manager wraps an auth strategy and hands out the cached
// token until it enters the renewal window, then logs in again.
package credentials

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/carabiner-dev/belay/pkg/client/auth"
)

const (
	// DefaultRenewalCliff is how long before expiry a token stops being
	// served from cache and a renewal happens instead.
	DefaultRenewalCliff = 30 * time.Second

	// StaticTokenTTL is the validity horizon assumed for tokens seeded
	// with WithToken, far enough out that a seeded token never renews
	// in a realistic process lifetime.
	StaticTokenTTL = 31 * 24 * time.Hour
)

// Manager caches a vault token and renews it through an auth strategy
// when it comes within the renewal cliff of expiring.
//
// The mutex is held for the whole renewal; concurrent callers block
// until one login settles the new token.
type Manager struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time

	conn     auth.Conn
	strategy auth.Strategy
	cliff    time.Duration
	onError  func(error) error
	log      logr.Logger
}

// NewManager creates a manager that logs in through strategy over conn.
func NewManager(conn auth.Conn, strategy auth.Strategy, opts ...Option) *Manager {
	m := &Manager{
		conn:     conn,
		strategy: strategy,
		cliff:    DefaultRenewalCliff,
		log:      logr.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Token returns the cached token, renewing it first when it is missing
// or inside the renewal cliff. Failures to read local credential
// material are returned directly; other login failures go through the
// error handling policy, and when the policy absorbs one the previously
// cached token is returned even though it is near expiry.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && time.Until(m.expiresAt) > m.cliff {
		return m.token, nil
	}

	if m.strategy == nil {
		return "", errors.New("no auth strategy configured")
	}

	lease, err := m.strategy.Login(ctx, m.conn)
	if err != nil {
		if auth.IsCredentialError(err) {
			return "", err
		}
		m.log.Error(err, "token renewal failed", "method", m.strategy.Name())
		if m.onError == nil {
			return "", err
		}
		if handled := m.onError(err); handled != nil {
			return "", handled
		}
		return m.token, nil
	}

	m.token = lease.Token
	m.expiresAt = time.Now().Add(lease.TTL)
	m.log.V(1).Info("token renewed", "method", m.strategy.Name(), "ttl", lease.TTL)

	return m.token, nil
}

// Expiry returns when the cached token expires. The zero time means no
// token has been cached yet.
func (m *Manager) Expiry() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expiresAt
}
