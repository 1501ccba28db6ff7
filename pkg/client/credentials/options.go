// SPDX-FileCopyrightText: Copyright 2026 Carabiner Systems, Inc
// SPDX-License-Identifier: Apache-2.0

package credentials

import (
	"time"

	"github.com/go-logr/logr"
)

// Option is a functional option for configuring the Manager.
type Option func(*Manager)

// WithToken seeds the cache with a known token valid for ttl. The
// manager will not log in until the seeded token enters the renewal
// cliff.
func WithToken(token string, ttl time.Duration) Option {
	return func(m *Manager) {
		if token != "" && ttl > 0 {
			m.token = token
			m.expiresAt = time.Now().Add(ttl)
		}
	}
}

// WithRenewalCliff sets how long before expiry a cached token is
// renewed instead of served. Default is DefaultRenewalCliff.
func WithRenewalCliff(cliff time.Duration) Option {
	return func(m *Manager) {
		if cliff > 0 {
			m.cliff = cliff
		}
	}
}

// WithErrorFunc installs the error handling policy applied to login
// failures. A nil return from fn suppresses the failure.
func WithErrorFunc(fn func(error) error) Option {
	return func(m *Manager) {
		if fn != nil {
			m.onError = fn
		}
	}
}

// WithLogger sets the logger renewals are reported through.
func WithLogger(log logr.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}
