// SPDX-FileCopyrightText: Copyright 2026 Carabiner Systems, Inc
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/time/rate"

	"github.com/carabiner-dev/belay/pkg/client/auth"
)

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithAuthMethod selects a registered auth method by name together with
// its method specific options.
func WithAuthMethod(method string, options map[string]string) Option {
	return func(c *Client) {
		if method != "" {
			c.authMethod = method
			c.authOptions = options
		}
	}
}

// WithStrategy installs a pre-built auth strategy, bypassing the
// method registry.
func WithStrategy(strategy auth.Strategy) Option {
	return func(c *Client) {
		if strategy != nil {
			c.strategy = strategy
		}
	}
}

// WithToken pins a static token. The client will not log in until the
// token would expire, which for practical purposes is never.
func WithToken(token string) Option {
	return func(c *Client) {
		if token != "" {
			c.staticToken = token
		}
	}
}

// WithCACert points TLS verification at a PEM bundle instead of the
// system pool. The file is read when the first request builds the
// transport.
func WithCACert(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.caCertPath = path
		}
	}
}

// WithSkipTLSVerify disables certificate verification. It wins over
// WithCACert.
func WithSkipTLSVerify(skip bool) Option {
	return func(c *Client) {
		c.skipVerify = skip
	}
}

// WithTimeout bounds each request round trip. Default is
// transport.DefaultTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRenewalCliff sets how long before expiry the cached token is
// renewed instead of reused.
func WithRenewalCliff(cliff time.Duration) Option {
	return func(c *Client) {
		if cliff > 0 {
			c.cliff = cliff
		}
	}
}

// WithErrorHandler installs the error handling policy for login and
// request failures. A nil return from the handler suppresses the
// failure.
func WithErrorHandler(fn ErrorHandler) Option {
	return func(c *Client) {
		if fn != nil {
			c.onError = fn
		}
	}
}

// WithLogger sets the logger the client reports renewals and request
// failures through. Default is a discarding logger.
func WithLogger(log logr.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithRateLimit caps outgoing requests at rps per second with the
// given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithHTTPClient replaces the built transport with a caller supplied
// client, skipping the TLS configuration entirely. Mostly for tests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}
