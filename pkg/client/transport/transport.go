// SPDX-FileCopyrightText: Copyright 2025 Carabiner Systems, Inc

// Package transport builds the HTTP client used to talk to the vault,
// resolving its TLS trust configuration.
package transport

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-rootcerts"
	"golang.org/x/net/http2"
)

// DefaultTimeout bounds each request round trip.
const DefaultTimeout = 60 * time.Second

// Config carries the TLS trust settings for a vault connection.
type Config struct {
	// CACertPath points at a PEM bundle to verify the vault's
	// certificate against, replacing the system pool.
	CACertPath string

	// SkipVerify disables certificate verification. When set it wins
	// over CACertPath.
	SkipVerify bool

	// Timeout overrides DefaultTimeout when positive.
	Timeout time.Duration
}

// New builds an HTTP client for cfg. The CA bundle is read here, so a
// bad path surfaces as the returned error.
func New(cfg *Config) (*http.Client, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	client := cleanhttp.DefaultPooledClient()
	transport := client.Transport.(*http.Transport)
	transport.TLSHandshakeTimeout = 10 * time.Second
	transport.TLSClientConfig = &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	switch {
	case cfg.SkipVerify:
		transport.TLSClientConfig.InsecureSkipVerify = true
	case cfg.CACertPath != "":
		if err := rootcerts.ConfigureTLS(transport.TLSClientConfig, &rootcerts.Config{
			CAFile: cfg.CACertPath,
		}); err != nil {
			return nil, err
		}
	}

	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, fmt.Errorf("configuring http2: %w", err)
	}

	client.Timeout = DefaultTimeout
	if cfg.Timeout > 0 {
		client.Timeout = cfg.Timeout
	}

	return client, nil
}
