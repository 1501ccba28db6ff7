// SPDX-FileCopyrightText: Copyright 2026 Carabiner Systems, Inc
// SPDX-License-Identifier: Apache-2.0

// Package client implements a small client for OpenBao and HashiCorp
// Vault style secret stores. It logs in through a pluggable auth
// strategy, caches the resulting token until shortly before it expires
// and attaches it to every request.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/time/rate"

	"github.com/carabiner-dev/belay/pkg/client/auth"
	"github.com/carabiner-dev/belay/pkg/client/credentials"
	"github.com/carabiner-dev/belay/pkg/client/transport"
)

// AuthHeaderName is the header vaults read the client token from.
const AuthHeaderName = "X-Vault-Token"

// Request describes one vault API call.
type Request struct {
	// URL is the path below the client's base URL, starting with a
	// slash. It is appended to the base URL verbatim.
	URL string

	// Method is the HTTP method. Defaults to POST.
	Method string

	// Data is marshaled to JSON as the request body when non-nil.
	Data any

	// Headers are extra headers to send. They win over the headers the
	// client sets, including the token header.
	Headers map[string]string
}

// Client talks to a vault. Safe for concurrent use.
type Client struct {
	baseURL string

	caCertPath string
	skipVerify bool
	timeout    time.Duration

	authMethod  string
	authOptions map[string]string
	strategy    auth.Strategy
	staticToken string

	cliff   time.Duration
	onError ErrorHandler
	limiter *rate.Limiter
	log     logr.Logger

	httpClient    *http.Client
	transportOnce sync.Once
	transport     *http.Client
	transportErr  error

	creds *credentials.Manager
}

var _ auth.Conn = (*Client)(nil)

// New creates a client for the vault at baseURL. A URL without a
// scheme gets https. When no auth method or strategy is configured the
// client falls back to kubernetes auth, which needs a role option
// before the first login can succeed.
func New(baseURL string, opts ...Option) (*Client, error) {
	normalized, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL: normalized,
		cliff:   credentials.DefaultRenewalCliff,
		log:     logr.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.strategy == nil {
		if c.authMethod != "" {
			strategy, err := auth.New(c.authMethod, c.authOptions)
			if err != nil {
				return nil, err
			}
			c.strategy = strategy
		} else {
			c.strategy = &auth.Kubernetes{}
		}
	}

	credOpts := []credentials.Option{
		credentials.WithRenewalCliff(c.cliff),
		credentials.WithLogger(c.log),
	}
	if c.onError != nil {
		credOpts = append(credOpts, credentials.WithErrorFunc(c.onError))
	}
	if c.staticToken != "" {
		credOpts = append(credOpts, credentials.WithToken(c.staticToken, credentials.StaticTokenTTL))
	}
	c.creds = credentials.NewManager(c, c.strategy, credOpts...)

	return c, nil
}

// normalizeBaseURL validates the vault URL and strips trailing slashes.
// Bare hosts get an https scheme; plain http has to be spelled out.
func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("vault base URL is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing vault base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q in vault base URL", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("vault base URL %q has no host", raw)
	}

	return strings.TrimRight(parsed.String(), "/"), nil
}

// BaseURL returns the normalized vault base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTPClient returns the HTTP client for the connection, building the
// transport on first use. A broken TLS configuration (an unreadable CA
// bundle) surfaces here on every call.
func (c *Client) HTTPClient() (*http.Client, error) {
	c.transportOnce.Do(func() {
		if c.httpClient != nil {
			c.transport = c.httpClient
			return
		}
		c.transport, c.transportErr = transport.New(&transport.Config{
			CACertPath: c.caCertPath,
			SkipVerify: c.skipVerify,
			Timeout:    c.timeout,
		})
	})
	return c.transport, c.transportErr
}

// Token returns the client's vault token, logging in or renewing it
// first when needed.
func (c *Client) Token(ctx context.Context) (string, error) {
	return c.creds.Token(ctx)
}

// TokenExpiry returns when the cached token expires. The zero time
// means the client has not logged in yet.
func (c *Client) TokenExpiry() time.Time {
	return c.creds.Expiry()
}

// Request performs req against the vault and returns the raw response
// body. Failures go through the error handling policy; when the policy
// absorbs one the call returns nil, nil.
func (c *Client) Request(ctx context.Context, req *Request) ([]byte, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if req.URL == "" {
		return nil, errors.New("request URL is required")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	token, err := c.creds.Token(ctx)
	if err != nil {
		return nil, err
	}

	httpClient, err := c.HTTPClient()
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodPost
	}

	var payload []byte
	var body io.Reader
	if req.Data != nil {
		payload, err = json.Marshal(req.Data)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	fullURL := c.baseURL + req.URL
	httpReq, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if req.Data != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set(AuthHeaderName, token)
	for name, value := range req.Headers {
		httpReq.Header.Set(name, value)
	}

	c.log.V(2).Info("sending request", "method", method, "url", fullURL)

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, c.failRequest(&RequestError{
			Method:      method,
			URL:         fullURL,
			RequestBody: string(payload),
			Token:       token,
			Err:         err,
		})
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.failRequest(&RequestError{
			Method:      method,
			URL:         fullURL,
			StatusCode:  resp.StatusCode,
			RequestBody: string(payload),
			Token:       token,
			Err:         fmt.Errorf("reading response: %w", err),
		})
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode > 299 {
		return nil, c.failRequest(&RequestError{
			Method:      method,
			URL:         fullURL,
			StatusCode:  resp.StatusCode,
			Body:        errorBody(raw),
			RequestBody: string(payload),
			Token:       token,
		})
	}

	return raw, nil
}

// failRequest routes a request failure through the error policy.
func (c *Client) failRequest(reqErr *RequestError) error {
	c.log.Error(reqErr, "request failed", "method", reqErr.Method, "url", reqErr.URL)
	if c.onError == nil {
		return reqErr
	}
	return c.onError(reqErr)
}

// Get performs a GET request for path.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	return c.Request(ctx, &Request{Method: http.MethodGet, URL: path})
}

// Post performs a POST request with data as the JSON body.
func (c *Client) Post(ctx context.Context, path string, data any) ([]byte, error) {
	return c.Request(ctx, &Request{Method: http.MethodPost, URL: path, Data: data})
}

// secretResponse is the envelope secret reads come back in.
type secretResponse struct {
	Data map[string]any `json:"data"`
}

// ReadSecret reads the secret at path and returns its data map.
func (c *Client) ReadSecret(ctx context.Context, path string) (map[string]any, error) {
	raw, err := c.Get(ctx, path)
	if err != nil || raw == nil {
		return nil, err
	}

	var parsed secretResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parsing secret response: %w", err)
	}
	return parsed.Data, nil
}

// WriteSecret writes data to the secret at path.
func (c *Client) WriteSecret(ctx context.Context, path string, data map[string]any) error {
	_, err := c.Post(ctx, path, data)
	return err
}

// DeleteSecret deletes the secret at path.
func (c *Client) DeleteSecret(ctx context.Context, path string) error {
	_, err := c.Request(ctx, &Request{Method: http.MethodDelete, URL: path})
	return err
}

// ListSecrets returns the keys below path using the LIST verb.
func (c *Client) ListSecrets(ctx context.Context, path string) ([]string, error) {
	raw, err := c.Request(ctx, &Request{Method: "LIST", URL: path})
	if err != nil || raw == nil {
		return nil, err
	}

	var parsed struct {
		Data struct {
			Keys []string `json:"keys"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parsing list response: %w", err)
	}
	return parsed.Data.Keys, nil
}
