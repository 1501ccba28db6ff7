// SPDX-FileCopyrightText: Copyright 2025 Carabiner Systems, Inc

package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// loginRequest is the body posted to a vault login endpoint by the
// strategies that authenticate with a bearer JWT.
type loginRequest struct {
	JWT  string `json:"jwt"`
	Role string `json:"role"`
}

// loginResponse is the envelope every login endpoint returns.
type loginResponse struct {
	Auth *loginAuth `json:"auth"`
}

type loginAuth struct {
	ClientToken   string   `json:"client_token"`
	LeaseDuration int      `json:"lease_duration"`
	Renewable     bool     `json:"renewable"`
	Policies      []string `json:"policies"`
}

// LoginError reports a failed login exchange.
type LoginError struct {
	// Path is the login path relative to the vault base URL.
	Path string

	// StatusCode is the HTTP status the vault returned, or zero when the
	// exchange failed before a response arrived.
	StatusCode int

	// Body carries the vault's error text, if any.
	Body string

	// Err is the underlying error, if any.
	Err error
}

func (e *LoginError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("login to %s failed (HTTP %d): %v", e.Path, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("login to %s failed: %v", e.Path, e.Err)
	case e.Body != "":
		return fmt.Sprintf("login to %s failed (HTTP %d): %s", e.Path, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("login to %s failed (HTTP %d)", e.Path, e.StatusCode)
	}
}

func (e *LoginError) Unwrap() error { return e.Err }

// IsLoginError reports whether err is (or wraps) a LoginError.
func IsLoginError(err error) bool {
	var le *LoginError
	return errors.As(err, &le)
}

// login posts body to the mount's login endpoint and parses the lease.
func login(ctx context.Context, conn Conn, mount string, body any) (*Lease, error) {
	path := "auth/" + mount + "/login"

	httpClient, err := conn.HTTPClient()
	if err != nil {
		return nil, fmt.Errorf("building transport: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, conn.BaseURL()+"/"+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &LoginError{Path: path, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &LoginError{Path: path, StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	return parseLease(path, resp.StatusCode, raw)
}

// parseLease turns a login response into a Lease.
func parseLease(path string, statusCode int, raw []byte) (*Lease, error) {
	if statusCode != http.StatusOK {
		return nil, &LoginError{Path: path, StatusCode: statusCode, Body: serverError(raw)}
	}

	var parsed loginResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &LoginError{Path: path, Err: fmt.Errorf("parsing response: %w", err)}
	}

	if parsed.Auth == nil || parsed.Auth.ClientToken == "" {
		return nil, &LoginError{Path: path, Err: errors.New("response is missing auth.client_token")}
	}

	return &Lease{
		Token: parsed.Auth.ClientToken,
		TTL:   time.Duration(parsed.Auth.LeaseDuration) * time.Second,
	}, nil
}

// serverError extracts the error strings vaults return as {"errors": [...]},
// falling back to the raw body.
func serverError(raw []byte) string {
	var parsed struct {
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && len(parsed.Errors) > 0 {
		return strings.Join(parsed.Errors, "; ")
	}
	return strings.TrimSpace(string(raw))
}
