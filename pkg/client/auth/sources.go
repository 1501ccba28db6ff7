// SPDX-FileCopyrightText: Copyright 2026 Carabiner Systems, Inc
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// CredentialSource yields the local credential a strategy trades for a
// vault token: a service account JWT, an AppRole secret ID, a workload
// identity token.
type CredentialSource interface {
	// Credential returns the current credential value.
	Credential(ctx context.Context) (string, error)
}

// CredentialError reports that a strategy could not read its local
// credential material, or that the strategy is missing configuration it
// needs to do so. These errors mean no login attempt can succeed until
// the process environment changes, so the client surfaces them directly
// instead of routing them through the error handling policy.
type CredentialError struct {
	// Source describes where the credential was expected: a file path or
	// an environment variable. Empty for configuration errors.
	Source string

	// Err is the underlying error.
	Err error
}

func (e *CredentialError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("reading credential from %s: %v", e.Source, e.Err)
	}
	return e.Err.Error()
}

func (e *CredentialError) Unwrap() error { return e.Err }

// IsCredentialError reports whether err is (or wraps) a CredentialError.
func IsCredentialError(err error) bool {
	var ce *CredentialError
	return errors.As(err, &ce)
}

// StaticSource returns a fixed credential. Useful for testing.
type StaticSource struct {
	value string
}

// NewStaticSource creates a CredentialSource that always returns the
// same value.
func NewStaticSource(value string) *StaticSource {
	return &StaticSource{value: value}
}

func (s *StaticSource) Credential(_ context.Context) (string, error) {
	if s.value == "" {
		return "", &CredentialError{Err: errors.New("static credential is empty")}
	}
	return s.value, nil
}

// FileSource reads a credential from a file. The file is read on each
// call to Credential, so rotated files (projected service account tokens
// in particular) are picked up without restarting.
type FileSource struct {
	path string
}

// NewFileSource creates a CredentialSource that reads from a file.
// Surrounding whitespace is trimmed.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (f *FileSource) Credential(_ context.Context) (string, error) {
	if f.path == "" {
		return "", &CredentialError{Err: errors.New("credential file path is empty")}
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return "", &CredentialError{Source: f.path, Err: err}
	}

	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", &CredentialError{Source: f.path, Err: errors.New("file is empty")}
	}

	return value, nil
}

// EnvSource reads a credential from an environment variable.
type EnvSource struct {
	envVar string
}

// NewEnvSource creates a CredentialSource that reads from an
// environment variable.
func NewEnvSource(envVar string) *EnvSource {
	return &EnvSource{envVar: envVar}
}

func (e *EnvSource) Credential(_ context.Context) (string, error) {
	if e.envVar == "" {
		return "", &CredentialError{Err: errors.New("environment variable name is empty")}
	}

	value := os.Getenv(e.envVar)
	if value == "" {
		return "", &CredentialError{Source: "$" + e.envVar, Err: errors.New("variable is not set or empty")}
	}

	return strings.TrimSpace(value), nil
}

// ChainSource tries sources in order until one yields a credential.
type ChainSource struct {
	sources []CredentialSource
}

// NewChainSource creates a CredentialSource that tries each source in
// order. The first source that returns a value wins.
func NewChainSource(sources ...CredentialSource) *ChainSource {
	return &ChainSource{sources: sources}
}

func (c *ChainSource) Credential(ctx context.Context) (string, error) {
	if len(c.sources) == 0 {
		return "", &CredentialError{Err: errors.New("no credential sources configured")}
	}

	var errs []error
	for _, source := range c.sources {
		value, err := source.Credential(ctx)
		if err == nil && value != "" {
			return value, nil
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	return "", &CredentialError{Err: fmt.Errorf("all credential sources failed: %w", errors.Join(errs...))}
}

// ActionsSource fetches an OIDC identity token from the GitHub Actions
// runtime, for vaults whose jwt auth mount trusts the Actions issuer.
type ActionsSource struct {
	RequestURL   string // From ACTIONS_ID_TOKEN_REQUEST_URL
	RequestToken string // From ACTIONS_ID_TOKEN_REQUEST_TOKEN
	Audience     string // Optional audience for the token

	// HTTPClient is the client for the Actions API. Defaults to a plain
	// client with a 30 second timeout.
	HTTPClient *http.Client
}

// actionsResponse is the payload the Actions OIDC endpoint returns.
type actionsResponse struct {
	Value string `json:"value"`
}

// NewActionsSource creates a CredentialSource backed by the GitHub
// Actions OIDC endpoint, reading the runner environment variables.
func NewActionsSource(audience string) (*ActionsSource, error) {
	requestURL := os.Getenv("ACTIONS_ID_TOKEN_REQUEST_URL")
	if requestURL == "" {
		return nil, &CredentialError{Err: errors.New("ACTIONS_ID_TOKEN_REQUEST_URL environment variable not set (are you running in GitHub Actions?)")}
	}

	requestToken := os.Getenv("ACTIONS_ID_TOKEN_REQUEST_TOKEN")
	if requestToken == "" {
		return nil, &CredentialError{Err: errors.New("ACTIONS_ID_TOKEN_REQUEST_TOKEN environment variable not set (are you running in GitHub Actions?)")}
	}

	return &ActionsSource{
		RequestURL:   requestURL,
		RequestToken: requestToken,
		Audience:     audience,
	}, nil
}

func (a *ActionsSource) Credential(ctx context.Context) (string, error) {
	reqURL := a.RequestURL
	if a.Audience != "" {
		parsedURL, err := url.Parse(reqURL)
		if err != nil {
			return "", &CredentialError{Source: reqURL, Err: fmt.Errorf("parsing request URL: %w", err)}
		}
		query := parsedURL.Query()
		query.Set("audience", a.Audience)
		parsedURL.RawQuery = query.Encode()
		reqURL = parsedURL.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", &CredentialError{Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+a.RequestToken)

	httpClient := a.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", &CredentialError{Source: a.RequestURL, Err: fmt.Errorf("requesting token: %w", err)}
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &CredentialError{Source: a.RequestURL, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &CredentialError{Source: a.RequestURL, Err: fmt.Errorf("actions API returned %d: %s", resp.StatusCode, string(body))}
	}

	var parsed actionsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &CredentialError{Source: a.RequestURL, Err: fmt.Errorf("parsing response: %w", err)}
	}

	if parsed.Value == "" {
		return "", &CredentialError{Source: a.RequestURL, Err: errors.New("empty token in response")}
	}

	return parsed.Value, nil
}

// RunningInActions checks if the process runs in GitHub Actions with an
// OIDC endpoint available.
func RunningInActions() bool {
	return os.Getenv("GITHUB_ACTIONS") == "true" &&
		os.Getenv("ACTIONS_ID_TOKEN_REQUEST_URL") != "" &&
		os.Getenv("ACTIONS_ID_TOKEN_REQUEST_TOKEN") != ""
}
