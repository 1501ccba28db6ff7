// SPDX-FileCopyrightText: Copyright 2026 Carabiner Systems, Inc
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrorHandler is the error handling policy a client applies to failed
// logins and failed requests. It receives the failure and returns what
// the caller should see: the same error, a replacement, or nil to
// suppress the failure entirely.
type ErrorHandler func(err error) error

// RequestError reports a vault request that failed, either on the wire
// or with a non-success status.
type RequestError struct {
	// Method and URL identify the request.
	Method string
	URL    string

	// StatusCode is the HTTP status, or zero when no response arrived.
	StatusCode int

	// Body carries the vault's error text, if any.
	Body string

	// RequestBody is the JSON payload that was sent, if any.
	RequestBody string

	// Token is the vault token the request carried. It appears in the
	// diagnostics so an operator can match the failure to a lease.
	Token string

	// Err is the underlying error, if any.
	Err error
}

func (e *RequestError) Error() string {
	var b strings.Builder
	switch {
	case e.Err != nil:
		fmt.Fprintf(&b, "%s %s failed: %v", e.Method, e.URL, e.Err)
	case e.Body != "":
		fmt.Fprintf(&b, "%s %s failed (HTTP %d): %s", e.Method, e.URL, e.StatusCode, e.Body)
	default:
		fmt.Fprintf(&b, "%s %s failed (HTTP %d)", e.Method, e.URL, e.StatusCode)
	}
	if e.RequestBody != "" {
		fmt.Fprintf(&b, " (request body: %s)", e.RequestBody)
	}
	if e.Token != "" {
		fmt.Fprintf(&b, " (token: %s)", e.Token)
	}
	return b.String()
}

func (e *RequestError) Unwrap() error { return e.Err }

// IsRequestError reports whether err is (or wraps) a RequestError.
func IsRequestError(err error) bool {
	var re *RequestError
	return errors.As(err, &re)
}

// errorBody extracts the error strings vaults return as
// {"errors": [...]}, falling back to the raw body.
func errorBody(raw []byte) string {
	var parsed struct {
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && len(parsed.Errors) > 0 {
		return strings.Join(parsed.Errors, "; ")
	}
	return strings.TrimSpace(string(raw))
}
