// SPDX-FileCopyrightText: Copyright 2026 Carabiner Systems, Inc
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestNewUnknownMethod(t *testing.T) {
	_, err := New("sherpa", nil)
	if err == nil {
		t.Fatal("New() expected error for unknown method, got nil")
	}
	if !strings.Contains(err.Error(), `unknown auth method "sherpa"`) {
		t.Errorf("New() error = %q, want it to name the method", err)
	}
	// The error lists what is available
	if !strings.Contains(err.Error(), MethodKubernetes) {
		t.Errorf("New() error = %q, want it to list registered methods", err)
	}
}

func TestNewBuiltins(t *testing.T) {
	tests := []struct {
		method  string
		options map[string]string
	}{
		{MethodKubernetes, map[string]string{"role": "r"}},
		{MethodAppRole, map[string]string{"role_id": "id", "secret_id": "s"}},
		{MethodJWT, map[string]string{"role": "r", "token_path": "/tmp/jwt"}},
		{MethodOIDC, map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			s, err := New(tt.method, tt.options)
			if err != nil {
				t.Fatalf("New(%q) error: %v", tt.method, err)
			}
			if s.Name() != tt.method {
				t.Errorf("Name() = %q, want %q", s.Name(), tt.method)
			}
		})
	}
}

func TestRegisterCustom(t *testing.T) {
	Register("test-custom", func(options map[string]string) (Strategy, error) {
		return FromFunc("test-custom", func(ctx context.Context, conn Conn) (*Lease, error) {
			return &Lease{Token: "tok-custom", TTL: time.Minute}, nil
		}), nil
	})

	s, err := New("test-custom", nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if s.Name() != "test-custom" {
		t.Errorf("Name() = %q, want %q", s.Name(), "test-custom")
	}

	lease, err := s.Login(context.Background(), nil)
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if lease.Token != "tok-custom" {
		t.Errorf("lease.Token = %q, want %q", lease.Token, "tok-custom")
	}

	if !slices.Contains(Methods(), "test-custom") {
		t.Error("Methods() does not list the registered method")
	}
}

func TestMethodsSorted(t *testing.T) {
	methods := Methods()
	if !slices.IsSorted(methods) {
		t.Errorf("Methods() = %v, want sorted", methods)
	}
	for _, want := range []string{MethodAppRole, MethodJWT, MethodKubernetes, MethodOIDC} {
		if !slices.Contains(methods, want) {
			t.Errorf("Methods() = %v, missing %q", methods, want)
		}
	}
}

func TestNewAppRole(t *testing.T) {
	tests := []struct {
		name        string
		options     map[string]string
		errContains string
	}{
		{
			name:    "role and secret",
			options: map[string]string{"role_id": "id", "secret_id": "s"},
		},
		{
			name:    "role and secret path",
			options: map[string]string{"role_id": "id", "secret_id_path": "/tmp/secret"},
		},
		{
			name:        "missing role_id",
			options:     map[string]string{"secret_id": "s"},
			errContains: `"role_id" option is required`,
		},
		{
			name:        "missing secret",
			options:     map[string]string{"role_id": "id"},
			errContains: `one of "secret_id" or "secret_id_path"`,
		},
		{
			name:        "unknown option",
			options:     map[string]string{"role_id": "id", "secret_id": "s", "paths": "x"},
			errContains: `unknown option "paths"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAppRole(tt.options)
			if tt.errContains != "" {
				if err == nil {
					t.Fatalf("NewAppRole() expected error containing %q, got nil", tt.errContains)
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("NewAppRole() error = %q, want it to contain %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewAppRole() error: %v", err)
			}
		})
	}
}

func TestAppRoleLogin(t *testing.T) {
	var gotPath string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"auth":{"client_token":"tok-ar","lease_duration":600}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	a := &AppRole{RoleID: "app-1", SecretID: "s3cret"}
	lease, err := a.Login(context.Background(), newTestConn(srv))
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}

	if gotPath != "/v1/auth/approle/login" {
		t.Errorf("login hit %s, want /v1/auth/approle/login", gotPath)
	}

	var body map[string]string
	if err := json.Unmarshal(gotBody, &body); err != nil {
		t.Fatalf("request body is not JSON: %v", err)
	}
	if body["role_id"] != "app-1" || body["secret_id"] != "s3cret" {
		t.Errorf("request body = %s, want role_id=app-1 secret_id=s3cret", gotBody)
	}

	if lease.Token != "tok-ar" {
		t.Errorf("lease.Token = %q, want %q", lease.Token, "tok-ar")
	}
}

func TestNewJWT(t *testing.T) {
	t.Setenv("ACTIONS_ID_TOKEN_REQUEST_URL", "") // isolate from a real runner env

	tests := []struct {
		name        string
		options     map[string]string
		errContains string
	}{
		{
			name:    "token path",
			options: map[string]string{"role": "ci", "token_path": "/tmp/jwt"},
		},
		{
			name:        "missing role",
			options:     map[string]string{"token_path": "/tmp/jwt"},
			errContains: `"role" option is required`,
		},
		{
			name:        "no source",
			options:     map[string]string{"role": "ci"},
			errContains: `one of "token_path" or "github_actions"`,
		},
		{
			name:        "github actions outside actions",
			options:     map[string]string{"role": "ci", "github_actions": "true"},
			errContains: "ACTIONS_ID_TOKEN_REQUEST_URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewJWT(tt.options)
			if tt.errContains != "" {
				if err == nil {
					t.Fatalf("NewJWT() expected error containing %q, got nil", tt.errContains)
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("NewJWT() error = %q, want it to contain %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewJWT() error: %v", err)
			}
		})
	}
}

func TestJWTLogin(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"auth":{"client_token":"tok-jwt","lease_duration":900}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	j := &JWT{Role: "ci", Source: NewStaticSource("header.payload.sig")}
	lease, err := j.Login(context.Background(), newTestConn(srv))
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}

	var body map[string]string
	if err := json.Unmarshal(gotBody, &body); err != nil {
		t.Fatalf("request body is not JSON: %v", err)
	}
	if body["jwt"] != "header.payload.sig" || body["role"] != "ci" {
		t.Errorf("request body = %s, want the jwt and role", gotBody)
	}
	if lease.TTL != 900*time.Second {
		t.Errorf("lease.TTL = %v, want 15m", lease.TTL)
	}
}
