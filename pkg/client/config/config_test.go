// SPDX-FileCopyrightText: Copyright 2025 Carabiner Systems, Inc

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearVaultEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"VAULT_ADDR", "VAULT_TOKEN", "VAULT_CACERT", "VAULT_SKIP_VERIFY",
		"BELAY_SERVER", "BELAY_AUTH_METHOD", "BELAY_AUTH_OPTIONS", "BELAY_TOKEN",
	} {
		t.Setenv(name, "")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := `server: https://vault.example.com/v1
auth_method: jwt
auth_options:
  role: ci
  token_path: /tmp/jwt
ca_cert: /etc/ssl/vault-ca.pem
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server != "https://vault.example.com/v1" {
		t.Errorf("Server = %q, want the configured URL", cfg.Server)
	}
	if cfg.AuthMethod != "jwt" {
		t.Errorf("AuthMethod = %q, want %q", cfg.AuthMethod, "jwt")
	}
	if cfg.AuthOptions["role"] != "ci" || cfg.AuthOptions["token_path"] != "/tmp/jwt" {
		t.Errorf("AuthOptions = %v, want role and token_path", cfg.AuthOptions)
	}
	if cfg.CACert != "/etc/ssl/vault-ca.pem" {
		t.Errorf("CACert = %q, want the configured path", cfg.CACert)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "no-such-config.yaml"))
	if !os.IsNotExist(err) {
		t.Errorf("Load() error = %v, want a not-exist error", err)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for malformed YAML, got nil")
	}
}

func TestApplyEnvVars(t *testing.T) {
	t.Run("vault variables", func(t *testing.T) {
		clearVaultEnv(t)
		t.Setenv("VAULT_ADDR", "https://vault.env/v1")
		t.Setenv("VAULT_TOKEN", "env-token")
		t.Setenv("VAULT_SKIP_VERIFY", "true")

		cfg := &Config{Server: "https://vault.file/v1"}
		cfg.ApplyEnvVars()

		if cfg.Server != "https://vault.env/v1" {
			t.Errorf("Server = %q, env var should win over the file", cfg.Server)
		}
		if cfg.Token != "env-token" {
			t.Errorf("Token = %q, want %q", cfg.Token, "env-token")
		}
		if !cfg.SkipTLSVerify {
			t.Error("SkipTLSVerify = false, want true")
		}
	})

	t.Run("belay variables win over vault variables", func(t *testing.T) {
		clearVaultEnv(t)
		t.Setenv("VAULT_ADDR", "https://vault.env/v1")
		t.Setenv("BELAY_SERVER", "https://belay.env/v1")
		t.Setenv("VAULT_TOKEN", "vault-token")
		t.Setenv("BELAY_TOKEN", "belay-token")

		cfg := &Config{}
		cfg.ApplyEnvVars()

		if cfg.Server != "https://belay.env/v1" {
			t.Errorf("Server = %q, BELAY_SERVER should win", cfg.Server)
		}
		if cfg.Token != "belay-token" {
			t.Errorf("Token = %q, BELAY_TOKEN should win", cfg.Token)
		}
	})

	t.Run("auth options", func(t *testing.T) {
		clearVaultEnv(t)
		t.Setenv("BELAY_AUTH_METHOD", "approle")
		t.Setenv("BELAY_AUTH_OPTIONS", "role_id=app-1, secret_id_path=/tmp/secret")

		cfg := &Config{}
		cfg.ApplyEnvVars()

		if cfg.AuthMethod != "approle" {
			t.Errorf("AuthMethod = %q, want %q", cfg.AuthMethod, "approle")
		}
		if cfg.AuthOptions["role_id"] != "app-1" {
			t.Errorf(`AuthOptions["role_id"] = %q, want %q`, cfg.AuthOptions["role_id"], "app-1")
		}
		if cfg.AuthOptions["secret_id_path"] != "/tmp/secret" {
			t.Errorf(`AuthOptions["secret_id_path"] = %q, want %q`, cfg.AuthOptions["secret_id_path"], "/tmp/secret")
		}
	})
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for missing server, got nil")
	}

	cfg.Server = "https://vault.example.com/v1"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestGetMethodDefaults(t *testing.T) {
	tests := []struct {
		method       string
		wantMount    string
		wantRequired []string
	}{
		{"kubernetes", "kubernetes", []string{"role"}},
		{"approle", "approle", []string{"role_id"}},
		{"jwt", "jwt", []string{"role"}},
		{"oidc", "oidc", []string{}},
		{"anything-else", "kubernetes", []string{"role"}},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			defaults := GetMethodDefaults(tt.method)
			if defaults.MountPath != tt.wantMount {
				t.Errorf("MountPath = %q, want %q", defaults.MountPath, tt.wantMount)
			}
			if len(defaults.RequiredOptions) != len(tt.wantRequired) {
				t.Errorf("RequiredOptions = %v, want %v", defaults.RequiredOptions, tt.wantRequired)
			}
		})
	}
}
