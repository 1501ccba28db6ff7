// SPDX-FileCopyrightText: Copyright 2025 Carabiner Systems, Inc

package transport

import (
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewDefaults(t *testing.T) {
	client, err := New(nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if client.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", client.Timeout, DefaultTimeout)
	}

	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("Transport is %T, want *http.Transport", client.Transport)
	}
	if transport.TLSClientConfig.InsecureSkipVerify {
		t.Error("certificate verification is disabled by default")
	}
}

func TestNewTimeout(t *testing.T) {
	client, err := New(&Config{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if client.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", client.Timeout)
	}
}

func TestNewMissingCAFile(t *testing.T) {
	_, err := New(&Config{CACertPath: filepath.Join(t.TempDir(), "no-such-ca.pem")})
	if err == nil {
		t.Fatal("New() expected error for missing CA file, got nil")
	}
}

func TestNewSkipVerify(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer srv.Close()

	t.Run("verification rejects the self-signed cert", func(t *testing.T) {
		client, err := New(&Config{})
		if err != nil {
			t.Fatalf("New() error: %v", err)
		}
		if _, err := client.Get(srv.URL); err == nil {
			t.Error("Get() expected TLS error against self-signed server, got nil")
		}
	})

	t.Run("skip verify connects", func(t *testing.T) {
		client, err := New(&Config{SkipVerify: true})
		if err != nil {
			t.Fatalf("New() error: %v", err)
		}
		resp, err := client.Get(srv.URL)
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		defer resp.Body.Close() //nolint:errcheck
		body, _ := io.ReadAll(resp.Body)
		if string(body) != "ok" {
			t.Errorf("Get() body = %q, want %q", body, "ok")
		}
	})
}

func TestNewCACert(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer srv.Close()

	// Trust exactly the test server's certificate
	caPath := filepath.Join(t.TempDir(), "ca.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: srv.Certificate().Raw,
	})
	if err := os.WriteFile(caPath, pemBytes, 0o600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	client, err := New(&Config{CACertPath: caPath})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Errorf("Get() body = %q, want %q", body, "ok")
	}
}
