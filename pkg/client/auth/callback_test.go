// SPDX-FileCopyrightText: Copyright 2025 Carabiner Systems, Inc

package auth

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestCallbackServer(t *testing.T) {
	cs, err := newCallbackServer("127.0.0.1:0")
	if err != nil {
		t.Fatalf("newCallbackServer() error: %v", err)
	}
	cs.start()
	defer cs.shutdown(context.Background()) //nolint:errcheck

	if !strings.HasSuffix(cs.redirectURL(), "/oidc/callback") {
		t.Errorf("redirectURL() = %q, want it to end in /oidc/callback", cs.redirectURL())
	}

	resp, err := http.Get(cs.redirectURL() + "?code=abc&state=xyz")
	if err != nil {
		t.Fatalf("GET callback error: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		t.Errorf("callback status = %d, want 200", resp.StatusCode)
	}
	page, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(page), "Login Complete") {
		t.Error("success page does not tell the user the login completed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	result, err := cs.wait(ctx)
	if err != nil {
		t.Fatalf("wait() error: %v", err)
	}
	if result.Code != "abc" || result.State != "xyz" {
		t.Errorf("wait() = %+v, want code=abc state=xyz", result)
	}
}

func TestCallbackServerProviderError(t *testing.T) {
	cs, err := newCallbackServer("127.0.0.1:0")
	if err != nil {
		t.Fatalf("newCallbackServer() error: %v", err)
	}
	cs.start()
	defer cs.shutdown(context.Background()) //nolint:errcheck

	resp, err := http.Get(cs.redirectURL() + "?error=access_denied&error_description=nope")
	if err != nil {
		t.Fatalf("GET callback error: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("callback status = %d, want 400", resp.StatusCode)
	}
	page, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(page), "access_denied") {
		t.Error("error page does not show the provider error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	result, err := cs.wait(ctx)
	if err != nil {
		t.Fatalf("wait() error: %v", err)
	}
	if result.Error != "access_denied" {
		t.Errorf("result.Error = %q, want %q", result.Error, "access_denied")
	}
}

func TestCallbackServerFirstResultWins(t *testing.T) {
	cs, err := newCallbackServer("127.0.0.1:0")
	if err != nil {
		t.Fatalf("newCallbackServer() error: %v", err)
	}
	cs.start()
	defer cs.shutdown(context.Background()) //nolint:errcheck

	for _, code := range []string{"first", "second"} {
		resp, err := http.Get(cs.redirectURL() + "?code=" + code)
		if err != nil {
			t.Fatalf("GET callback error: %v", err)
		}
		resp.Body.Close() //nolint:errcheck
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	result, err := cs.wait(ctx)
	if err != nil {
		t.Fatalf("wait() error: %v", err)
	}
	if result.Code != "first" {
		t.Errorf("result.Code = %q, want the first callback to win", result.Code)
	}
}

func TestCallbackServerWaitCancelled(t *testing.T) {
	cs, err := newCallbackServer("127.0.0.1:0")
	if err != nil {
		t.Fatalf("newCallbackServer() error: %v", err)
	}
	cs.start()
	defer cs.shutdown(context.Background()) //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = cs.wait(ctx)
	if err == nil {
		t.Fatal("wait() expected error on context expiry, got nil")
	}
}
