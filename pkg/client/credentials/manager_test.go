// SPDX-FileCopyrightText: Copyright 2026 Carabiner Systems, Inc
// SPDX-License-Identifier: Apache-2.0

package credentials

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/carabiner-dev/belay/pkg/client/auth"
)

type fakeConn struct{}

func (f *fakeConn) BaseURL() string                  { return "https://vault.test/v1" }
func (f *fakeConn) HTTPClient() (*http.Client, error) { return http.DefaultClient, nil }

// fakeStrategy counts logins and returns a canned lease or error.
type fakeStrategy struct {
	mu    sync.Mutex
	calls int
	lease *auth.Lease
	err   error
	delay time.Duration
}

func (f *fakeStrategy) Name() string { return "fake" }

func (f *fakeStrategy) Login(ctx context.Context, conn auth.Conn) (*auth.Lease, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.lease, nil
}

func (f *fakeStrategy) loginCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestTokenCacheHit(t *testing.T) {
	strategy := &fakeStrategy{lease: &auth.Lease{Token: "tok-fresh", TTL: time.Hour}}
	m := NewManager(&fakeConn{}, strategy, WithToken("tok-cached", time.Hour))

	token, err := m.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error: %v", err)
	}
	if token != "tok-cached" {
		t.Errorf("Token() = %q, want %q", token, "tok-cached")
	}
	if strategy.loginCalls() != 0 {
		t.Errorf("strategy was invoked %d times, want 0", strategy.loginCalls())
	}
}

func TestTokenInitialLogin(t *testing.T) {
	strategy := &fakeStrategy{lease: &auth.Lease{Token: "tok-1", TTL: time.Hour}}
	m := NewManager(&fakeConn{}, strategy)

	ctx := context.Background()

	token, err := m.Token(ctx)
	if err != nil {
		t.Fatalf("Token() error: %v", err)
	}
	if token != "tok-1" {
		t.Errorf("Token() = %q, want %q", token, "tok-1")
	}
	if strategy.loginCalls() != 1 {
		t.Errorf("strategy was invoked %d times, want 1", strategy.loginCalls())
	}

	// Second call should come from cache
	if _, err := m.Token(ctx); err != nil {
		t.Fatalf("Token() error: %v", err)
	}
	if strategy.loginCalls() != 1 {
		t.Errorf("strategy was invoked %d times after cached call, want 1", strategy.loginCalls())
	}
}

func TestTokenRenewsInsideCliff(t *testing.T) {
	// Token still has 5s to live, but the 30s cliff forces a renewal
	strategy := &fakeStrategy{lease: &auth.Lease{Token: "tok-new", TTL: time.Hour}}
	m := NewManager(&fakeConn{}, strategy, WithToken("tok-old", 5*time.Second))

	token, err := m.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error: %v", err)
	}
	if token != "tok-new" {
		t.Errorf("Token() = %q, want %q", token, "tok-new")
	}
	if strategy.loginCalls() != 1 {
		t.Errorf("strategy was invoked %d times, want 1", strategy.loginCalls())
	}
}

func TestTokenUpdatesExpiry(t *testing.T) {
	strategy := &fakeStrategy{lease: &auth.Lease{Token: "tok-1", TTL: 3600 * time.Second}}
	m := NewManager(&fakeConn{}, strategy)

	before := time.Now()
	if _, err := m.Token(context.Background()); err != nil {
		t.Fatalf("Token() error: %v", err)
	}
	after := time.Now()

	exp := m.Expiry()
	if exp.Before(before.Add(3600 * time.Second)) {
		t.Errorf("Expiry() = %v, want at least %v", exp, before.Add(3600*time.Second))
	}
	if exp.After(after.Add(3600 * time.Second)) {
		t.Errorf("Expiry() = %v, want at most %v", exp, after.Add(3600*time.Second))
	}
}

func TestTokenStaticHorizon(t *testing.T) {
	strategy := &fakeStrategy{err: errors.New("should not be called")}
	m := NewManager(&fakeConn{}, strategy, WithToken("t-123", StaticTokenTTL))

	token, err := m.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error: %v", err)
	}
	if token != "t-123" {
		t.Errorf("Token() = %q, want %q", token, "t-123")
	}
	if strategy.loginCalls() != 0 {
		t.Errorf("strategy was invoked %d times, want 0", strategy.loginCalls())
	}

	// The static horizon keeps the token out of the cliff for weeks
	if until := time.Until(m.Expiry()); until < 30*24*time.Hour {
		t.Errorf("Expiry() only %v out, want close to %v", until, StaticTokenTTL)
	}
}

func TestTokenNoStrategy(t *testing.T) {
	m := NewManager(&fakeConn{}, nil)
	_, err := m.Token(context.Background())
	if err == nil {
		t.Fatal("Token() expected error with no strategy, got nil")
	}
}

func TestTokenErrorPolicy(t *testing.T) {
	loginErr := errors.New("login blew up")
	replaced := errors.New("replacement error")

	tests := []struct {
		name      string
		opts      []Option
		wantToken string
		wantErr   error
	}{
		{
			name:    "no policy propagates",
			opts:    nil,
			wantErr: loginErr,
		},
		{
			name: "policy replaces error",
			opts: []Option{WithErrorFunc(func(err error) error {
				return replaced
			})},
			wantErr: replaced,
		},
		{
			name: "policy swallows, no previous token",
			opts: []Option{WithErrorFunc(func(err error) error {
				return nil
			})},
			wantToken: "",
			wantErr:   nil,
		},
		{
			name: "policy swallows, stale token served",
			opts: []Option{
				WithToken("tok-stale", 5*time.Second),
				WithErrorFunc(func(err error) error {
					return nil
				}),
			},
			wantToken: "tok-stale",
			wantErr:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strategy := &fakeStrategy{err: loginErr}
			m := NewManager(&fakeConn{}, strategy, tt.opts...)

			token, err := m.Token(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Token() error = %v, want %v", err, tt.wantErr)
			}
			if token != tt.wantToken {
				t.Errorf("Token() = %q, want %q", token, tt.wantToken)
			}
			if strategy.loginCalls() != 1 {
				t.Errorf("strategy was invoked %d times, want 1", strategy.loginCalls())
			}
		})
	}
}

func TestTokenCredentialErrorBypassesPolicy(t *testing.T) {
	credErr := &auth.CredentialError{Source: "/missing/token", Err: errors.New("no such file")}
	strategy := &fakeStrategy{err: credErr}

	policyCalled := false
	m := NewManager(&fakeConn{}, strategy, WithErrorFunc(func(err error) error {
		policyCalled = true
		return nil
	}))

	_, err := m.Token(context.Background())
	if !auth.IsCredentialError(err) {
		t.Errorf("Token() error = %v, want a credential error", err)
	}
	if policyCalled {
		t.Error("error policy was invoked for a credential error")
	}
}

func TestTokenConcurrentRenewal(t *testing.T) {
	strategy := &fakeStrategy{
		lease: &auth.Lease{Token: "tok-shared", TTL: time.Hour},
		delay: 20 * time.Millisecond,
	}
	m := NewManager(&fakeConn{}, strategy)

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := m.Token(ctx)
			if err != nil {
				t.Errorf("Token() error: %v", err)
			}
			if token != "tok-shared" {
				t.Errorf("Token() = %q, want %q", token, "tok-shared")
			}
		}()
	}
	wg.Wait()

	// Renewal is serialized, the first caller logs in and the rest
	// hit the cache
	if strategy.loginCalls() != 1 {
		t.Errorf("strategy was invoked %d times, want 1", strategy.loginCalls())
	}
}
