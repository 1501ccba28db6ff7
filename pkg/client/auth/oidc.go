// SPDX-FileCopyrightText: Copyright 2026 Carabiner Systems, Inc
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"time"
)

const (
	// MethodOIDC names the interactive oidc auth method.
	MethodOIDC = "oidc"

	// DefaultListenAddress is where the local callback server binds.
	// Port 8250 is the redirect target OIDC providers are conventionally
	// configured to allow for vault command line logins.
	DefaultListenAddress = "127.0.0.1:8250"

	// DefaultLoginTimeout bounds the wait for the user to finish the
	// browser flow.
	DefaultLoginTimeout = 2 * time.Minute
)

// OIDC authenticates interactively: it asks the vault for a provider
// authorization URL, opens it in the user's browser, receives the
// redirect on a local listener and completes the login through the
// vault's oidc callback endpoint.
type OIDC struct {
	// Role is the vault role to log in as. Optional when the oidc mount
	// has a default role.
	Role string

	// MountPath overrides the auth mount path. Defaults to "oidc".
	MountPath string

	// ListenAddress is where the local callback server binds. Defaults
	// to DefaultListenAddress.
	ListenAddress string

	// Timeout bounds the whole browser round trip. Defaults to
	// DefaultLoginTimeout.
	Timeout time.Duration

	// OpenURL opens the authorization URL in a browser. Defaults to the
	// system browser; tests replace it.
	OpenURL func(url string) error
}

// NewOIDC builds the strategy from its options. Supported keys:
//
//	role            vault role to log in as
//	mount_path      overrides the auth mount path
//	listen_address  local address for the browser redirect
func NewOIDC(options map[string]string) (Strategy, error) {
	if err := checkOptions(options, "role", "mount_path", "listen_address"); err != nil {
		return nil, err
	}
	return &OIDC{
		Role:          options["role"],
		MountPath:     options["mount_path"],
		ListenAddress: options["listen_address"],
	}, nil
}

// Name returns the auth method name.
func (o *OIDC) Name() string { return MethodOIDC }

// authURLRequest asks the vault to start an OIDC flow.
type authURLRequest struct {
	Role        string `json:"role,omitempty"`
	RedirectURI string `json:"redirect_uri"`
	ClientNonce string `json:"client_nonce"`
}

type authURLResponse struct {
	Data struct {
		AuthURL string `json:"auth_url"`
	} `json:"data"`
}

// Login runs the interactive browser flow.
func (o *OIDC) Login(ctx context.Context, conn Conn) (*Lease, error) {
	httpClient, err := conn.HTTPClient()
	if err != nil {
		return nil, fmt.Errorf("building transport: %w", err)
	}

	timeout := o.Timeout
	if timeout <= 0 {
		timeout = DefaultLoginTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	nonce, err := randomNonce()
	if err != nil {
		return nil, fmt.Errorf("generating client nonce: %w", err)
	}

	addr := o.ListenAddress
	if addr == "" {
		addr = DefaultListenAddress
	}
	cs, err := newCallbackServer(addr)
	if err != nil {
		return nil, err
	}
	cs.start()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		cs.shutdown(shutdownCtx) //nolint:errcheck
	}()

	authURL, err := o.fetchAuthURL(ctx, conn, httpClient, cs.redirectURL(), nonce)
	if err != nil {
		return nil, err
	}

	openURL := o.OpenURL
	if openURL == nil {
		openURL = openBrowser
	}
	fmt.Fprintf(os.Stderr, "Complete the login in your browser. If it does not open, visit:\n\n  %s\n\n", authURL)
	if err := openURL(authURL); err != nil {
		fmt.Fprintf(os.Stderr, "(could not open browser: %v)\n", err)
	}

	result, err := cs.wait(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("login timed out after %v, please try again", timeout)
		}
		return nil, fmt.Errorf("waiting for browser callback: %w", err)
	}

	if result.Error != "" {
		return nil, &LoginError{Path: o.callbackPath(), Err: fmt.Errorf("provider returned %q", result.Error)}
	}
	if result.Code == "" {
		return nil, &LoginError{Path: o.callbackPath(), Err: errors.New("callback did not include an authorization code")}
	}

	return o.completeLogin(ctx, conn, httpClient, result, nonce)
}

// fetchAuthURL asks the vault for the provider authorization URL.
func (o *OIDC) fetchAuthURL(ctx context.Context, conn Conn, httpClient *http.Client, redirectURI, nonce string) (string, error) {
	path := "auth/" + o.mount() + "/oidc/auth_url"

	payload, err := json.Marshal(&authURLRequest{
		Role:        o.Role,
		RedirectURI: redirectURI,
		ClientNonce: nonce,
	})
	if err != nil {
		return "", fmt.Errorf("encoding auth_url request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, conn.BaseURL()+"/"+path, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating auth_url request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", &LoginError{Path: path, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &LoginError{Path: path, StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &LoginError{Path: path, StatusCode: resp.StatusCode, Body: serverError(raw)}
	}

	var parsed authURLResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &LoginError{Path: path, Err: fmt.Errorf("parsing response: %w", err)}
	}
	if parsed.Data.AuthURL == "" {
		return "", &LoginError{Path: path, Err: errors.New("response is missing auth_url (is the oidc mount configured?)")}
	}

	return parsed.Data.AuthURL, nil
}

// completeLogin trades the authorization code for a vault token through
// the mount's callback endpoint.
func (o *OIDC) completeLogin(ctx context.Context, conn Conn, httpClient *http.Client, result callbackResult, nonce string) (*Lease, error) {
	path := o.callbackPath()

	query := url.Values{}
	query.Set("code", result.Code)
	query.Set("state", result.State)
	query.Set("client_nonce", nonce)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, conn.BaseURL()+"/"+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating callback request: %w", err)
	}
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

func (o *OIDC) callbackPath() string {
	return "auth/" + o.mount() + "/oidc/callback"
}

func (o *OIDC) mount() string {
	if o.MountPath != "" {
		return o.MountPath
	}
	return MethodOIDC
}

// randomNonce returns 32 bytes of base64url entropy.
func randomNonce() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// openBrowser opens the URL in the system's default browser.
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
