// SPDX-FileCopyrightText: Copyright 2025 Carabiner Systems, Inc

package auth

import (
	"context"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"
)

// callbackResult holds the parameters the provider sends back to the
// local redirect endpoint.
type callbackResult struct {
	Code  string
	State string
	Error string
}

// callbackServer is the short-lived local HTTP server the OIDC strategy
// runs to receive the provider redirect.
type callbackServer struct {
	server   *http.Server
	listener net.Listener
	result   chan callbackResult
	once     sync.Once
}

// newCallbackServer creates a callback server bound to addr. Pass a
// ":0" port to let the OS pick one.
func newCallbackServer(addr string) (*callbackServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("creating listener on %s: %w", addr, err)
	}

	cs := &callbackServer{
		listener: listener,
		result:   make(chan callbackResult, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/oidc/callback", cs.handleCallback)

	cs.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return cs, nil
}

// start begins serving callbacks
func (cs *callbackServer) start() {
	go cs.server.Serve(cs.listener) //nolint:errcheck
}

// redirectURL returns the URL the provider should send the browser to
func (cs *callbackServer) redirectURL() string {
	return fmt.Sprintf("http://%s/oidc/callback", cs.listener.Addr().String())
}

// wait blocks until the redirect arrives or ctx expires
func (cs *callbackServer) wait(ctx context.Context) (callbackResult, error) {
	select {
	case result := <-cs.result:
		return result, nil
	case <-ctx.Done():
		return callbackResult{}, ctx.Err()
	}
}

// shutdown gracefully shuts down the server
func (cs *callbackServer) shutdown(ctx context.Context) error {
	return cs.server.Shutdown(ctx)
}

// handleCallback records the redirect parameters and renders a page the
// user can close. Only the first callback counts.
func (cs *callbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	errorParam := r.URL.Query().Get("error")

	cs.once.Do(func() {
		cs.result <- callbackResult{
			Code:  code,
			State: state,
			Error: errorParam,
		}
	})

	if errorParam != "" || code == "" {
		cs.renderErrorPage(w, errorParam, r.URL.Query().Get("error_description"))
	} else {
		cs.renderSuccessPage(w)
	}
}

func (cs *callbackServer) renderSuccessPage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	tmpl := template.Must(template.New("success").Parse(successPageTemplate))
	tmpl.Execute(w, nil) //nolint:errcheck
}

func (cs *callbackServer) renderErrorPage(w http.ResponseWriter, error, description string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)

	data := struct {
		Error       string
		Description string
	}{
		Error:       error,
		Description: description,
	}

	tmpl := template.Must(template.New("error").Parse(errorPageTemplate))
	tmpl.Execute(w, data) //nolint:errcheck
}

// HTML pages rendered in the user's browser after the redirect
const successPageTemplate = `<!DOCTYPE html>
<html>
<head>
    <title>Vault Login Complete</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            height: 100vh;
            margin: 0;
            background: linear-gradient(135deg, #0f3057 0%, #00587a 100%);
        }
        .container {
            background: white;
            padding: 3rem;
            border-radius: 10px;
            box-shadow: 0 10px 40px rgba(0,0,0,0.5);
            text-align: center;
            max-width: 400px;
        }
        h1 { color: #333; margin: 0 0 1rem 0; }
        .checkmark {
            font-size: 64px;
            color: #4CAF50;
            margin-bottom: 1rem;
        }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <div class="checkmark">✓</div>
        <h1>Vault Login Complete</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>`

const errorPageTemplate = `<!DOCTYPE html>
<html>
<head>
    <title>Vault Login Failed</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            height: 100vh;
            margin: 0;
            background: linear-gradient(135deg, #7a0000 0%, #b23a48 100%);
        }
        .container {
            background: white;
            padding: 3rem;
            border-radius: 10px;
            box-shadow: 0 10px 40px rgba(0,0,0,0.2);
            text-align: center;
            max-width: 400px;
        }
        h1 { color: #333; margin: 0 0 1rem 0; }
        .error-icon {
            font-size: 64px;
            color: #f44336;
            margin-bottom: 1rem;
        }
        p { color: #666; margin: 0; }
        .error-details {
            background: #f5f5f5;
            padding: 1rem;
            border-radius: 5px;
            margin-top: 1rem;
            font-size: 0.9em;
        }
    </style>
</head>
<body>
    <div class="container">
        <div class="error-icon">✗</div>
        <h1>Vault Login Failed</h1>
        <p>The vault could not complete the login.</p>
        {{if .Error}}
        <div class="error-details">
            <strong>Error:</strong> {{.Error}}<br>
            {{if .Description}}<strong>Details:</strong> {{.Description}}{{end}}
        </div>
        {{end}}
        <p style="margin-top: 1rem;">Please close this window and try again.</p>
    </div>
</body>
</html>`
