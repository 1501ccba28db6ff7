// SPDX-FileCopyrightText: Copyright 2026 Carabiner Systems, Inc
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/carabiner-dev/command"
	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/spf13/cobra"

	"github.com/carabiner-dev/belay/pkg/client"
	"github.com/carabiner-dev/belay/pkg/client/config"
	"github.com/carabiner-dev/belay/pkg/client/credentials"
	"github.com/carabiner-dev/belay/pkg/client/storage"
)

var _ command.OptionsSet = (*ClientOptions)(nil)

var defaultClientOptions = ClientOptions{}

// ClientOptions are the connection options shared by every command
// that talks to the vault
type ClientOptions struct {
	Server        string
	AuthMethod    string
	AuthOptions   map[string]string
	CACert        string
	SkipTLSVerify bool
	Verbose       bool
}

func (co *ClientOptions) Config() *command.OptionsSetConfig {
	return nil
}

// Validate the options set
func (co *ClientOptions) Validate() error {
	var errs []error
	if co.SkipTLSVerify && co.CACert != "" {
		errs = append(errs, errors.New("--ca-cert and --skip-tls-verify cannot be combined"))
	}
	return errors.Join(errs...)
}

func (co *ClientOptions) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&co.Server, "server", defaultClientOptions.Server, "Vault server URL (or VAULT_ADDR)")
	cmd.PersistentFlags().StringVar(&co.AuthMethod, "auth-method", "", "Auth method to log in with (kubernetes, approle, jwt, oidc)")
	cmd.PersistentFlags().StringToStringVar(&co.AuthOptions, "auth-option", nil, "Auth method option as key=value (repeatable)")
	cmd.PersistentFlags().StringVar(&co.CACert, "ca-cert", "", "Path to a PEM bundle to verify the server certificate")
	cmd.PersistentFlags().BoolVar(&co.SkipTLSVerify, "skip-tls-verify", false, "Skip TLS certificate verification (insecure)")
	cmd.PersistentFlags().BoolVarP(&co.Verbose, "verbose", "v", false, "Log requests and token renewals to stderr")
}

// resolveConfig merges the config file and environment with the
// command line flags, flags winning
func (co *ClientOptions) resolveConfig() (*config.Config, error) {
	cfg, err := config.LoadWithDefaults()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if co.Server != "" {
		cfg.Server = co.Server
	}
	if co.AuthMethod != "" {
		cfg.AuthMethod = co.AuthMethod
	}
	if len(co.AuthOptions) > 0 {
		if cfg.AuthOptions == nil {
			cfg.AuthOptions = map[string]string{}
		}
		for k, v := range co.AuthOptions {
			cfg.AuthOptions[k] = v
		}
	}
	if co.CACert != "" {
		cfg.CACert = co.CACert
	}
	if co.SkipTLSVerify {
		cfg.SkipTLSVerify = true
	}

	return cfg, nil
}

// buildClient creates a vault client for cfg, reusing a token cached by
// a previous login for the server while it stays clear of the renewal
// window
func (co *ClientOptions) buildClient(ctx context.Context, cfg *config.Config, extra ...client.Option) (*client.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	token := cfg.Token
	if token == "" {
		if store, err := storage.NewTokenStorage(); err == nil {
			if cached, err := store.LoadToken(ctx, cfg.Server); err == nil &&
				cached.TimeUntilExpiry() > credentials.DefaultRenewalCliff {
				token = cached.Token
			}
		}
	}

	opts := []client.Option{}
	if token != "" {
		opts = append(opts, client.WithToken(token))
	} else {
		opts = append(opts, client.WithAuthMethod(cfg.AuthMethod, cfg.AuthOptions))
	}
	if cfg.CACert != "" {
		opts = append(opts, client.WithCACert(cfg.CACert))
	}
	if cfg.SkipTLSVerify {
		opts = append(opts, client.WithSkipTLSVerify(true))
	}
	if co.Verbose {
		opts = append(opts, client.WithLogger(stderrLogger()))
	}
	opts = append(opts, extra...)

	return client.New(cfg.Server, opts...)
}

// stderrLogger builds the logger behind --verbose
func stderrLogger() logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(os.Stderr, "%s: %s\n", prefix, args)
		} else {
			fmt.Fprintln(os.Stderr, args)
		}
	}, funcr.Options{Verbosity: 2})
}
