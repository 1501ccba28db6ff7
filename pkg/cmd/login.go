// SPDX-FileCopyrightText: Copyright 2026 Carabiner Systems, Inc
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/carabiner-dev/command"
	"github.com/spf13/cobra"

	"github.com/carabiner-dev/belay/pkg/client"
	"github.com/carabiner-dev/belay/pkg/client/config"
	"github.com/carabiner-dev/belay/pkg/client/storage"
)

var _ command.OptionsSet = (*LoginOptions)(nil)

type LoginOptions struct {
	ClientOptions
	PrintToken bool
	Force      bool
	NoSave     bool
}

var defaultLoginOptions = LoginOptions{
	PrintToken: false,
}

// Validate the options set
func (lo *LoginOptions) Validate() error {
	var errs = []error{
		lo.ClientOptions.Validate(),
	}
	return errors.Join(errs...)
}

func (lo *LoginOptions) AddFlags(cmd *cobra.Command) {
	lo.ClientOptions.AddFlags(cmd)
	cmd.PersistentFlags().BoolVar(&lo.PrintToken, "print", defaultLoginOptions.PrintToken, "Print the token to stdout")
	cmd.PersistentFlags().BoolVar(&lo.Force, "force", false, "Force a new login (ignore cached token)")
	cmd.PersistentFlags().BoolVar(&lo.NoSave, "no-save", false, "Do not cache the token on disk")
}

func (lo *LoginOptions) Config() *command.OptionsSetConfig {
	return nil
}

func AddLogin(parent *cobra.Command) {
	opts := defaultLoginOptions

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the vault and cache the token",
		Long: `Logs in to the vault with the configured auth method.

This command will:
1. Check for a cached valid token for the server (unless --force is used)
2. If no valid token exists, run the auth method's login exchange
3. Save the vault token to the XDG data directory, keyed by server

Examples:
  # Log in with the pod's service account
  belay login --server https://vault.example.com --auth-option role=my-role

  # Log in with approle
  belay login --auth-method approle --auth-option role_id=app --auth-option secret_id_path=/etc/secret-id

  # Log in through the browser
  belay login --auth-method oidc

  # Force a new login and print the token
  belay login --force --print`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := opts.resolveConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			store, err := storage.NewTokenStorage()
			if err != nil {
				return fmt.Errorf("initializing token storage: %w", err)
			}

			// Check for a cached token for this server (unless --force)
			if !opts.Force {
				if cached, err := store.LoadToken(ctx, cfg.Server); err == nil && cached.IsValid() {
					fmt.Fprintf(os.Stderr, "Using cached token for %s (expires in %v)\n",
						cfg.Server, cached.TimeUntilExpiry().Round(time.Second))
					if opts.PrintToken {
						fmt.Println(cached.Token)
					}
					return nil
				}
			}

			if err := checkRequiredOptions(cfg); err != nil {
				return err
			}

			c, err := client.New(cfg.Server, loginOptions(cfg, &opts)...)
			if err != nil {
				return err
			}

			token, err := c.Token(ctx)
			if err != nil {
				return fmt.Errorf("logging in: %w", err)
			}

			fmt.Fprintf(os.Stderr, "Login successful!\n")

			if !opts.NoSave {
				stored := &storage.StoredToken{
					Token:      token,
					IssuedAt:   time.Now(),
					ExpiresAt:  c.TokenExpiry(),
					AuthMethod: cfg.AuthMethod,
					Server:     cfg.Server,
				}
				if err := store.SaveToken(ctx, stored); err != nil {
					return fmt.Errorf("saving token: %w", err)
				}
				fmt.Fprintf(os.Stderr, "Token for %s cached (expires in %v)\n",
					cfg.Server, stored.TimeUntilExpiry().Round(time.Second))
			}

			if opts.PrintToken {
				fmt.Println(token)
			}

			return nil
		},
	}
	opts.AddFlags(cmd)
	parent.AddCommand(cmd)
}

// checkRequiredOptions verifies the auth method has the options it
// cannot log in without
func checkRequiredOptions(cfg *config.Config) error {
	defaults := config.GetMethodDefaults(cfg.AuthMethod)
	for _, key := range defaults.RequiredOptions {
		if cfg.AuthOptions[key] == "" {
			return fmt.Errorf("auth method %q needs the %q option (pass --auth-option %s=...)", cfg.AuthMethod, key, key)
		}
	}
	return nil
}

// loginOptions assembles the client options for a fresh login
func loginOptions(cfg *config.Config, opts *LoginOptions) []client.Option {
	clientOpts := []client.Option{
		client.WithAuthMethod(cfg.AuthMethod, cfg.AuthOptions),
	}
	if cfg.CACert != "" {
		clientOpts = append(clientOpts, client.WithCACert(cfg.CACert))
	}
	if cfg.SkipTLSVerify {
		clientOpts = append(clientOpts, client.WithSkipTLSVerify(true))
	}
	if opts.Verbose {
		clientOpts = append(clientOpts, client.WithLogger(stderrLogger()))
	}
	return clientOpts
}
