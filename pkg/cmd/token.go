// SPDX-FileCopyrightText: Copyright 2026 Carabiner Systems, Inc
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/carabiner-dev/command"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/carabiner-dev/belay/pkg/client/storage"
)

var _ command.OptionsSet = (*TokenOptions)(nil)

type TokenOptions struct {
	ClientOptions
	Decode bool
	All    bool
}

var defaultTokenOptions = TokenOptions{}

func (to *TokenOptions) Validate() error {
	return nil
}

func (to *TokenOptions) AddFlags(cmd *cobra.Command) {
	to.ClientOptions.AddFlags(cmd)
	cmd.PersistentFlags().BoolVar(&to.Decode, "decode", false, "Decode and display claims when the token is a JWT")
	cmd.PersistentFlags().BoolVar(&to.All, "all", false, "List the cached tokens for every server")
}

func (to *TokenOptions) Config() *command.OptionsSetConfig {
	return nil
}

func AddToken(parent *cobra.Command) {
	opts := defaultTokenOptions

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Display the cached vault token",
		Long: `Display the vault token cached for the configured server.

The token metadata goes to stderr and the raw token to stdout, so the
output can be piped into other tools. Use --decode to show the claims
of JWT shaped tokens, or --all to list the cached tokens for every
server.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := storage.NewTokenStorage()
			if err != nil {
				return fmt.Errorf("initializing token storage: %w", err)
			}

			if opts.All {
				return listTokens(ctx, store)
			}

			cfg, err := opts.resolveConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			cached, err := store.LoadToken(ctx, cfg.Server)
			if err != nil {
				return fmt.Errorf("no cached token for %s, run 'belay login' first", cfg.Server)
			}

			// Check if the token is expired
			if !cached.IsValid() {
				fmt.Fprintf(os.Stderr, "Warning: Token is expired (expired %v ago)\n",
					time.Since(cached.ExpiresAt).Round(time.Second))
				fmt.Fprintln(os.Stderr, "Run 'belay login --force' to get a new token")
				fmt.Fprintln(os.Stderr)
			}

			// Print basic info
			fmt.Fprintf(os.Stderr, "Method:     %s\n", cached.AuthMethod)
			fmt.Fprintf(os.Stderr, "Server:     %s\n", cached.Server)
			fmt.Fprintf(os.Stderr, "Issued:     %s\n", cached.IssuedAt.Format(time.RFC3339))
			fmt.Fprintf(os.Stderr, "Expires:    %s\n", cached.ExpiresAt.Format(time.RFC3339))
			if cached.IsValid() {
				fmt.Fprintf(os.Stderr, "Valid for:  %v\n", cached.TimeUntilExpiry().Round(time.Second))
			}
			fmt.Fprintln(os.Stderr)

			// Decode JWT if requested
			if opts.Decode {
				if err := decodeJWT(cached.Token); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to decode as JWT: %v\n", err)
				}
				fmt.Fprintln(os.Stderr)
			}

			// Print token
			fmt.Println(cached.Token)

			return nil
		},
	}
	opts.AddFlags(cmd)
	parent.AddCommand(cmd)
}

// listTokens prints a one line summary per server with a cached token
func listTokens(ctx context.Context, store *storage.TokenStorage) error {
	servers, err := store.Servers(ctx)
	if err != nil {
		return fmt.Errorf("listing servers: %w", err)
	}
	if len(servers) == 0 {
		fmt.Fprintln(os.Stderr, "No cached tokens. Run 'belay login' first.")
		return nil
	}

	for _, server := range servers {
		cached, err := store.LoadToken(ctx, server)
		if err != nil {
			continue
		}
		state := "expired"
		if cached.IsValid() {
			state = fmt.Sprintf("valid for %v", cached.TimeUntilExpiry().Round(time.Second))
		}
		fmt.Printf("%s\t%s\t%s\n", server, cached.AuthMethod, state)
	}
	return nil
}

// decodeJWT decodes and prints JWT claims. Vault service tokens are
// opaque; this only works for JWT shaped tokens.
func decodeJWT(tokenString string) error {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return err
	}

	prettyJSON, err := json.MarshalIndent(claims, "", "  ")
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, "JWT Claims:")
	fmt.Fprintln(os.Stderr, string(prettyJSON))

	return nil
}
