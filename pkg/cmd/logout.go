// SPDX-FileCopyrightText: Copyright 2026 Carabiner Systems, Inc
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/carabiner-dev/command"
	"github.com/spf13/cobra"

	"github.com/carabiner-dev/belay/pkg/client/storage"
)

var _ command.OptionsSet = (*LogoutOptions)(nil)

type LogoutOptions struct {
	ClientOptions
	All bool
}

var defaultLogoutOptions = LogoutOptions{}

func (lo *LogoutOptions) Validate() error {
	return nil
}

func (lo *LogoutOptions) AddFlags(cmd *cobra.Command) {
	lo.ClientOptions.AddFlags(cmd)
	cmd.PersistentFlags().BoolVar(&lo.All, "all", false, "Clear the cached tokens for every server")
}

func (lo *LogoutOptions) Config() *command.OptionsSetConfig {
	return nil
}

func AddLogout(parent *cobra.Command) {
	opts := defaultLogoutOptions

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Clear cached tokens",
		Long:  `Remove the cached vault token for the configured server, or all of them with --all.`,
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
				if err := store.DeleteAll(ctx); err != nil {
					return fmt.Errorf("deleting tokens: %w", err)
				}
				fmt.Println("✓ All cached tokens cleared")
				return nil
			}

			cfg, err := opts.resolveConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if err := store.DeleteToken(ctx, cfg.Server); err != nil {
				return fmt.Errorf("deleting token: %w", err)
			}

			fmt.Printf("✓ Token for %s cleared\n", cfg.Server)
			return nil
		},
	}
	opts.AddFlags(cmd)
	parent.AddCommand(cmd)
}
