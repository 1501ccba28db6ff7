// SPDX-FileCopyrightText: Copyright 2026 Carabiner Systems, Inc
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/carabiner-dev/command"
	"github.com/spf13/cobra"
)

var _ command.OptionsSet = (*DeleteOptions)(nil)

type DeleteOptions struct {
	ClientOptions
}

var defaultDeleteOptions = DeleteOptions{}

func (do *DeleteOptions) Validate() error {
	return do.ClientOptions.Validate()
}

func (do *DeleteOptions) AddFlags(cmd *cobra.Command) {
	do.ClientOptions.AddFlags(cmd)
}

func (do *DeleteOptions) Config() *command.OptionsSetConfig {
	return nil
}

func AddDelete(parent *cobra.Command) {
	opts := defaultDeleteOptions

	cmd := &cobra.Command{
		Use:   "delete PATH",
		Short: "Delete the secret at a path",
		Long: `Delete the secret stored at PATH.

For KV v2 mounts this issues a soft delete of the latest version:
  belay delete /secret/data/my-app`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := opts.resolveConfig()
			if err != nil {
				return err
			}
			c, err := opts.buildClient(ctx, cfg)
			if err != nil {
				return err
			}

			path := normalizePath(args[0])
			if err := c.DeleteSecret(ctx, path); err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Secret at %s deleted\n", path)
			return nil
		},
	}
	opts.AddFlags(cmd)
	parent.AddCommand(cmd)
}
