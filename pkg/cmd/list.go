// SPDX-FileCopyrightText: Copyright 2026 Carabiner Systems, Inc
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/carabiner-dev/command"
	"github.com/spf13/cobra"
)

var _ command.OptionsSet = (*ListOptions)(nil)

type ListOptions struct {
	ClientOptions
}

var defaultListOptions = ListOptions{}

func (lo *ListOptions) Validate() error {
	return lo.ClientOptions.Validate()
}

func (lo *ListOptions) AddFlags(cmd *cobra.Command) {
	lo.ClientOptions.AddFlags(cmd)
}

func (lo *ListOptions) Config() *command.OptionsSetConfig {
	return nil
}

func AddList(parent *cobra.Command) {
	opts := defaultListOptions

	cmd := &cobra.Command{
		Use:   "list PATH",
		Short: "List the secret keys below a path",
		Long: `List the keys below PATH using the LIST verb, one per line.

Example:
  belay list /secret/metadata/my-app`,
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

			keys, err := c.ListSecrets(ctx, normalizePath(args[0]))
			if err != nil {
				return err
			}

			for _, key := range keys {
				fmt.Println(key)
			}
			return nil
		},
	}
	opts.AddFlags(cmd)
	parent.AddCommand(cmd)
}
