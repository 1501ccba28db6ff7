// SPDX-FileCopyrightText: Copyright 2026 Carabiner Systems, Inc
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/carabiner-dev/command"
	"github.com/spf13/cobra"
)

var _ command.OptionsSet = (*ReadOptions)(nil)

type ReadOptions struct {
	ClientOptions
	Field string
	Raw   bool
}

var defaultReadOptions = ReadOptions{}

// Validate the options set
func (ro *ReadOptions) Validate() error {
	var errs = []error{
		ro.ClientOptions.Validate(),
	}
	if ro.Raw && ro.Field != "" {
		errs = append(errs, errors.New("--raw and --field cannot be combined"))
	}
	return errors.Join(errs...)
}

func (ro *ReadOptions) AddFlags(cmd *cobra.Command) {
	ro.ClientOptions.AddFlags(cmd)
	cmd.PersistentFlags().StringVar(&ro.Field, "field", "", "Print only this field of the secret data")
	cmd.PersistentFlags().BoolVar(&ro.Raw, "raw", false, "Print the raw response body instead of the data map")
}

func (ro *ReadOptions) Config() *command.OptionsSetConfig {
	return nil
}

func AddRead(parent *cobra.Command) {
	opts := defaultReadOptions

	cmd := &cobra.Command{
		Use:   "read PATH",
		Short: "Read a secret from the vault",
		Long: `Read the secret at PATH and print its data.

The path is appended to the server URL as-is, so it has to match the
deployment's API layout.

Examples:
  # Read a secret
  belay read /secret/data/my-app

  # Print a single field
  belay read /secret/data/my-app --field password

  # Dump the raw response
  belay read /secret/data/my-app --raw`,
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

			if opts.Raw {
				raw, err := c.Get(ctx, path)
				if err != nil {
					return err
				}
				fmt.Println(string(raw))
				return nil
			}

			data, err := c.ReadSecret(ctx, path)
			if err != nil {
				return err
			}
			data = kvData(data)

			if opts.Field != "" {
				value, ok := data[opts.Field]
				if !ok {
					return fmt.Errorf("field %q not found in secret data", opts.Field)
				}
				fmt.Println(value)
				return nil
			}

			pretty, err := json.MarshalIndent(data, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding secret data: %w", err)
			}
			fmt.Println(string(pretty))

			return nil
		},
	}
	opts.AddFlags(cmd)
	parent.AddCommand(cmd)
}

// normalizePath ensures the request path starts with a slash
func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}

// kvData unwraps the KV v2 envelope, where the secret's fields sit one
// level down under a second "data" key next to "metadata".
func kvData(data map[string]any) map[string]any {
	inner, ok := data["data"].(map[string]any)
	if !ok {
		return data
	}
	if _, ok := data["metadata"]; !ok {
		return data
	}
	return inner
}
