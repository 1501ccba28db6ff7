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

var _ command.OptionsSet = (*WriteOptions)(nil)

type WriteOptions struct {
	ClientOptions
	DataJSON string
}

var defaultWriteOptions = WriteOptions{}

// Validate the options set
func (wo *WriteOptions) Validate() error {
	var errs = []error{
		wo.ClientOptions.Validate(),
	}
	return errors.Join(errs...)
}

func (wo *WriteOptions) AddFlags(cmd *cobra.Command) {
	wo.ClientOptions.AddFlags(cmd)
	cmd.PersistentFlags().StringVar(&wo.DataJSON, "data-json", "", "JSON object to send as the secret data")
}

func (wo *WriteOptions) Config() *command.OptionsSetConfig {
	return nil
}

func AddWrite(parent *cobra.Command) {
	opts := defaultWriteOptions

	cmd := &cobra.Command{
		Use:   "write PATH [KEY=VALUE...]",
		Short: "Write a secret to the vault",
		Long: `Write data to the secret at PATH.

The data comes from KEY=VALUE arguments, from --data-json, or both
(arguments win on conflicting keys).

Examples:
  # Write two fields
  belay write /secret/data/my-app user=app password=hunter2

  # Write a JSON object
  belay write /secret/data/my-app --data-json '{"user": "app", "retries": 3}'`,
		Args: cobra.MinimumNArgs(1),
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

			data := map[string]any{}
			if opts.DataJSON != "" {
				if err := json.Unmarshal([]byte(opts.DataJSON), &data); err != nil {
					return fmt.Errorf("parsing --data-json: %w", err)
				}
			}
			for _, pair := range args[1:] {
				key, value, found := strings.Cut(pair, "=")
				if !found || key == "" {
					return fmt.Errorf("argument %q is not KEY=VALUE", pair)
				}
				data[key] = value
			}
			if len(data) == 0 {
				return errors.New("nothing to write, pass KEY=VALUE pairs or --data-json")
			}

			// KV v2 paths want the fields nested under "data"
			if strings.Contains(path, "/data/") {
				data = map[string]any{"data": data}
			}

			if err := c.WriteSecret(ctx, path, data); err != nil {
				return err
			}

			fmt.Printf("✓ Secret written to %s\n", path)
			return nil
		},
	}
	opts.AddFlags(cmd)
	parent.AddCommand(cmd)
}
