// SPDX-FileCopyrightText: Copyright 2026 Carabiner Systems, Inc
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/carabiner-dev/command"
	"github.com/spf13/cobra"
)

var _ command.OptionsSet = (*WhoamiOptions)(nil)

type WhoamiOptions struct {
	ClientOptions
	JSON bool
}

var defaultWhoamiOptions = WhoamiOptions{}

func (wo *WhoamiOptions) Validate() error {
	return wo.ClientOptions.Validate()
}

func (wo *WhoamiOptions) AddFlags(cmd *cobra.Command) {
	wo.ClientOptions.AddFlags(cmd)
	cmd.PersistentFlags().BoolVar(
		&wo.JSON, "json", false, "print the raw lookup response as JSON",
	)
}

func (wo *WhoamiOptions) Config() *command.OptionsSetConfig {
	return nil
}

type tokenLookup struct {
	Data struct {
		DisplayName string   `json:"display_name"`
		Policies    []string `json:"policies"`
		Path        string   `json:"path"`
		TTL         int      `json:"ttl"`
	} `json:"data"`
}

func AddWhoami(parent *cobra.Command) {
	opts := defaultWhoamiOptions

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show details about the current token",
		Long: `Look up the token the client is using and print who the server
thinks you are: the token's display name, its policies and how long
it has left to live.

Examples:
  # Show the current identity
  belay whoami

  # Raw lookup response
  belay whoami --json`,
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

			raw, err := c.Get(ctx, "/auth/token/lookup-self")
			if err != nil {
				return fmt.Errorf("looking up token: %w", err)
			}

			if opts.JSON {
				fmt.Println(string(raw))
				return nil
			}

			lookup := &tokenLookup{}
			if err := json.Unmarshal(raw, lookup); err != nil {
				return fmt.Errorf("parsing lookup response: %w", err)
			}

			fmt.Printf("Server:       %s\n", c.BaseURL())
			fmt.Printf("Display name: %s\n", lookup.Data.DisplayName)
			fmt.Printf("Policies:     %s\n", strings.Join(lookup.Data.Policies, ", "))
			if lookup.Data.Path != "" {
				fmt.Printf("Auth path:    %s\n", lookup.Data.Path)
			}
			if lookup.Data.TTL > 0 {
				fmt.Printf("TTL:          %s\n", time.Duration(lookup.Data.TTL)*time.Second)
			}
			return nil
		},
	}
	opts.AddFlags(cmd)
	parent.AddCommand(cmd)
}
