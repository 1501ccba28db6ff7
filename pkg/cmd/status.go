// SPDX-FileCopyrightText: Copyright 2026 Carabiner Systems, Inc
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/carabiner-dev/command"
	"github.com/spf13/cobra"

	"github.com/carabiner-dev/belay/pkg/client"
	"github.com/carabiner-dev/belay/pkg/client/storage"
)

var _ command.OptionsSet = (*StatusOptions)(nil)

type StatusOptions struct {
	ClientOptions
}

var defaultStatusOptions = StatusOptions{}

func (so *StatusOptions) Validate() error {
	return so.ClientOptions.Validate()
}

func (so *StatusOptions) AddFlags(cmd *cobra.Command) {
	so.ClientOptions.AddFlags(cmd)
}

func (so *StatusOptions) Config() *command.OptionsSetConfig {
	return nil
}

type healthResponse struct {
	Initialized bool   `json:"initialized"`
	Sealed      bool   `json:"sealed"`
	Standby     bool   `json:"standby"`
	Version     string `json:"version"`
	ClusterName string `json:"cluster_name"`
}

func AddStatus(parent *cobra.Command) {
	opts := defaultStatusOptions

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check the health of the configured server",
		Long: `Query the server's health endpoint and report whether it is
reachable, initialized and unsealed. The health endpoint does not
require authentication, so status works before login.`,
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

			// The health endpoint is unauthenticated, so the client is
			// only used for URL normalization and TLS settings here.
			copts := []client.Option{}
			if cfg.CACert != "" {
				copts = append(copts, client.WithCACert(cfg.CACert))
			}
			if cfg.SkipTLSVerify {
				copts = append(copts, client.WithSkipTLSVerify(true))
			}
			c, err := client.New(cfg.Server, copts...)
			if err != nil {
				return err
			}

			httpClient, err := c.HTTPClient()
			if err != nil {
				return err
			}

			req, err := http.NewRequestWithContext(
				ctx, http.MethodGet, c.BaseURL()+"/sys/health", nil,
			)
			if err != nil {
				return fmt.Errorf("building health request: %w", err)
			}
			req.Header.Set("Accept", "application/json")

			resp, err := httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("server is not reachable: %w", err)
			}
			defer resp.Body.Close() //nolint:errcheck

			raw, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("reading health response: %w", err)
			}

			health := &healthResponse{}
			if err := json.Unmarshal(raw, health); err != nil {
				return fmt.Errorf("parsing health response: %w", err)
			}

			fmt.Printf("Server:       %s\n", c.BaseURL())
			fmt.Printf("Status:       %s\n", healthState(resp.StatusCode))
			fmt.Printf("Initialized:  %t\n", health.Initialized)
			fmt.Printf("Sealed:       %t\n", health.Sealed)
			if health.Version != "" {
				fmt.Printf("Version:      %s\n", health.Version)
			}
			if health.ClusterName != "" {
				fmt.Printf("Cluster:      %s\n", health.ClusterName)
			}

			printCachedToken(cfg.Server)
			return nil
		},
	}
	opts.AddFlags(cmd)
	parent.AddCommand(cmd)
}

// healthState maps the health endpoint's status codes to a label. The
// endpoint reports the node's role through the code, all of these mean
// the server answered.
func healthState(code int) string {
	switch code {
	case http.StatusOK:
		return "active"
	case http.StatusTooManyRequests:
		return "standby"
	case 472:
		return "disaster recovery secondary"
	case 473:
		return "performance standby"
	case http.StatusNotImplemented:
		return "not initialized"
	case http.StatusServiceUnavailable:
		return "sealed"
	default:
		return fmt.Sprintf("unknown (HTTP %d)", code)
	}
}

func printCachedToken(server string) {
	store, err := storage.NewTokenStorage()
	if err != nil {
		return
	}
	cached, err := store.LoadToken(context.Background(), server)
	if err != nil {
		return
	}
	if cached.IsValid() {
		fmt.Printf("Cached token: valid for %v\n", cached.TimeUntilExpiry().Round(time.Second))
	} else {
		fmt.Println("Cached token: expired")
	}
}
