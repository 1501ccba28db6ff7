// SPDX-FileCopyrightText: Copyright 2026 Carabiner Systems, Inc
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/carabiner-dev/belay/pkg/cmd"
)

var version = "dev" // Set via ldflags during build

func main() {
	rootCmd := &cobra.Command{
		Use:   "belay",
		Short: "Belay client for Vault-style secret servers",
		Long: `Belay is a client for Vault-style secret servers. It logs in with
kubernetes, jwt, approle or oidc credentials, keeps the resulting
client token fresh, and reads and writes secrets over the HTTP API.

The server address is the full API base, including the version
prefix, for example https://vault.example.com:8200/v1. Request
paths are appended to it verbatim.`,
	}

	// Add commands
	cmd.AddLogin(rootCmd)
	cmd.AddLogout(rootCmd)
	cmd.AddToken(rootCmd)
	cmd.AddRead(rootCmd)
	cmd.AddWrite(rootCmd)
	cmd.AddList(rootCmd)
	cmd.AddDelete(rootCmd)
	cmd.AddWhoami(rootCmd)
	cmd.AddVerify(rootCmd)
	cmd.AddStatus(rootCmd)
	addVersion(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func addVersion(parent *cobra.Command) {
	parent.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("belay version %s\n", version)
		},
	})
}
