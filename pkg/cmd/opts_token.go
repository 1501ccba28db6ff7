// SPDX-FileCopyrightText: Copyright 2026 Carabiner Systems, Inc
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/carabiner-dev/command"
	"github.com/spf13/cobra"

	"github.com/carabiner-dev/belay/pkg/client/auth"
)

var _ command.OptionsSet = (*TokenReadOptions)(nil)

// TokenReadOptions are the options to read an identity JWT from
// various sources.
type TokenReadOptions struct {
	TokenPath string
}

func (to *TokenReadOptions) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(
		&to.TokenPath, "token", "",
		"path to the JWT file (defaults to the service account token)",
	)
}

func (to *TokenReadOptions) Validate() error {
	return nil
}

func (to *TokenReadOptions) Config() *command.OptionsSetConfig {
	return nil
}

// ReadToken reads an identity JWT with the following precedence:
//  1. stdin, when "-" is passed or data is piped in
//  2. the --token flag (explicit file path)
//  3. the pod's service account token
func (to *TokenReadOptions) ReadToken() (string, error) {
	if to.TokenPath == "-" {
		return readFromStdin()
	}

	if to.TokenPath != "" {
		return readTokenFile(to.TokenPath)
	}

	if hasStdinData() {
		return readFromStdin()
	}

	token, err := readTokenFile(auth.DefaultServiceAccountTokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf(
				"no identity token found at %s (pass --token or pipe the JWT on stdin)",
				auth.DefaultServiceAccountTokenPath,
			)
		}
		return "", err
	}
	return token, nil
}

// hasStdinData checks if there's data piped on stdin
func hasStdinData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

func readFromStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading from stdin: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("no token data received from stdin")
	}
	return token, nil
}

func readTokenFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", err
		}
		return "", fmt.Errorf("reading token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("token file %s is empty", path)
	}
	return token, nil
}
