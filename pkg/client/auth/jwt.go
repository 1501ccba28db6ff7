// SPDX-FileCopyrightText: Copyright 2026 Carabiner Systems, Inc
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"errors"
	"fmt"
)

// MethodJWT names the jwt auth method.
const MethodJWT = "jwt"

// JWT authenticates with a bearer token from an external identity
// provider against the vault's jwt auth mount. The token can come from
// a file or, inside GitHub Actions, from the runner's OIDC endpoint.
type JWT struct {
	// Role is the vault role to log in as. Required.
	Role string

	// MountPath overrides the auth mount path. Defaults to "jwt".
	MountPath string

	// Source supplies the JWT. Required.
	Source CredentialSource
}

// NewJWT builds the strategy from its options. Supported keys:
//
//	role            vault role to log in as (required)
//	token_path      file holding the JWT
//	github_actions  "true" to mint the JWT from the Actions OIDC endpoint
//	audience        audience to request from the Actions endpoint
//	mount_path      overrides the auth mount path
func NewJWT(options map[string]string) (Strategy, error) {
	if err := checkOptions(options, "role", "token_path", "github_actions", "audience", "mount_path"); err != nil {
		return nil, err
	}
	if options["role"] == "" {
		return nil, fmt.Errorf(`jwt auth: "role" option is required`)
	}

	j := &JWT{
		Role:      options["role"],
		MountPath: options["mount_path"],
	}
	switch {
	case options["github_actions"] == "true":
		source, err := NewActionsSource(options["audience"])
		if err != nil {
			return nil, err
		}
		j.Source = source
	case options["token_path"] != "":
		j.Source = NewFileSource(options["token_path"])
	default:
		return nil, fmt.Errorf(`jwt auth: one of "token_path" or "github_actions" is required`)
	}
	return j, nil
}

// Name returns the auth method name.
func (j *JWT) Name() string { return MethodJWT }

// Login reads the JWT and exchanges it for a vault token.
func (j *JWT) Login(ctx context.Context, conn Conn) (*Lease, error) {
	if j.Role == "" {
		return nil, &CredentialError{Err: errors.New(`jwt auth: role is not set (set "role" in the auth options)`)}
	}
	if j.Source == nil {
		return nil, &CredentialError{Err: errors.New(`jwt auth: no credential source configured (set "token_path" or "github_actions" in the auth options)`)}
	}

	token, err := j.Source.Credential(ctx)
	if err != nil {
		return nil, err
	}

	return login(ctx, conn, j.mount(), &loginRequest{JWT: token, Role: j.Role})
}

func (j *JWT) mount() string {
	if j.MountPath != "" {
		return j.MountPath
	}
	return MethodJWT
}
