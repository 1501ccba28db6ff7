// SPDX-FileCopyrightText: Copyright 2026 Carabiner Systems, Inc
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"errors"
	"fmt"
)

// MethodAppRole names the approle auth method.
const MethodAppRole = "approle"

// AppRole authenticates with a role ID and secret ID pair against the
// vault's approle auth mount.
type AppRole struct {
	// RoleID identifies the approle. Required.
	RoleID string

	// SecretID is the secret half of the pair.
	SecretID string

	// SecretIDSource supplies the secret ID when SecretID is empty,
	// typically from a file delivered by the orchestrator.
	SecretIDSource CredentialSource

	// MountPath overrides the auth mount path. Defaults to "approle".
	MountPath string
}

// NewAppRole builds the strategy from its options. Supported keys:
//
//	role_id         approle role ID (required)
//	secret_id       approle secret ID
//	secret_id_path  file holding the secret ID
//	mount_path      overrides the auth mount path
func NewAppRole(options map[string]string) (Strategy, error) {
	if err := checkOptions(options, "role_id", "secret_id", "secret_id_path", "mount_path"); err != nil {
		return nil, err
	}
	if options["role_id"] == "" {
		return nil, fmt.Errorf(`approle auth: "role_id" option is required`)
	}
	if options["secret_id"] == "" && options["secret_id_path"] == "" {
		return nil, fmt.Errorf(`approle auth: one of "secret_id" or "secret_id_path" is required`)
	}

	a := &AppRole{
		RoleID:    options["role_id"],
		SecretID:  options["secret_id"],
		MountPath: options["mount_path"],
	}
	if path := options["secret_id_path"]; path != "" {
		a.SecretIDSource = NewFileSource(path)
	}
	return a, nil
}

// Name returns the auth method name.
func (a *AppRole) Name() string { return MethodAppRole }

// Login exchanges the role and secret ID for a vault token.
func (a *AppRole) Login(ctx context.Context, conn Conn) (*Lease, error) {
	if a.RoleID == "" {
		return nil, &CredentialError{Err: errors.New(`approle auth: role ID is not set (set "role_id" in the auth options)`)}
	}

	secretID := a.SecretID
	if secretID == "" {
		if a.SecretIDSource == nil {
			return nil, &CredentialError{Err: errors.New(`approle auth: secret ID is not set (set "secret_id" or "secret_id_path" in the auth options)`)}
		}
		var err error
		secretID, err = a.SecretIDSource.Credential(ctx)
		if err != nil {
			return nil, err
		}
	}

	body := map[string]string{
		"role_id":   a.RoleID,
		"secret_id": secretID,
	}
	return login(ctx, conn, a.mount(), body)
}

func (a *AppRole) mount() string {
	if a.MountPath != "" {
		return a.MountPath
	}
	return MethodAppRole
}
