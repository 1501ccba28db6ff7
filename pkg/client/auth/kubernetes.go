// SPDX-FileCopyrightText: Copyright 2026 Carabiner Systems, Inc
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"errors"
	"fmt"
)

const (
	// MethodKubernetes names the kubernetes service account auth method.
	MethodKubernetes = "kubernetes"

	// DefaultServiceAccountTokenPath is where kubelets project the pod's
	// service account token.
	DefaultServiceAccountTokenPath = "/var/run/secrets/kubernetes.io/serviceaccount/token"
)

// Kubernetes authenticates with the pod's projected service account
// token against the vault's kubernetes auth mount. It is the strategy
// clients get when none is configured.
type Kubernetes struct {
	// Role is the vault role to log in as. Required.
	Role string

	// MountPath overrides the auth mount path. Defaults to "kubernetes".
	MountPath string

	// Source supplies the service account JWT. Defaults to reading
	// DefaultServiceAccountTokenPath on every login.
	Source CredentialSource
}

// NewKubernetes builds the strategy from its options. Supported keys:
//
//	role        vault role to log in as (required)
//	token_path  overrides the service account token file
//	mount_path  overrides the auth mount path
func NewKubernetes(options map[string]string) (Strategy, error) {
	if err := checkOptions(options, "role", "token_path", "mount_path"); err != nil {
		return nil, err
	}
	if options["role"] == "" {
		return nil, fmt.Errorf(`kubernetes auth: "role" option is required`)
	}

	k := &Kubernetes{
		Role:      options["role"],
		MountPath: options["mount_path"],
	}
	if path := options["token_path"]; path != "" {
		k.Source = NewFileSource(path)
	}
	return k, nil
}

// Name returns the auth method name.
func (k *Kubernetes) Name() string { return MethodKubernetes }

// Login reads the service account token and exchanges it for a vault
// token. A missing or unreadable token file is a CredentialError: the
// pod has no identity to present and retrying cannot help.
func (k *Kubernetes) Login(ctx context.Context, conn Conn) (*Lease, error) {
	if k.Role == "" {
		return nil, &CredentialError{Err: errors.New(`kubernetes auth: role is not set (set "role" in the auth options)`)}
	}

	source := k.Source
	if source == nil {
		source = NewFileSource(DefaultServiceAccountTokenPath)
	}

	jwt, err := source.Credential(ctx)
	if err != nil {
		return nil, err
	}

	return login(ctx, conn, k.mount(), &loginRequest{JWT: jwt, Role: k.Role})
}

func (k *Kubernetes) mount() string {
	if k.MountPath != "" {
		return k.MountPath
	}
	return MethodKubernetes
}
