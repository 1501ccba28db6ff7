// SPDX-FileCopyrightText: Copyright 2025 Carabiner Systems, Inc

package config

// MethodConfig holds auth method specific defaults
type MethodConfig struct {
	MountPath string
	// RequiredOptions are option keys the method cannot log in without.
	RequiredOptions []string
	// Description is the one line help text the CLI shows.
	Description string
}

// Defaults for the built-in auth methods
var (
	KubernetesDefaults = MethodConfig{
		MountPath:       "kubernetes",
		RequiredOptions: []string{"role"},
		Description:     "log in with the pod's service account token",
	}

	AppRoleDefaults = MethodConfig{
		MountPath:       "approle",
		RequiredOptions: []string{"role_id"},
		Description:     "log in with an approle role and secret ID",
	}

	JWTDefaults = MethodConfig{
		MountPath:       "jwt",
		RequiredOptions: []string{"role"},
		Description:     "log in with a JWT from an external identity provider",
	}

	OIDCDefaults = MethodConfig{
		MountPath:       "oidc",
		RequiredOptions: []string{},
		Description:     "log in interactively through the browser",
	}
)

// GetMethodDefaults returns the default configuration for an auth method
func GetMethodDefaults(method string) *MethodConfig {
	switch method {
	case "approle":
		return &AppRoleDefaults
	case "jwt":
		return &JWTDefaults
	case "oidc":
		return &OIDCDefaults
	default:
		return &KubernetesDefaults // Default to kubernetes
	}
}
