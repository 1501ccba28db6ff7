// SPDX-FileCopyrightText: Copyright 2025 Carabiner Systems, Inc

// Package storage persists the belay command line client's vault
// tokens between runs, keyed by server URL.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/adrg/xdg"
)

const (
	tokenFileName = "tokens.json"
	dirPerm       = 0700 // User-only directory permissions
	filePerm      = 0600 // User-only file permissions
)

// TokenStorage manages persistent token storage
type TokenStorage struct {
	DataDir   string // XDG_DATA_HOME/belay
	ConfigDir string // XDG_CONFIG_HOME/belay
}

// StoredToken represents a cached vault token with metadata
type StoredToken struct {
	Token      string    `json:"token"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	AuthMethod string    `json:"auth_method"`
	Server     string    `json:"server"`
}

// tokenFile is the on-disk layout: tokens keyed by server URL.
type tokenFile struct {
	Tokens map[string]*StoredToken `json:"tokens"`
}

// NewTokenStorage creates storage with XDG paths
func NewTokenStorage() (*TokenStorage, error) {
	dataDir := filepath.Join(xdg.DataHome, "belay")
	configDir := filepath.Join(xdg.ConfigHome, "belay")

	// Create directories if they don't exist
	if err := os.MkdirAll(dataDir, dirPerm); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.MkdirAll(configDir, dirPerm); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	return &TokenStorage{
		DataDir:   dataDir,
		ConfigDir: configDir,
	}, nil
}

// SaveToken stores the token for its server with an atomic write
func (s *TokenStorage) SaveToken(ctx context.Context, token *StoredToken) error {
	if token == nil || token.Server == "" {
		return errors.New("stored token needs a server URL")
	}

	file, err := s.readFile()
	if err != nil {
		return err
	}
	file.Tokens[token.Server] = token

	return s.writeFile(file)
}

// LoadToken retrieves the token cached for server
func (s *TokenStorage) LoadToken(ctx context.Context, server string) (*StoredToken, error) {
	file, err := s.readFile()
	if err != nil {
		return nil, err
	}

	token, ok := file.Tokens[server]
	if !ok {
		return nil, fmt.Errorf("no cached token for %s", server)
	}
	return token, nil
}

// DeleteToken removes the cached token for server
func (s *TokenStorage) DeleteToken(ctx context.Context, server string) error {
	file, err := s.readFile()
	if err != nil {
		return err
	}

	if _, ok := file.Tokens[server]; !ok {
		return nil // Nothing cached
	}
	delete(file.Tokens, server)

	return s.writeFile(file)
}

// DeleteAll removes every cached token
func (s *TokenStorage) DeleteAll(ctx context.Context) error {
	tokenPath := filepath.Join(s.DataDir, tokenFileName)

	if err := os.Remove(tokenPath); err != nil {
		if os.IsNotExist(err) {
			return nil // Already deleted
		}
		return fmt.Errorf("deleting token file: %w", err)
	}
	return nil
}

// Servers lists the servers with cached tokens, sorted
func (s *TokenStorage) Servers(ctx context.Context) ([]string, error) {
	file, err := s.readFile()
	if err != nil {
		return nil, err
	}

	servers := make([]string, 0, len(file.Tokens))
	for server := range file.Tokens {
		servers = append(servers, server)
	}
	sort.Strings(servers)
	return servers, nil
}

func (s *TokenStorage) readFile() (*tokenFile, error) {
	tokenPath := filepath.Join(s.DataDir, tokenFileName)

	data, err := os.ReadFile(tokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &tokenFile{Tokens: map[string]*StoredToken{}}, nil
		}
		return nil, fmt.Errorf("reading token file: %w", err)
	}

	var file tokenFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing token file: %w", err)
	}
	if file.Tokens == nil {
		file.Tokens = map[string]*StoredToken{}
	}
	return &file, nil
}

func (s *TokenStorage) writeFile(file *tokenFile) error {
	tokenPath := filepath.Join(s.DataDir, tokenFileName)

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling tokens: %w", err)
	}

	// Atomic write: write to temp file, then rename
	tempPath := tokenPath + ".tmp"
	if err := os.WriteFile(tempPath, data, filePerm); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}

	if err := os.Rename(tempPath, tokenPath); err != nil {
		os.Remove(tempPath) //nolint:errcheck // Clean up temp file on error
		return fmt.Errorf("renaming token file: %w", err)
	}

	return nil
}

// IsValid checks if the token is still valid (not expired)
func (t *StoredToken) IsValid() bool {
	return time.Now().Before(t.ExpiresAt)
}

// TimeUntilExpiry returns the duration until the token expires
func (t *StoredToken) TimeUntilExpiry() time.Duration {
	return time.Until(t.ExpiresAt)
}
