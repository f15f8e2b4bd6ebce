// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
)

var (
	configDir   string
	policiesDir string
	dbDir       string
	scriptsDir  string
)

func init() {
	if os.Geteuid() == 0 {
		configDir = "/etc/dropboxd"
	} else if home, err := os.UserHomeDir(); err == nil {
		configDir = filepath.Join(home, ".dropboxd")
	} else {
		configDir = "/etc/dropboxd"
	}

	policiesDir = filepath.Join(configDir, "policies")
	dbDir = filepath.Join(configDir, "db")
	scriptsDir = filepath.Join(configDir, "scripts")

	if err := EnsureDirectories(); err != nil {
		panic(fmt.Sprintf("failed to ensure configuration directories: %v", err))
	}
}

// GetConfigDir returns the system config dir when running as root, the
// user config dir otherwise.
func GetConfigDir() string { return configDir }

// GetPoliciesDir returns the directory holding retention/transfer policy files.
func GetPoliciesDir() string { return policiesDir }

// GetDBDir returns the directory holding the sqlite-backed state stores.
func GetDBDir() string { return dbDir }

// GetScriptsDir returns the directory where emitted transport scripts
// are written for operator review.
func GetScriptsDir() string { return scriptsDir }

// EnsureDirectories creates all directories dropboxd needs on disk.
func EnsureDirectories() error {
	for _, dir := range []string{configDir, policiesDir, dbDir, scriptsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
