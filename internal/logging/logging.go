// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package logging is the single place dropboxd builds tagged
// stratastor/logger instances from: one global logger, one tag per
// subsystem.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/stratastor/logger"

	"github.com/stratastor/dropboxd/config"
)

// Log is the process-wide default logger, tagged "global". Subsystems that
// want their own tag should call Tag instead.
var Log logger.Logger

func init() {
	var err error
	Log, err = logger.NewTag(config.NewLoggerConfig(config.GetConfig()), "global")
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
}

// Tag returns a logger scoped to component, sharing the daemon's configured
// level/sink.
func Tag(component string) (logger.Logger, error) {
	return logger.NewTag(config.NewLoggerConfig(config.GetConfig()), component)
}

// UUID7 generates a V7 UUID (time-ordered, so transaction/transfer IDs sort
// naturally by creation time), falling back to V4 on error.
func UUID7() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.New().String()
}

// ExpandPath expands a leading "~" to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}
