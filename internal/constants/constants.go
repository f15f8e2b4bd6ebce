// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package constants

const (
	DropboxdVersion  = "v0.1.0"
	DropboxdPIDFile  = "/var/run/dropboxd.pid"

	SystemConfigDir = "/etc/dropboxd"
	UserConfigDir   = "~/.dropboxd"
	ConfigFileName  = "dropboxd.yml"
	DropboxConfigFile = ".dropbox.yaml"
	StateFileName   = "dropboxd_state.yml"

	// Scheduler defaults.
	DefaultCheckDropboxesEvery    = "30s"
	DefaultCheckPackagesEvery     = "10s"
	DefaultCheckTransactionsEvery = "5s"
	MaxUpdateQueueScheduleTasks   = 40
	MaxWorkerPoolSize             = 17

	// Transaction engine defaults.
	DefaultUpdateDBInterval  = "1s"
	DefaultAuthCacheTTL      = "60s"

	// Inventory engine defaults.
	DefaultStreamChunkSize   = 25 * 1024 * 1024
	DefaultCommitRowBatch    = 15000
	DefaultCommitTimeBudget  = "30s"
	DefaultFastUpdateWindow  = 1_000_000

	// Graphite/carbon submission defaults.
	GraphiteMaxChunkBytes  = 1024 * 1024
	GraphiteMaxSamples     = 1000
)
