// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package errors

import "net/http"

// Domain represents the subsystem where the error originated.
type Domain string

const (
	DomainConfig     Domain = "CONFIG"
	DomainCommand    Domain = "CMD"
	DomainLifecycle  Domain = "LIFECYCLE"
	DomainRetention  Domain = "RETENTION"
	DomainBundler    Domain = "BUNDLER"
	DomainZFSModel   Domain = "ZFSMODEL"
	DomainZFSParse   Domain = "ZFSPARSE"
	DomainZFSURL     Domain = "ZFSURL"
	DomainSender     Domain = "SENDER"
	DomainReport     Domain = "REPORT"
	DomainTree       Domain = "TREE"
	DomainDropbox    Domain = "DROPBOX"
	DomainTxn        Domain = "TXN"
	DomainScheduler  Domain = "SCHEDULER"
	DomainInventory  Domain = "INVENTORY"
	DomainGraphite   Domain = "GRAPHITE"
)

// ErrorCode is a unique, stable identifier for an error condition. Each
// hundred-block below holds one kind: input errors, not-found, auth,
// transient IO, fatal IO, integrity violations, and encoding errors.
type ErrorCode int

const (
	// InputError (1000-1099) - malformed policy, bad argument, illegal config.
	InvalidPolicy ErrorCode = 1000 + iota
	InvalidConfig
	InvalidZFSURL
	InvalidArgument
	ConfigLoadFailed
	ConfigWriteFailed
)

const (
	// NotFound (1100-1199) - no DB row, no containing dropbox, etc.
	PoolNotFound ErrorCode = 1100 + iota
	DatasetNotFound
	DropboxNotFound
	TransactionNotFound
	SQLPackageNotFound
	SnapshotNotFound
	NoCommonSnapshot
)

const (
	// AuthError (1200-1299) - approval/authorization outcomes.
	AuthRejected ErrorCode = 1200 + iota
	AuthWaiting
	AuthFailure
)

const (
	// TransientIO (1300-1399) - retried filesystem/subprocess failures.
	CommandTransient ErrorCode = 1300 + iota
	StreamCopyTransient
	CommitTransient
)

const (
	// FatalIO (1400-1499) - unreadable config, unreachable DB, command failed after retry.
	CommandExecution ErrorCode = 1400 + iota
	CommandInvalidInput
	CommandNotFound
	DBUnreachable
	CommandOutputParse
	FSError
	CommitFailed
)

const (
	// IntegrityViolation (1500-1599) - orphan references, missing SQLPackage.
	OrphanTransactionFile ErrorCode = 1500 + iota
	MissingSQLPackage
	DuplicatePrimaryKey
)

const (
	// EncodingError (1600-1699) - non-representable paths.
	PathEncodingError ErrorCode = 1600 + iota
)

const (
	// Lifecycle / scheduler plumbing (1700-1799).
	LifecycleAlreadyRunning ErrorCode = 1700 + iota
	LifecyclePIDFile
	SchedulerError
	WorkerPoolFull
)

// RodentError is the structured error carried across every package in this
// module: a stable code, the owning domain, a human message, free-form
// details, and a metadata bag for command output/context.
type RodentError struct {
	Code       ErrorCode         `json:"code"`
	Domain     Domain            `json:"domain"`
	Message    string            `json:"message"`
	Details    string            `json:"details,omitempty"`
	HTTPStatus int               `json:"-"`
	Metadata   map[string]string `json:"metadata,omitempty"`

	wrapped error
}

type errorDef struct {
	domain     Domain
	message    string
	httpStatus int
}

var errorDefinitions = map[ErrorCode]errorDef{
	InvalidPolicy:   {DomainRetention, "invalid retention policy", http.StatusBadRequest},
	InvalidConfig:   {DomainConfig, "invalid configuration", http.StatusBadRequest},
	InvalidZFSURL:   {DomainZFSURL, "invalid zfs:// URL", http.StatusBadRequest},
	InvalidArgument: {DomainCommand, "invalid argument", http.StatusBadRequest},
	ConfigLoadFailed: {DomainConfig, "failed to load configuration", http.StatusInternalServerError},
	ConfigWriteFailed: {DomainConfig, "failed to write configuration", http.StatusInternalServerError},

	PoolNotFound:        {DomainZFSModel, "pool not found", http.StatusNotFound},
	DatasetNotFound:     {DomainZFSModel, "dataset not found", http.StatusNotFound},
	DropboxNotFound:     {DomainDropbox, "dropbox not found", http.StatusNotFound},
	TransactionNotFound: {DomainTxn, "transaction not found", http.StatusNotFound},
	SQLPackageNotFound:  {DomainTxn, "sql package not found", http.StatusNotFound},
	SnapshotNotFound:    {DomainZFSModel, "snapshot not found", http.StatusNotFound},
	NoCommonSnapshot:    {DomainSender, "no common snapshot between source and destination", http.StatusConflict},

	AuthRejected: {DomainTxn, "transaction rejected", http.StatusForbidden},
	AuthWaiting:  {DomainTxn, "authorization pending", http.StatusAccepted},
	AuthFailure:  {DomainTxn, "authorization could not be resolved", http.StatusUnauthorized},

	CommandTransient:    {DomainCommand, "transient command failure", http.StatusServiceUnavailable},
	StreamCopyTransient: {DomainInventory, "transient stream copy failure", http.StatusServiceUnavailable},
	CommitTransient:     {DomainZFSModel, "transient commit failure", http.StatusServiceUnavailable},

	CommandExecution:    {DomainCommand, "command execution failed", http.StatusInternalServerError},
	CommandInvalidInput: {DomainCommand, "invalid command input", http.StatusBadRequest},
	CommandNotFound:     {DomainCommand, "command not found", http.StatusBadRequest},
	DBUnreachable:       {DomainZFSModel, "database unreachable", http.StatusInternalServerError},
	CommandOutputParse:  {DomainZFSParse, "failed to parse command output", http.StatusInternalServerError},
	FSError:             {DomainTree, "filesystem error", http.StatusInternalServerError},
	CommitFailed:        {DomainZFSModel, "commit failed after retry", http.StatusInternalServerError},

	OrphanTransactionFile: {DomainTxn, "orphan transaction file reference", http.StatusConflict},
	MissingSQLPackage:     {DomainTxn, "missing sql package for transaction", http.StatusConflict},
	DuplicatePrimaryKey:   {DomainZFSModel, "duplicate primary key", http.StatusConflict},

	PathEncodingError: {DomainInventory, "path is not representable in the configured encoding", http.StatusUnprocessableEntity},

	LifecycleAlreadyRunning: {DomainLifecycle, "another instance is already running", http.StatusConflict},
	LifecyclePIDFile:        {DomainLifecycle, "pid file error", http.StatusInternalServerError},
	SchedulerError:          {DomainScheduler, "scheduler error", http.StatusInternalServerError},
	WorkerPoolFull:          {DomainScheduler, "worker pool saturated", http.StatusServiceUnavailable},
}
