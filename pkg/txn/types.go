// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package txn implements the transaction engine: ordered compensatable
// operations with progress reporting, approval gating, rollback, and
// crash-safe persisted state.
package txn

import (
	"time"

	"github.com/stratastor/dropboxd/internal/logging"
)

// NewRecord builds a fresh, pending-approval Transaction Record: queued
// fields unset, approved_by_login empty ("pending approval iff
// approved_by_login = ''").
func NewRecord(host, typeName, inPackageRef string, inPackageStableSince int64) *Record {
	return &Record{
		ID:                   logging.UUID7(),
		Host:                 host,
		TypeName:             typeName,
		InPackageRef:         inPackageRef,
		InPackageStableSince: inPackageStableSince,
		SpooledAt:            time.Now(),
	}
}

// Record is one persisted transaction row.
type Record struct {
	ID                   string
	Host                 string
	TypeName             string
	InPackageRef         string
	InPackageStableSince int64
	OutPackageRef        string
	ApprovedByLogin       string
	PercentDone          *float64
	SpooledAt            time.Time
	StartedAt            *time.Time
	FinishedAt           *time.Time
	Error                string
	Comment              string
	Reason               string
}

// RejectedLogin is the sentinel value stored in ApprovedByLogin for a
// rejected transaction.
const RejectedLogin = "REJECTED"

// Status derives the lifecycle state purely from Record's fields.
type Status string

const (
	StatusQueued          Status = "queued"
	StatusPendingApproval Status = "pending_approval"
	StatusRejected        Status = "rejected"
	StatusCanceled        Status = "canceled"
	StatusFailed          Status = "failed"
	StatusRunning         Status = "running"
	StatusSucceeded       Status = "succeeded"
	StatusUnknown         Status = "unknown"
)

// DeriveStatus computes r's lifecycle status from the predicates, most
// specific first.
func DeriveStatus(r *Record) Status {
	switch {
	case r.FinishedAt == nil && r.PercentDone != nil:
		return StatusQueued
	case r.StartedAt == nil && r.FinishedAt != nil:
		return StatusCanceled
	case r.FinishedAt != nil && r.StartedAt != nil && r.Error != "":
		return StatusFailed
	case r.ApprovedByLogin == RejectedLogin:
		return StatusRejected
	case r.ApprovedByLogin == "":
		return StatusPendingApproval
	case r.StartedAt != nil && r.FinishedAt == nil:
		return StatusRunning
	case r.FinishedAt != nil && r.Error == "":
		return StatusSucceeded
	default:
		return StatusUnknown
	}
}

// TransactionFile is one file belonging to a completed transaction's
// input package.
type TransactionFile struct {
	TransactionID string
	Path          string
	Size          int64
	UID, GID      int
	Mode          uint32
}

// SQLPackage is the persistent counterpart of a tree-discovered Package.
type SQLPackage struct {
	Host         string
	RootPath     string
	PackagePath  string
	ManagedAt    time.Time
	UnmanagedAt  *time.Time
	StableSince  int64
	Comment      string
}
