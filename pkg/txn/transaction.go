// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package txn

import (
	"context"
	"strings"
	"time"

	"github.com/stratastor/logger"

	"github.com/stratastor/dropboxd/pkg/errors"
)

// Operation is one step of a Transaction: apply does the work, rollback
// compensates it if a later operation in the same transaction fails.
type Operation interface {
	Apply(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Describer is an optional Operation capability: a human-readable rendering
// of what Apply would do, without doing it. Used by the CLI's dry-run
// script generator; operations that don't implement it are skipped there.
type Describer interface {
	Describe() string
}

// ProgressSink persists progress updates, at most every UpdateDBInterval
// plus unconditionally on begin/end boundaries.
type ProgressSink interface {
	Update(ctx context.Context, r *Record, percentDone float64) error
}

// UpdateDBInterval is the minimum spacing between progress writes.
const UpdateDBInterval = time.Second

// Transaction runs a fixed sequence of Operations, tracking persisted
// lifecycle state in Record.
type Transaction struct {
	Record *Record
	Ops    []Operation
	Sink   ProgressSink
	log    logger.Logger

	lastUpdate time.Time
}

// New creates a Transaction over ops, logging under the "txn" tag.
func New(record *Record, ops []Operation, sink ProgressSink, logCfg logger.Config) (*Transaction, error) {
	l, err := logger.NewTag(logCfg, "txn")
	if err != nil {
		return nil, errors.Wrap(err, errors.SchedulerError)
	}
	return &Transaction{Record: record, Ops: ops, Sink: sink, log: l}, nil
}

// Apply runs operations in order. On the first failure it captures the
// exception and rolls back completed operations in reverse, accumulating
// any rollback errors onto the first with a "|" delimiter. Completion
// recording always runs, even on error, so TransactionFile rows get
// appended for the scope of the attempt.
func (t *Transaction) Apply(ctx context.Context, addFiles func(*Record) error) error {
	now := time.Now()
	t.Record.StartedAt = &now
	t.report(ctx, 0)

	var failure error
	completed := 0
	for i, op := range t.Ops {
		if err := op.Apply(ctx); err != nil {
			failure = err
			break
		}
		completed = i + 1
		t.report(ctx, float64(completed)/float64(len(t.Ops))*100)
	}

	if failure != nil {
		for i := completed - 1; i >= 0; i-- {
			if rbErr := t.Ops[i].Rollback(ctx); rbErr != nil {
				failure = combineErrors(failure, rbErr)
			}
		}
	}

	return t.completed(ctx, failure, addFiles)
}

func combineErrors(first, next error) error {
	return errors.New(errors.CommandExecution, first.Error()+" | "+next.Error())
}

func (t *Transaction) report(ctx context.Context, percent float64) {
	t.Record.PercentDone = &percent
	if t.Sink == nil {
		return
	}
	if time.Since(t.lastUpdate) < UpdateDBInterval {
		return
	}
	_ = t.Sink.Update(ctx, t.Record, percent)
	t.lastUpdate = time.Now()
}

// completed records the terminal outcome: sets FinishedAt, stores any
// error, and always appends TransactionFile rows for the input package so
// operators can inspect scope even on failure.
func (t *Transaction) completed(ctx context.Context, failure error, addFiles func(*Record) error) error {
	now := time.Now()
	t.Record.FinishedAt = &now
	if failure != nil {
		t.Record.Error = failure.Error()
	} else {
		done := 100.0
		t.Record.PercentDone = &done
	}
	if t.Sink != nil {
		pct := 0.0
		if t.Record.PercentDone != nil {
			pct = *t.Record.PercentDone
		}
		_ = t.Sink.Update(ctx, t.Record, pct)
	}
	if addFiles != nil {
		if err := addFiles(t.Record); err != nil {
			if failure == nil {
				return err
			}
			t.Record.Error = strings.Join([]string{t.Record.Error, err.Error()}, " | ")
		}
	}
	return failure
}

// Cancel marks the transaction as canceled: StartedAt stays nil,
// FinishedAt is set ("canceled iff started_at IS NULL AND finished_at
// IS NOT NULL").
func Cancel(r *Record, comment string) {
	now := time.Now()
	r.FinishedAt = &now
	r.Comment = comment
}
