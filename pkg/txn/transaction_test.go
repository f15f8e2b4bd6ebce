// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package txn

import (
	"context"
	"errors"
	"testing"

	"github.com/stratastor/logger"
	"github.com/stretchr/testify/require"
)

type fakeOp struct {
	applyErr error
	applied  bool
	rolledBack bool
}

func (o *fakeOp) Apply(ctx context.Context) error {
	o.applied = true
	return o.applyErr
}
func (o *fakeOp) Rollback(ctx context.Context) error {
	o.rolledBack = true
	return nil
}

func TestApplyRollsBackOnFailure(t *testing.T) {
	op1 := &fakeOp{}
	op2 := &fakeOp{applyErr: errors.New("boom")}
	op3 := &fakeOp{}

	record := &Record{ID: "t1"}
	tr, err := New(record, []Operation{op1, op2, op3}, nil, logger.Config{LogLevel: "error"})
	require.NoError(t, err)

	applyErr := tr.Apply(context.Background(), nil)
	require.Error(t, applyErr)
	require.True(t, op1.applied)
	require.True(t, op1.rolledBack)
	require.True(t, op2.applied)
	require.False(t, op2.rolledBack) // failing op itself is not rolled back
	require.False(t, op3.applied)
	require.NotNil(t, record.FinishedAt)
	require.Contains(t, record.Error, "boom")
}

func TestApplySuccessSetsPercentDone(t *testing.T) {
	op1 := &fakeOp{}
	record := &Record{ID: "t2"}
	tr, err := New(record, []Operation{op1}, nil, logger.Config{LogLevel: "error"})
	require.NoError(t, err)

	require.NoError(t, tr.Apply(context.Background(), nil))
	require.NotNil(t, record.PercentDone)
	require.Equal(t, 100.0, *record.PercentDone)
}

func TestDeriveStatus(t *testing.T) {
	pct := 50.0
	r := &Record{PercentDone: &pct}
	require.Equal(t, StatusQueued, DeriveStatus(r))

	r2 := &Record{ApprovedByLogin: ""}
	require.Equal(t, StatusPendingApproval, DeriveStatus(r2))

	r3 := &Record{ApprovedByLogin: RejectedLogin}
	require.Equal(t, StatusRejected, DeriveStatus(r3))
}

func TestNewRecordIsPendingApproval(t *testing.T) {
	r := NewRecord("h1", "delete", "/pkg1", 100)
	require.NotEmpty(t, r.ID)
	require.Equal(t, StatusPendingApproval, DeriveStatus(r))
}
