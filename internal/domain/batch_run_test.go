package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOp(amount int64) TransferOperation {
	return TransferOperation{
		ID:        uuid.New(),
		Recipient: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		Amount:    decimal.NewFromInt(amount),
	}
}

func TestBatchRun_FinalStatus(t *testing.T) {
	success := Success(newOp(1), Receipt{TxHash: "0x1"}, []AttemptRecord{{Attempt: 1}})
	failure := Failure(newOp(1), errors.New("boom"), []AttemptRecord{{Attempt: 1}})

	tests := []struct {
		name      string
		successes []TransferOutcome
		failures  []TransferOutcome
		cancelled bool
		want      RunStatus
	}{
		{name: "all succeeded", successes: []TransferOutcome{success}, want: RunStatusCompleted},
		{name: "partial failure", successes: []TransferOutcome{success}, failures: []TransferOutcome{failure}, want: RunStatusCompletedWithErrors},
		{name: "all failed is never completed", failures: []TransferOutcome{failure}, want: RunStatusCompletedWithErrors},
		{name: "cancelled wins", successes: []TransferOutcome{success}, cancelled: true, want: RunStatusCancelled},
		{name: "empty run", want: RunStatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := NewBatchRun(len(tt.successes)+len(tt.failures), DefaultBatchPolicy(), nil)
			run.Successes = tt.successes
			run.Failures = tt.failures
			assert.Equal(t, tt.want, run.FinalStatus(tt.cancelled))
		})
	}
}

func TestBatchRun_Counts(t *testing.T) {
	run := NewBatchRun(6, DefaultBatchPolicy(), nil)
	run.Successes = []TransferOutcome{Success(newOp(1), Receipt{}, nil), Success(newOp(2), Receipt{}, nil)}

	assert.Equal(t, RunStatusIdle, run.Status)
	assert.Equal(t, 2, run.Completed())
	assert.Equal(t, 4, run.Unexecuted())
	assert.True(t, run.SuccessRate().Round(2).Equal(decimal.RequireFromString("33.33")))
}

func TestBatchRun_CloneIsIndependent(t *testing.T) {
	parent := uuid.New()
	run := NewBatchRun(1, DefaultBatchPolicy(), &parent)
	run.Successes = append(run.Successes, Success(newOp(1), Receipt{TxHash: "0xaa"}, []AttemptRecord{{Attempt: 1}}))

	clone := run.Clone()
	clone.Successes[0].Receipt.TxHash = "0xbb"
	clone.Successes[0].Attempts[0].Attempt = 9
	*clone.ParentRunID = uuid.New()
	clone.Successes = append(clone.Successes, Success(newOp(2), Receipt{}, nil))

	assert.Equal(t, "0xaa", run.Successes[0].Receipt.TxHash)
	assert.Equal(t, 1, run.Successes[0].Attempts[0].Attempt)
	assert.Equal(t, parent, *run.ParentRunID)
	assert.Len(t, run.Successes, 1)
}

func TestBatchRun_FailedOperationsResetAttempts(t *testing.T) {
	op := newOp(5)
	op.Attempt = 3
	run := NewBatchRun(1, DefaultBatchPolicy(), nil)
	run.Failures = []TransferOutcome{Failure(op, errors.New("timeout"), nil)}

	ops := run.FailedOperations()

	require.Len(t, ops, 1)
	assert.Equal(t, op.ID, ops[0].ID)
	assert.Equal(t, 0, ops[0].Attempt)
	assert.Equal(t, 3, run.Failures[0].Operation.Attempt, "source run is untouched")
}

func TestBatchRun_Duration(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	run := BatchRun{StartedAt: start}

	assert.Equal(t, 5*time.Second, run.Duration(start.Add(5*time.Second)))

	run.EndedAt = start.Add(2 * time.Second)
	assert.Equal(t, 2*time.Second, run.Duration(start.Add(time.Hour)))
	assert.Equal(t, time.Duration(0), BatchRun{}.Duration(start))
}

func TestRunStatus_IsTerminal(t *testing.T) {
	assert.False(t, RunStatusIdle.IsTerminal())
	assert.False(t, RunStatusRunning.IsTerminal())
	assert.True(t, RunStatusCancelled.IsTerminal())
	assert.True(t, RunStatusCompleted.IsTerminal())
	assert.True(t, RunStatusCompletedWithErrors.IsTerminal())
}
