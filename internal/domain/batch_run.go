package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RunStatus represents the lifecycle state of a BatchRun
type RunStatus string

const (
	RunStatusIdle                RunStatus = "IDLE"
	RunStatusRunning             RunStatus = "RUNNING"
	RunStatusCancelled           RunStatus = "CANCELLED"
	RunStatusCompleted           RunStatus = "COMPLETED"
	RunStatusCompletedWithErrors RunStatus = "COMPLETED_WITH_ERRORS"
)

// IsTerminal reports whether no further transition is possible
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCancelled, RunStatusCompleted, RunStatusCompletedWithErrors:
		return true
	}
	return false
}

// BatchRun is the aggregate state of one orchestrated distribution
// Only the orchestrator mutates it; everyone else holds a Clone
type BatchRun struct {
	ID              uuid.UUID
	ParentRunID     *uuid.UUID // set when the run retries another run's failures
	Status          RunStatus
	Total           int
	Successes       []TransferOutcome
	Failures        []TransferOutcome
	BatchesExecuted int
	StartedAt       time.Time
	EndedAt         time.Time
	TotalCost       decimal.Decimal // exact sum of receipt fees
	Policy          BatchPolicy
}

// NewBatchRun creates an idle run for total operations
func NewBatchRun(total int, policy BatchPolicy, parent *uuid.UUID) BatchRun {
	return BatchRun{
		ID:          uuid.New(),
		ParentRunID: parent,
		Status:      RunStatusIdle,
		Total:       total,
		Successes:   []TransferOutcome{},
		Failures:    []TransferOutcome{},
		TotalCost:   decimal.Zero,
		Policy:      policy,
	}
}

// FinalStatus derives the terminal status from the recorded outcomes
// A run with any failure is never COMPLETED
func (r BatchRun) FinalStatus(cancelled bool) RunStatus {
	if cancelled {
		return RunStatusCancelled
	}
	if len(r.Failures) > 0 {
		return RunStatusCompletedWithErrors
	}
	return RunStatusCompleted
}

// IsTerminal reports whether the run is frozen
func (r BatchRun) IsTerminal() bool {
	return r.Status.IsTerminal()
}

// Completed is the number of operations with an outcome
func (r BatchRun) Completed() int {
	return len(r.Successes) + len(r.Failures)
}

// Unexecuted is the number of operations that were never dispatched
func (r BatchRun) Unexecuted() int {
	return r.Total - r.Completed()
}

// SuccessRate returns the share of successful operations in percent
func (r BatchRun) SuccessRate() decimal.Decimal {
	if r.Total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(len(r.Successes))).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(r.Total)))
}

// Duration returns how long the run took, or has taken so far
func (r BatchRun) Duration(now time.Time) time.Duration {
	if r.StartedAt.IsZero() {
		return 0
	}
	if r.EndedAt.IsZero() {
		return now.Sub(r.StartedAt)
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// FailedOperations returns the failed operations reset for a new run
func (r BatchRun) FailedOperations() []TransferOperation {
	ops := make([]TransferOperation, 0, len(r.Failures))
	for _, f := range r.Failures {
		ops = append(ops, f.Operation.Fresh())
	}
	return ops
}

// Clone returns a deep copy that shares no mutable state with r
func (r BatchRun) Clone() BatchRun {
	out := r
	if r.ParentRunID != nil {
		parent := *r.ParentRunID
		out.ParentRunID = &parent
	}
	out.Successes = cloneOutcomes(r.Successes)
	out.Failures = cloneOutcomes(r.Failures)
	return out
}

func cloneOutcomes(in []TransferOutcome) []TransferOutcome {
	out := make([]TransferOutcome, len(in))
	for i, o := range in {
		out[i] = o.clone()
	}
	return out
}
