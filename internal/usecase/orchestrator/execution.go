package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/simaogato/tokendrop-backend/internal/domain"
)

// Execution is the handle of a started run
type Execution struct {
	mu        sync.Mutex
	run       domain.BatchRun
	cancelled bool
	cancel    context.CancelFunc
	done      chan struct{}
}

func newExecution(run domain.BatchRun, cancel context.CancelFunc) *Execution {
	return &Execution{
		run:    run,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// ID returns the run ID
func (e *Execution) ID() uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.run.ID
}

// Snapshot returns a deep copy of the current run state
func (e *Execution) Snapshot() domain.BatchRun {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.run.Clone()
}

// Cancel requests cooperative cancellation
// No new operation starts afterwards; operations already dispatched run to completion.
// It returns false when the run already finished or was already cancelled.
func (e *Execution) Cancel() bool {
	e.mu.Lock()
	if e.run.IsTerminal() || e.cancelled {
		e.mu.Unlock()
		return false
	}
	e.cancelled = true
	e.mu.Unlock()

	e.cancel()
	return true
}

// Done is closed once the run reaches a terminal status
func (e *Execution) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until the run is terminal and returns its final state
func (e *Execution) Wait() domain.BatchRun {
	<-e.done
	return e.Snapshot()
}

func (e *Execution) record(outcome domain.TransferOutcome) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if outcome.Succeeded {
		e.run.Successes = append(e.run.Successes, outcome)
		if outcome.Receipt != nil {
			e.run.TotalCost = e.run.TotalCost.Add(outcome.Receipt.Fee)
		}
		return
	}
	e.run.Failures = append(e.run.Failures, outcome)
}

func (e *Execution) batchStarted() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.run.BatchesExecuted++
}

// finish freezes the run and returns its final snapshot
// An accepted Cancel marks the run cancelled even when no work was left to skip.
func (e *Execution) finish(stopped bool, at time.Time) domain.BatchRun {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.run.Status = e.run.FinalStatus(stopped || e.cancelled)
	e.run.EndedAt = at
	return e.run.Clone()
}
