package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/simaogato/tokendrop-backend/internal/domain"
)

// ProgressFunc receives a run snapshot when the run starts, after every sub-group and once at finalization
type ProgressFunc func(run domain.BatchRun)

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithRecorder sets the telemetry recorder
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithProgress sets the progress callback
func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) {
		o.progress = fn
	}
}

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithSleeper replaces the wait used for inter-batch and sub-group delays
func WithSleeper(sleep SleepFunc) Option {
	return func(o *Orchestrator) {
		o.sleep = sleep
	}
}

// Orchestrator drives transfer operations to completion against a Ledger
type Orchestrator struct {
	ledger   domain.Ledger
	logger   *zap.Logger
	recorder Recorder
	progress ProgressFunc
	now      func() time.Time
	sleep    SleepFunc
}

// NewOrchestrator creates a new Orchestrator instance
func NewOrchestrator(ledger domain.Ledger, logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		ledger:   ledger,
		logger:   logger.With(zap.String("component", "orchestrator")),
		recorder: noopRecorder{},
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start begins a run over ops and returns immediately
// Cancelling ctx has the same effect as Execution.Cancel.
func (o *Orchestrator) Start(ctx context.Context, session domain.Session, ops []domain.TransferOperation, policy domain.BatchPolicy) (*Execution, error) {
	return o.start(ctx, session, ops, policy, nil)
}

// Run starts a run and waits for it to finish
func (o *Orchestrator) Run(ctx context.Context, session domain.Session, ops []domain.TransferOperation, policy domain.BatchPolicy) (domain.BatchRun, error) {
	exec, err := o.Start(ctx, session, ops, policy)
	if err != nil {
		return domain.BatchRun{}, err
	}
	return exec.Wait(), nil
}

// RetryFailed starts a new run over the failures of previous
// Operations keep their IDs with fresh attempt counters; previous is not modified.
func (o *Orchestrator) RetryFailed(ctx context.Context, session domain.Session, previous domain.BatchRun, policy domain.BatchPolicy) (*Execution, error) {
	if !previous.IsTerminal() {
		return nil, fmt.Errorf("%w: run %s is %s", domain.ErrRunNotTerminal, previous.ID, previous.Status)
	}
	ops := previous.FailedOperations()
	if len(ops) == 0 {
		return nil, fmt.Errorf("%w: run %s", domain.ErrNothingToRetry, previous.ID)
	}
	parent := previous.ID
	return o.start(ctx, session, ops, policy, &parent)
}

func (o *Orchestrator) start(ctx context.Context, session domain.Session, ops []domain.TransferOperation, policy domain.BatchPolicy, parent *uuid.UUID) (*Execution, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	run := domain.NewBatchRun(len(ops), policy, parent)
	run.Status = domain.RunStatusRunning
	run.StartedAt = o.now()

	stopCtx, cancel := context.WithCancel(ctx)
	exec := newExecution(run, cancel)
	work := append([]domain.TransferOperation(nil), ops...)

	o.recorder.RunStarted(run.Clone())
	o.logger.Info("run started",
		zap.String("run_id", run.ID.String()),
		zap.Int("operations", len(work)),
		zap.Int("max_batch_size", policy.MaxBatchSize),
		zap.Int("max_concurrency", policy.MaxConcurrencyPerBatch),
	)

	o.emit(run.Clone())

	go o.execute(stopCtx, context.WithoutCancel(ctx), exec, session, work, policy)
	return exec, nil
}

// execute drives the run
// stopCtx gates new work and interrupts delays; opCtx carries in-flight operations
// and their retries, which always run to completion.
func (o *Orchestrator) execute(stopCtx, opCtx context.Context, exec *Execution, session domain.Session, ops []domain.TransferOperation, policy domain.BatchPolicy) {
	defer close(exec.done)
	defer exec.cancel()

	var limiter *rate.Limiter
	if policy.DispatchRatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(policy.DispatchRatePerSecond), 1)
	}

	stopped := false
	batches := partition(ops, policy.MaxBatchSize)

dispatchLoop:
	for bi, batch := range batches {
		if bi > 0 && o.sleep(stopCtx, policy.InterBatchDelay) != nil {
			stopped = true
			break
		}
		if stopCtx.Err() != nil {
			stopped = true
			break
		}
		exec.batchStarted()

		for gi, group := range partition(batch, policy.MaxConcurrencyPerBatch) {
			if gi > 0 && o.sleep(stopCtx, policy.SubGroupDelay) != nil {
				stopped = true
				break dispatchLoop
			}
			if stopCtx.Err() != nil {
				stopped = true
				break dispatchLoop
			}

			o.runGroup(opCtx, exec, session, group, policy, limiter)
			o.emit(exec.Snapshot())
		}
	}

	final := exec.finish(stopped, o.now())
	o.recorder.RunFinished(final)
	o.logger.Info("run finished",
		zap.String("run_id", final.ID.String()),
		zap.String("status", string(final.Status)),
		zap.Int("successes", len(final.Successes)),
		zap.Int("failures", len(final.Failures)),
		zap.Int("unexecuted", final.Unexecuted()),
		zap.Int("batches", final.BatchesExecuted),
		zap.String("total_cost", final.TotalCost.String()),
		zap.Duration("duration", final.Duration(o.now())),
	)
	o.emit(final)
}

func (o *Orchestrator) runGroup(ctx context.Context, exec *Execution, session domain.Session, group []domain.TransferOperation, policy domain.BatchPolicy, limiter *rate.Limiter) {
	var wg sync.WaitGroup
	for _, op := range group {
		wg.Add(1)
		go func() {
			defer wg.Done()
			exec.record(o.dispatch(ctx, session, op, policy, limiter))
		}()
	}
	wg.Wait()
}

// dispatch executes one operation with fixed-delay retry
// Terminal error kinds stop immediately; the limit is 1 + MaxRetries attempts.
func (o *Orchestrator) dispatch(ctx context.Context, session domain.Session, op domain.TransferOperation, policy domain.BatchPolicy, limiter *rate.Limiter) domain.TransferOutcome {
	started := o.now()
	current := op
	attempts := make([]domain.AttemptRecord, 0, policy.MaxAttempts())
	var receipt domain.Receipt

	attempt := func() error {
		current = current.NextAttempt()
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		r, err := o.ledger.ExecuteTransfer(ctx, session, current)
		record := domain.AttemptRecord{Attempt: current.Attempt, At: o.now()}
		if err != nil {
			record.Error = err.Error()
			record.Kind = domain.KindOf(err)
			attempts = append(attempts, record)
			if record.Kind.IsTerminal() {
				return backoff.Permanent(err)
			}
			return err
		}

		attempts = append(attempts, record)
		receipt = r
		return nil
	}

	policyBackoff := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(policy.RetryDelay), uint64(policy.MaxRetries)),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		kind := domain.KindOf(err)
		o.recorder.AttemptRetried(kind)
		o.logger.Debug("retrying transfer",
			zap.String("operation_id", op.ID.String()),
			zap.Int("attempt", current.Attempt),
			zap.String("kind", string(kind)),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	var outcome domain.TransferOutcome
	if err := backoff.RetryNotify(attempt, policyBackoff, notify); err != nil {
		outcome = domain.Failure(current, err, attempts)
		o.logger.Warn("transfer failed",
			zap.String("operation_id", op.ID.String()),
			zap.String("recipient", op.Recipient),
			zap.Int("attempts", len(attempts)),
			zap.String("kind", string(outcome.Kind)),
			zap.Error(err),
		)
	} else {
		outcome = domain.Success(current, receipt, attempts)
	}

	o.recorder.OperationFinished(outcome, o.now().Sub(started))
	return outcome
}

func (o *Orchestrator) emit(run domain.BatchRun) {
	if o.progress != nil {
		o.progress(run)
	}
}

func partition(ops []domain.TransferOperation, size int) [][]domain.TransferOperation {
	var parts [][]domain.TransferOperation
	for start := 0; start < len(ops); start += size {
		parts = append(parts, ops[start:min(start+size, len(ops))])
	}
	return parts
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
