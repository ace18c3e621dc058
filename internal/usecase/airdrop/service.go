package airdrop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/simaogato/tokendrop-backend/internal/domain"
	"github.com/simaogato/tokendrop-backend/internal/usecase/estimator"
	"github.com/simaogato/tokendrop-backend/internal/usecase/ingest"
	"github.com/simaogato/tokendrop-backend/internal/usecase/orchestrator"
)

var (
	// ErrPublishingDisabled is returned when no clean-list store is configured
	ErrPublishingDisabled = errors.New("clean list publishing is not configured")

	// ErrShuttingDown is returned for edits that arrive after Shutdown started
	ErrShuttingDown = errors.New("service is shutting down")
)

// Publisher stores exported clean lists
type Publisher interface {
	Publish(ctx context.Context, key string, data []byte) (string, error)
}

// ValidationRecorder receives validation telemetry
type ValidationRecorder interface {
	ValidationFinished(summary domain.ValidationSummary)
}

// Dependencies are the collaborators of the service
type Dependencies struct {
	Uploads   domain.UploadRepository
	Runs      domain.RunRepository
	Ledger    domain.Ledger
	Sessions  domain.SessionProvider
	Publisher Publisher             // optional
	Recorder  orchestrator.Recorder // optional
	Telemetry ValidationRecorder    // optional
}

// Settings tune the service
type Settings struct {
	Limits              ingest.Limits
	Debounce            time.Duration // re-validation window after an edit
	Policy              domain.BatchPolicy
	CostBuffer          decimal.Decimal
	EstimateConcurrency int
	OrchestratorOptions []orchestrator.Option
}

// Service coordinates recipient uploads, cost estimation, pre-flight gating and runs
type Service struct {
	uploads   domain.UploadRepository
	runs      domain.RunRepository
	ledger    domain.Ledger
	sessions  domain.SessionProvider
	publisher Publisher
	telemetry ValidationRecorder

	pipeline     *ingest.Pipeline
	estimator    *estimator.Estimator
	orchestrator *orchestrator.Orchestrator
	debounce     time.Duration
	policy       domain.BatchPolicy
	costBuffer   decimal.Decimal
	logger       *zap.Logger
	now          func() time.Time

	runCtx   context.Context
	stopRuns context.CancelFunc

	// editMu serializes read-modify-write cycles on uploads
	editMu sync.Mutex

	mu         sync.Mutex
	closed     bool
	executions map[uuid.UUID]*orchestrator.Execution
	schedulers map[uuid.UUID]*ingest.Scheduler
}

// NewService creates a new Service instance
func NewService(deps Dependencies, settings Settings, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.CostBuffer.IsZero() {
		settings.CostBuffer = decimal.NewFromInt(1)
	}

	runCtx, stopRuns := context.WithCancel(context.Background())
	s := &Service{
		uploads:    deps.Uploads,
		runs:       deps.Runs,
		ledger:     deps.Ledger,
		sessions:   deps.Sessions,
		publisher:  deps.Publisher,
		telemetry:  deps.Telemetry,
		pipeline:   ingest.NewPipeline(settings.Limits, logger),
		estimator:  estimator.NewEstimator(deps.Ledger, settings.EstimateConcurrency, logger),
		debounce:   settings.Debounce,
		policy:     settings.Policy,
		costBuffer: settings.CostBuffer,
		logger:     logger.With(zap.String("component", "airdrop")),
		now:        time.Now,
		runCtx:     runCtx,
		stopRuns:   stopRuns,
		executions: make(map[uuid.UUID]*orchestrator.Execution),
		schedulers: make(map[uuid.UUID]*ingest.Scheduler),
	}

	opts := []orchestrator.Option{orchestrator.WithProgress(s.saveSnapshot)}
	if deps.Recorder != nil {
		opts = append(opts, orchestrator.WithRecorder(deps.Recorder))
	}
	opts = append(opts, settings.OrchestratorOptions...)
	s.orchestrator = orchestrator.NewOrchestrator(deps.Ledger, logger, opts...)

	return s
}

// Upload parses and validates a recipient file and stores it as a new workspace
func (s *Service) Upload(ctx context.Context, data []byte) (*domain.Upload, error) {
	rows, err := ingest.ParseCSV(data, s.pipeline.Limits())
	if err != nil {
		return nil, err
	}

	report, err := s.classify(ctx, rows)
	if err != nil {
		return nil, err
	}

	now := s.now()
	upload := &domain.Upload{
		ID:        uuid.New(),
		Rows:      rows,
		Report:    report,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.uploads.Save(ctx, upload); err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}

	s.logger.Info("upload validated",
		zap.String("upload_id", upload.ID.String()),
		zap.Int("rows", report.TotalRows),
		zap.Int("valid", len(report.Valid)),
		zap.String("total_amount", report.TotalAmount.String()),
	)
	return upload, nil
}

// EditRow replaces the address and amount of one row
// The edit is stored at once; the report catches up after the debounce window.
func (s *Service) EditRow(ctx context.Context, uploadID uuid.UUID, line int, address, amount string) (*domain.Upload, error) {
	return s.mutate(ctx, uploadID, func(rows []domain.RecipientRow) ([]domain.RecipientRow, error) {
		return ingest.ReplaceRow(rows, line, address, amount)
	})
}

// RemoveRow drops one row and schedules re-validation
func (s *Service) RemoveRow(ctx context.Context, uploadID uuid.UUID, line int) (*domain.Upload, error) {
	return s.mutate(ctx, uploadID, func(rows []domain.RecipientRow) ([]domain.RecipientRow, error) {
		return ingest.RemoveRow(rows, line)
	})
}

// GetUpload returns an upload with its latest report
func (s *Service) GetUpload(ctx context.Context, uploadID uuid.UUID) (*domain.Upload, error) {
	return s.uploads.GetByID(ctx, uploadID)
}

// DiscardUpload drops an upload and stops its pending re-validation
func (s *Service) DiscardUpload(ctx context.Context, uploadID uuid.UUID) error {
	s.editMu.Lock()
	s.mu.Lock()
	scheduler, ok := s.schedulers[uploadID]
	delete(s.schedulers, uploadID)
	s.mu.Unlock()
	err := s.uploads.Delete(ctx, uploadID)
	s.editMu.Unlock()

	// Close waits for a pass that may be blocked on editMu in applyReport
	if ok {
		scheduler.Close()
	}
	return err
}

// ExportCleanList renders the valid recipients of an upload as CSV
func (s *Service) ExportCleanList(ctx context.Context, uploadID uuid.UUID) ([]byte, error) {
	upload, err := s.validated(ctx, uploadID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := ingest.WriteCleanList(&buf, upload.Report); err != nil {
		return nil, fmt.Errorf("export clean list: %w", err)
	}
	return buf.Bytes(), nil
}

// PublishCleanList exports the clean list and stores it under key
func (s *Service) PublishCleanList(ctx context.Context, uploadID uuid.UUID, key string) (string, error) {
	if s.publisher == nil {
		return "", ErrPublishingDisabled
	}
	data, err := s.ExportCleanList(ctx, uploadID)
	if err != nil {
		return "", err
	}
	location, err := s.publisher.Publish(ctx, key, data)
	if err != nil {
		return "", fmt.Errorf("publish clean list: %w", err)
	}
	s.logger.Info("clean list published", zap.String("upload_id", uploadID.String()), zap.String("location", location))
	return location, nil
}

// Estimate projects the buffered cost of distributing an upload
func (s *Service) Estimate(ctx context.Context, uploadID uuid.UUID) (*estimator.Estimate, error) {
	upload, err := s.validated(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if !upload.Report.HasValidRows() {
		return nil, domain.ErrNoValidRecipients
	}

	session, err := s.sessions.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	feeRate, err := s.ledger.CurrentFeeRate(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrNetworkUnreachable, err)
	}
	return s.estimator.Estimate(ctx, session, ingest.OperationsFromReport(upload.Report), feeRate, s.costBuffer)
}

// Preflight runs the gating checks in order and reports the first failure
// Passing is best effort: balances may still change before dispatch.
func (s *Service) Preflight(ctx context.Context, session domain.Session, ops []domain.TransferOperation) (*estimator.Estimate, error) {
	if !session.HasAccount() {
		return nil, &domain.PreflightError{Check: domain.CheckAccount, Err: domain.ErrNoAccount}
	}

	feeRate, err := s.ledger.CurrentFeeRate(ctx)
	if err != nil {
		return nil, &domain.PreflightError{Check: domain.CheckNetwork, Err: fmt.Errorf("%w: %w", domain.ErrNetworkUnreachable, err)}
	}

	est, err := s.estimator.Estimate(ctx, session, ops, feeRate, s.costBuffer)
	if err != nil {
		return nil, &domain.PreflightError{Check: domain.CheckContract, Err: fmt.Errorf("%w: %w", domain.ErrContractNotCallable, err)}
	}

	required := decimal.Zero
	for _, op := range ops {
		required = required.Add(op.Amount)
	}
	if err := s.checkBalance(ctx, session, domain.AssetToken, required, domain.CheckTokenBalance, domain.ErrInsufficientTokenBalance); err != nil {
		return nil, err
	}
	if err := s.checkBalance(ctx, session, domain.AssetNative, est.TotalWithBuffer.Value, domain.CheckFeeBalance, domain.ErrInsufficientFeeBalance); err != nil {
		return nil, err
	}

	return est, nil
}

// StartRun gates and starts a distribution to the valid recipients of an upload
// The run outlives ctx; it stops only through CancelRun or Shutdown.
func (s *Service) StartRun(ctx context.Context, uploadID uuid.UUID) (domain.BatchRun, error) {
	upload, err := s.validated(ctx, uploadID)
	if err != nil {
		return domain.BatchRun{}, err
	}
	if !upload.Report.HasValidRows() {
		return domain.BatchRun{}, domain.ErrNoValidRecipients
	}

	session, err := s.sessions.Snapshot(ctx)
	if err != nil {
		return domain.BatchRun{}, fmt.Errorf("read session: %w", err)
	}

	ops := ingest.OperationsFromReport(upload.Report)
	if _, err := s.Preflight(ctx, session, ops); err != nil {
		s.logger.Warn("preflight rejected run", zap.String("upload_id", uploadID.String()), zap.Error(err))
		return domain.BatchRun{}, err
	}

	exec, err := s.orchestrator.Start(s.runCtx, session, ops, s.policy)
	if err != nil {
		return domain.BatchRun{}, err
	}
	s.track(exec)
	return exec.Snapshot(), nil
}

// GetRun returns the latest snapshot of a run
func (s *Service) GetRun(ctx context.Context, runID uuid.UUID) (domain.BatchRun, error) {
	if exec, ok := s.execution(runID); ok {
		return exec.Snapshot(), nil
	}
	run, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		return domain.BatchRun{}, err
	}
	return *run, nil
}

// ListRuns returns every known run, newest first
func (s *Service) ListRuns(ctx context.Context) ([]domain.BatchRun, error) {
	return s.runs.List(ctx)
}

// CancelRun requests cooperative cancellation of a run
// It reports whether the request took effect; cancelling a finished run is a no-op.
func (s *Service) CancelRun(ctx context.Context, runID uuid.UUID) (domain.BatchRun, bool, error) {
	exec, ok := s.execution(runID)
	if !ok {
		run, err := s.GetRun(ctx, runID)
		return run, false, err
	}

	accepted := exec.Cancel()
	if accepted {
		s.logger.Info("run cancellation requested", zap.String("run_id", runID.String()))
	}
	return exec.Snapshot(), accepted, nil
}

// RetryFailed starts a new run over the failed operations of a finished run
func (s *Service) RetryFailed(ctx context.Context, runID uuid.UUID) (domain.BatchRun, error) {
	previous, err := s.GetRun(ctx, runID)
	if err != nil {
		return domain.BatchRun{}, err
	}
	if !previous.IsTerminal() {
		return domain.BatchRun{}, fmt.Errorf("%w: run %s is %s", domain.ErrRunNotTerminal, runID, previous.Status)
	}
	ops := previous.FailedOperations()
	if len(ops) == 0 {
		return domain.BatchRun{}, fmt.Errorf("%w: run %s", domain.ErrNothingToRetry, runID)
	}

	session, err := s.sessions.Snapshot(ctx)
	if err != nil {
		return domain.BatchRun{}, fmt.Errorf("read session: %w", err)
	}
	if _, err := s.Preflight(ctx, session, ops); err != nil {
		return domain.BatchRun{}, err
	}

	exec, err := s.orchestrator.RetryFailed(s.runCtx, session, previous, s.policy)
	if err != nil {
		return domain.BatchRun{}, err
	}
	s.track(exec)
	return exec.Snapshot(), nil
}

// Shutdown stops pending re-validations, cancels every active run and waits for
// the runs to settle or ctx to end
func (s *Service) Shutdown(ctx context.Context) error {
	s.stopRuns()

	s.mu.Lock()
	s.closed = true
	schedulers := make([]*ingest.Scheduler, 0, len(s.schedulers))
	for id, scheduler := range s.schedulers {
		schedulers = append(schedulers, scheduler)
		delete(s.schedulers, id)
	}
	active := make([]*orchestrator.Execution, 0, len(s.executions))
	for _, exec := range s.executions {
		active = append(active, exec)
	}
	s.mu.Unlock()

	for _, scheduler := range schedulers {
		scheduler.Close()
	}

	for _, exec := range active {
		select {
		case <-exec.Done():
		case <-ctx.Done():
			return fmt.Errorf("shutdown: %w", ctx.Err())
		}
	}
	return nil
}

func (s *Service) classify(ctx context.Context, rows []domain.RecipientRow) (domain.ValidationReport, error) {
	return s.pipeline.Classify(ctx, rows, ingest.Observer{
		OnValidationComplete: s.recordValidation,
	})
}

func (s *Service) recordValidation(report domain.ValidationReport) {
	if s.telemetry != nil {
		s.telemetry.ValidationFinished(report.Summary())
	}
}

// validated returns an upload whose report describes its current rows
func (s *Service) validated(ctx context.Context, uploadID uuid.UUID) (*domain.Upload, error) {
	upload, err := s.uploads.GetByID(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	switch {
	case upload.ValidationError != "":
		return nil, fmt.Errorf("%w: %s", domain.ErrReportStale, upload.ValidationError)
	case upload.Validating || !upload.Report.Covers(upload.Rows):
		return nil, fmt.Errorf("%w: re-validation pending", domain.ErrReportStale)
	}
	return upload, nil
}

func (s *Service) mutate(ctx context.Context, uploadID uuid.UUID, edit func([]domain.RecipientRow) ([]domain.RecipientRow, error)) (*domain.Upload, error) {
	s.editMu.Lock()
	defer s.editMu.Unlock()

	upload, err := s.uploads.GetByID(ctx, uploadID)
	if err != nil {
		return nil, err
	}

	rows, err := edit(upload.Rows)
	if err != nil {
		return nil, err
	}

	scheduler, ok := s.scheduler(uploadID)
	if !ok {
		return nil, ErrShuttingDown
	}

	upload.Rows = rows
	upload.Validating = true
	upload.ValidationError = ""
	upload.UpdatedAt = s.now()
	if err := s.uploads.Save(ctx, upload); err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}

	// Submitting under editMu keeps the scheduler's latest request equal to the stored rows
	scheduler.Submit(rows)
	return upload, nil
}

// scheduler returns the upload's scheduler, creating it on first use
// It reports false once Shutdown has started.
func (s *Service) scheduler(uploadID uuid.UUID) (*ingest.Scheduler, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false
	}
	if scheduler, ok := s.schedulers[uploadID]; ok {
		return scheduler, true
	}
	scheduler := ingest.NewScheduler(s.pipeline, s.debounce, ingest.Observer{
		OnValidationComplete: func(report domain.ValidationReport) {
			s.applyReport(uploadID, report)
		},
		OnValidationFailed: func(err error) {
			s.applyFailure(uploadID, err)
		},
	}, s.logger)
	s.schedulers[uploadID] = scheduler
	return scheduler, true
}

func (s *Service) applyReport(uploadID uuid.UUID, report domain.ValidationReport) {
	s.recordValidation(report)

	s.editMu.Lock()
	defer s.editMu.Unlock()

	ctx := context.Background()
	upload, err := s.uploads.GetByID(ctx, uploadID)
	if err != nil {
		return
	}
	if !report.Covers(upload.Rows) {
		// superseded by a later edit whose pass is still queued
		return
	}

	upload.Report = report
	upload.Validating = false
	upload.ValidationError = ""
	if err := s.uploads.Save(ctx, upload); err != nil {
		s.logger.Error("failed to save re-validated upload", zap.String("upload_id", uploadID.String()), zap.Error(err))
		return
	}
	s.logger.Debug("upload re-validated",
		zap.String("upload_id", uploadID.String()),
		zap.Int("valid", len(report.Valid)),
		zap.String("total_amount", report.TotalAmount.String()),
	)
}

func (s *Service) applyFailure(uploadID uuid.UUID, cause error) {
	s.editMu.Lock()
	defer s.editMu.Unlock()

	ctx := context.Background()
	upload, err := s.uploads.GetByID(ctx, uploadID)
	if err != nil {
		return
	}

	upload.Validating = false
	upload.ValidationError = cause.Error()
	if err := s.uploads.Save(ctx, upload); err != nil {
		s.logger.Error("failed to save validation failure", zap.String("upload_id", uploadID.String()), zap.Error(err))
		return
	}
	s.logger.Warn("re-validation failed", zap.String("upload_id", uploadID.String()), zap.Error(cause))
}

func (s *Service) checkBalance(ctx context.Context, session domain.Session, asset domain.Asset, required decimal.Decimal, check domain.PreflightCheck, insufficient error) error {
	balance, err := s.ledger.Balance(ctx, session, asset)
	if err != nil {
		return &domain.PreflightError{Check: check, Err: fmt.Errorf("%w: read %s balance: %w", domain.ErrNetworkUnreachable, asset, err)}
	}

	affordability := estimator.CheckAffordability(required, balance)
	if !affordability.Sufficient {
		return &domain.PreflightError{
			Check: check,
			Err:   fmt.Errorf("%w: need %s, have %s, short by %s", insufficient, required, balance, affordability.Shortfall),
		}
	}
	return nil
}

func (s *Service) saveSnapshot(run domain.BatchRun) {
	if err := s.runs.Save(context.Background(), run); err != nil {
		s.logger.Error("failed to save run snapshot", zap.String("run_id", run.ID.String()), zap.Error(err))
	}
}

// track keeps a live handle on exec until it finishes
// The final snapshot is saved before Done closes, so GetRun falls back to the repository.
func (s *Service) track(exec *orchestrator.Execution) {
	s.mu.Lock()
	s.executions[exec.ID()] = exec
	s.mu.Unlock()

	go func() {
		<-exec.Done()
		s.mu.Lock()
		delete(s.executions, exec.ID())
		s.mu.Unlock()
	}()
}

func (s *Service) execution(runID uuid.UUID) (*orchestrator.Execution, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exec, ok := s.executions[runID]
	return exec, ok
}

// ActiveRuns returns the IDs of runs that have not finished, sorted
func (s *Service) ActiveRuns() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := []uuid.UUID{}
	for id, exec := range s.executions {
		select {
		case <-exec.Done():
		default:
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}
