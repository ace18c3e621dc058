package ingest

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"

	"github.com/simaogato/tokendrop-backend/internal/domain"
	"github.com/simaogato/tokendrop-backend/internal/usecase/address"
	"github.com/simaogato/tokendrop-backend/internal/usecase/dedupe"
)

// Observer receives validation progress
// Any nil callback is skipped
type Observer struct {
	OnChunkProcessed     func(chunkIndex, totalChunks int)
	OnValidationComplete func(report domain.ValidationReport)
	OnValidationFailed   func(err error)
}

func (o Observer) chunkProcessed(index, total int) {
	if o.OnChunkProcessed != nil {
		o.OnChunkProcessed(index, total)
	}
}

func (o Observer) complete(report domain.ValidationReport) {
	if o.OnValidationComplete != nil {
		o.OnValidationComplete(report)
	}
}

func (o Observer) failed(err error) {
	if o.OnValidationFailed != nil {
		o.OnValidationFailed(err)
	}
}

// Pipeline classifies recipient rows into a ValidationReport
type Pipeline struct {
	limits Limits
	logger *zap.Logger
}

// NewPipeline creates a new Pipeline instance
func NewPipeline(limits Limits, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		limits: limits,
		logger: logger.With(zap.String("component", "ingest")),
	}
}

// Limits returns the limits the pipeline enforces
func (p *Pipeline) Limits() Limits {
	return p.limits
}

// Classify runs one validation pass over rows
// Row count limits are checked before any row is touched. Rows are processed in
// chunks; between chunks the pass yields and stops early if ctx is done.
// Precedence per row is address validity, then duplicate, then amount.
func (p *Pipeline) Classify(ctx context.Context, rows []domain.RecipientRow, observer Observer) (domain.ValidationReport, error) {
	if err := p.checkCount(len(rows)); err != nil {
		observer.failed(err)
		return domain.ValidationReport{}, err
	}

	size := p.limits.chunkSize()
	totalChunks := (len(rows) + size - 1) / size
	tracker := dedupe.NewTracker()
	classified := make([]domain.ClassifiedRow, 0, len(rows))

	for chunk := 0; chunk < totalChunks; chunk++ {
		if err := ctx.Err(); err != nil {
			p.logger.Debug("validation pass abandoned", zap.Int("chunk", chunk), zap.Int("total_chunks", totalChunks))
			return domain.ValidationReport{}, err
		}

		start := chunk * size
		end := min(start+size, len(rows))
		for _, row := range rows[start:end] {
			classified = append(classified, p.classifyRow(row, tracker))
		}

		observer.chunkProcessed(chunk, totalChunks)
		runtime.Gosched()
	}

	report := domain.NewValidationReport(classified)
	summary := report.Summary()
	p.logger.Debug("validation pass complete",
		zap.Int("total", summary.Total),
		zap.Int("valid", summary.Valid),
		zap.Int("invalid_address", summary.InvalidAddress),
		zap.Int("invalid_amount", summary.InvalidAmount),
		zap.Int("duplicates", summary.Duplicates),
	)

	observer.complete(report)
	return report, nil
}

func (p *Pipeline) checkCount(n int) error {
	if p.limits.MaxAddressCount > 0 && n > p.limits.MaxAddressCount {
		return &domain.StructuralError{
			Code:   domain.ErrTooManyRows,
			Detail: fmt.Sprintf("%d rows, maximum is %d", n, p.limits.MaxAddressCount),
		}
	}
	if n < p.limits.MinAddressCount {
		return &domain.StructuralError{
			Code:   domain.ErrTooFewRows,
			Detail: fmt.Sprintf("%d rows, minimum is %d", n, p.limits.MinAddressCount),
		}
	}
	return nil
}

func (p *Pipeline) classifyRow(row domain.RecipientRow, tracker *dedupe.Tracker) domain.ClassifiedRow {
	out := domain.ClassifiedRow{Row: row}

	out.Address = address.Normalize(row.RawAddress)
	if !out.Address.IsValid {
		out.Class = domain.RowClassInvalidAddress
		out.Reason = out.Address.ErrorReason
		return out
	}

	if first, dup := tracker.Observe(row.LineNumber, out.Address.Canonical); dup {
		out.Class = domain.RowClassDuplicate
		out.FirstOccurrenceLine = first
		return out
	}

	amount, reason := ParseAmount(row.RawAmount, p.limits.TokenDecimals, p.limits.MaxAmount)
	if reason != "" {
		out.Class = domain.RowClassInvalidAmount
		out.Reason = reason
		return out
	}

	out.Class = domain.RowClassValid
	out.Amount = amount
	return out
}
