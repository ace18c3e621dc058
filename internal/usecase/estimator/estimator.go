package estimator

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/simaogato/tokendrop-backend/internal/domain"
)

const defaultConcurrency = 8

// Estimate is the projected execution cost of a set of operations
type Estimate struct {
	PerOp           []domain.Cost // same order as the input operations
	Total           domain.Cost
	TotalWithBuffer domain.Cost
	FeeRate         domain.FeeRate
	Buffer          decimal.Decimal
}

// Affordability is the result of comparing a required amount to a balance
type Affordability struct {
	Sufficient bool
	Shortfall  decimal.Decimal // zero when sufficient
}

// Estimator projects the cost of a distribution before it runs
type Estimator struct {
	ledger      domain.Ledger
	concurrency int
	logger      *zap.Logger
}

// NewEstimator creates a new Estimator instance
// concurrency bounds the number of in-flight estimate calls; values below 1 use a default
func NewEstimator(ledger domain.Ledger, concurrency int, logger *zap.Logger) *Estimator {
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Estimator{
		ledger:      ledger,
		concurrency: concurrency,
		logger:      logger.With(zap.String("component", "estimator")),
	}
}

// Estimate prices every operation at feeRate and applies buffer once to the aggregate
// A single failed estimate fails the whole call; no partial result is returned.
func (e *Estimator) Estimate(ctx context.Context, session domain.Session, ops []domain.TransferOperation, feeRate domain.FeeRate, buffer decimal.Decimal) (*Estimate, error) {
	if buffer.LessThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: got %s", domain.ErrInvalidCostBuffer, buffer.String())
	}

	units := make([]uint64, len(ops))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, op := range ops {
		g.Go(func() error {
			u, err := e.ledger.EstimateTransferCost(gctx, session, op)
			if err != nil {
				return fmt.Errorf("%w: operation %d (line %d): %w", domain.ErrCostEstimateFailed, i, op.SourceLine, err)
			}
			units[i] = u
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		e.logger.Warn("cost estimate failed", zap.Int("operations", len(ops)), zap.Error(err))
		return nil, err
	}

	result := &Estimate{
		PerOp:   make([]domain.Cost, len(ops)),
		Total:   domain.Cost{Value: decimal.Zero},
		FeeRate: feeRate,
		Buffer:  buffer,
	}
	for i, u := range units {
		cost := Price(u, feeRate)
		result.PerOp[i] = cost
		result.Total = result.Total.Add(cost)
	}
	result.TotalWithBuffer = applyBuffer(result.Total, buffer)

	e.logger.Debug("cost estimated",
		zap.Int("operations", len(ops)),
		zap.Uint64("units", result.Total.Units),
		zap.String("total_with_buffer", result.TotalWithBuffer.Value.String()),
	)

	return result, nil
}

// Price values units at feeRate
func Price(units uint64, feeRate domain.FeeRate) domain.Cost {
	return domain.Cost{
		Units: units,
		Value: unitsDecimal(units).Mul(feeRate.PerUnit),
	}
}

// CheckAffordability compares a required amount against an available balance
func CheckAffordability(required, available decimal.Decimal) Affordability {
	if available.GreaterThanOrEqual(required) {
		return Affordability{Sufficient: true, Shortfall: decimal.Zero}
	}
	return Affordability{Sufficient: false, Shortfall: required.Sub(available)}
}

func applyBuffer(total domain.Cost, buffer decimal.Decimal) domain.Cost {
	units := unitsDecimal(total.Units).Mul(buffer).Ceil()
	return domain.Cost{
		Units: uint64(units.IntPart()),
		Value: total.Value.Mul(buffer),
	}
}

func unitsDecimal(units uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(units), 0)
}
