package simulated

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"

	"github.com/simaogato/tokendrop-backend/internal/domain"
)

// Config holds the starting state of a simulated ledger
type Config struct {
	GasPerTransfer uint64
	FeeRate        decimal.Decimal // native asset per gas unit
	TokenBalance   decimal.Decimal
	NativeBalance  decimal.Decimal
	Latency        time.Duration
	FailureRate    float64 // probability of a transient failure per attempt
	Seed           int64
}

// DefaultConfig returns a well funded ledger with no injected failures
func DefaultConfig() Config {
	return Config{
		GasPerTransfer: 52000,
		FeeRate:        decimal.RequireFromString("0.000000002"),
		TokenBalance:   decimal.NewFromInt(1_000_000),
		NativeBalance:  decimal.NewFromInt(10),
		Seed:           1,
	}
}

// Ledger is an in-process stand-in for a token ledger client
// It keeps balances, mines one block per transfer and supports scripted failures.
type Ledger struct {
	mu          sync.Mutex
	cfg         Config
	token       decimal.Decimal
	native      decimal.Decimal
	block       uint64
	rng         *rand.Rand
	scripted    map[string][]error
	unreachable bool
	reverting   bool
	logger      *zap.Logger
}

// NewLedger creates a new simulated Ledger instance
func NewLedger(cfg Config, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		cfg:      cfg,
		token:    cfg.TokenBalance,
		native:   cfg.NativeBalance,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		scripted: make(map[string][]error),
		logger:   logger.With(zap.String("component", "ledger.simulated")),
	}
}

// FailNext makes the next len(errs) transfers to recipient fail with errs, in order
func (l *Ledger) FailNext(recipient string, errs ...error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := strings.ToLower(recipient)
	l.scripted[key] = append(l.scripted[key], errs...)
}

// SetUnreachable toggles network failures for every call
func (l *Ledger) SetUnreachable(unreachable bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unreachable = unreachable
}

// SetReverting makes cost estimates fail as if the token contract rejected the call
func (l *Ledger) SetReverting(reverting bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reverting = reverting
}

// EstimateTransferCost returns the gas a transfer would consume
func (l *Ledger) EstimateTransferCost(ctx context.Context, session domain.Session, op domain.TransferOperation) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.unreachable {
		return 0, errUnreachable
	}
	if l.reverting {
		return 0, domain.NewTransferError(domain.KindReverted, errors.New("execution reverted"))
	}
	return l.cfg.GasPerTransfer, nil
}

// ExecuteTransfer applies a transfer and returns its receipt
func (l *Ledger) ExecuteTransfer(ctx context.Context, session domain.Session, op domain.TransferOperation) (domain.Receipt, error) {
	if err := wait(ctx, l.cfg.Latency); err != nil {
		return domain.Receipt{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.unreachable {
		return domain.Receipt{}, errUnreachable
	}
	if err := l.popScripted(op.Recipient); err != nil {
		return domain.Receipt{}, err
	}
	if l.cfg.FailureRate > 0 && l.rng.Float64() < l.cfg.FailureRate {
		return domain.Receipt{}, domain.NewTransferError(domain.KindTransient, errors.New("transaction underpriced"))
	}

	fee := decimal.NewFromInt(int64(l.cfg.GasPerTransfer)).Mul(l.cfg.FeeRate)
	if l.token.LessThan(op.Amount) {
		return domain.Receipt{}, domain.NewTransferError(domain.KindInsufficientFunds,
			fmt.Errorf("token balance %s is below %s", l.token, op.Amount))
	}
	if l.native.LessThan(fee) {
		return domain.Receipt{}, domain.NewTransferError(domain.KindInsufficientFunds,
			fmt.Errorf("native balance %s is below fee %s", l.native, fee))
	}

	l.token = l.token.Sub(op.Amount)
	l.native = l.native.Sub(fee)
	l.block++

	receipt := domain.Receipt{
		TxHash:           txHash(session, op, l.block),
		GasUsed:          l.cfg.GasPerTransfer,
		EffectiveFeeRate: l.cfg.FeeRate,
		Fee:              fee,
		BlockNumber:      l.block,
	}
	l.logger.Debug("transfer mined",
		zap.String("tx_hash", receipt.TxHash),
		zap.String("recipient", op.Recipient),
		zap.String("amount", op.Amount.String()),
		zap.Uint64("block", receipt.BlockNumber),
	)
	return receipt, nil
}

// CurrentFeeRate returns the configured gas price
func (l *Ledger) CurrentFeeRate(ctx context.Context) (domain.FeeRate, error) {
	if err := ctx.Err(); err != nil {
		return domain.FeeRate{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.unreachable {
		return domain.FeeRate{}, errUnreachable
	}
	return domain.FeeRate{PerUnit: l.cfg.FeeRate}, nil
}

// Balance returns the remaining balance of asset
func (l *Ledger) Balance(ctx context.Context, session domain.Session, asset domain.Asset) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.unreachable {
		return decimal.Zero, errUnreachable
	}
	switch asset {
	case domain.AssetToken:
		return l.token, nil
	case domain.AssetNative:
		return l.native, nil
	}
	return decimal.Zero, fmt.Errorf("unknown asset %q", asset)
}

var errUnreachable = domain.NewTransferError(domain.KindTransient, errors.New("connection refused"))

func (l *Ledger) popScripted(recipient string) error {
	key := strings.ToLower(recipient)
	queue := l.scripted[key]
	if len(queue) == 0 {
		return nil
	}
	l.scripted[key] = queue[1:]
	return queue[0]
}

func txHash(session domain.Session, op domain.TransferOperation, block uint64) string {
	hasher := sha3.NewLegacyKeccak256()
	fmt.Fprintf(hasher, "%d/%s/%s/%d/%d", session.ChainID, session.Account, op.ID, op.Attempt, block)
	return "0x" + hex.EncodeToString(hasher.Sum(nil))
}

func wait(ctx context.Context, d time.Duration) error {
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
