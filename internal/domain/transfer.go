package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Asset identifies which balance a ledger query refers to
type Asset string

const (
	AssetToken  Asset = "TOKEN"  // the token being distributed
	AssetNative Asset = "NATIVE" // the asset fees are paid in
)

// FeeRate is the price of one unit of execution cost, in the native asset
type FeeRate struct {
	PerUnit decimal.Decimal
}

// Cost is an execution cost in units and its priced value in the native asset
type Cost struct {
	Units uint64
	Value decimal.Decimal
}

// Add returns the sum of two costs
func (c Cost) Add(other Cost) Cost {
	return Cost{
		Units: c.Units + other.Units,
		Value: c.Value.Add(other.Value),
	}
}

// TransferOperation is one unit transfer request
// It is a value type: a retry produces a new copy via NextAttempt
type TransferOperation struct {
	ID         uuid.UUID
	Recipient  string // canonical address
	Amount     decimal.Decimal
	SourceLine int
	Attempt    int // 0 before the first dispatch
}

// NextAttempt returns a copy of the operation for the next dispatch
func (op TransferOperation) NextAttempt() TransferOperation {
	op.Attempt++
	return op
}

// Fresh returns a copy with the attempt counter reset, keeping the ID
func (op TransferOperation) Fresh() TransferOperation {
	op.Attempt = 0
	return op
}

// Receipt is what the ledger reports for a successful transfer
type Receipt struct {
	TxHash           string
	GasUsed          uint64
	EffectiveFeeRate decimal.Decimal
	Fee              decimal.Decimal // cost paid in the native asset
	BlockNumber      uint64
}

// AttemptRecord describes one dispatch of an operation
type AttemptRecord struct {
	Attempt int
	Error   string // empty on success
	Kind    ErrorKind
	At      time.Time
}

// TransferOutcome is the terminal result of one TransferOperation
type TransferOutcome struct {
	Operation    TransferOperation
	Succeeded    bool
	Receipt      *Receipt // nil on failure
	Reason       string   // empty on success
	Kind         ErrorKind
	AttemptsUsed int
	Attempts     []AttemptRecord
}

// Success builds a successful outcome
func Success(op TransferOperation, receipt Receipt, attempts []AttemptRecord) TransferOutcome {
	return TransferOutcome{
		Operation:    op,
		Succeeded:    true,
		Receipt:      &receipt,
		AttemptsUsed: len(attempts),
		Attempts:     attempts,
	}
}

// Failure builds a failed outcome
func Failure(op TransferOperation, err error, attempts []AttemptRecord) TransferOutcome {
	return TransferOutcome{
		Operation:    op,
		Succeeded:    false,
		Reason:       err.Error(),
		Kind:         KindOf(err),
		AttemptsUsed: len(attempts),
		Attempts:     attempts,
	}
}

func (o TransferOutcome) clone() TransferOutcome {
	out := o
	if o.Receipt != nil {
		receipt := *o.Receipt
		out.Receipt = &receipt
	}
	if o.Attempts != nil {
		out.Attempts = append([]AttemptRecord(nil), o.Attempts...)
	}
	return out
}
