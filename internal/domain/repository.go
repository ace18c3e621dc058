package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Upload is an in-memory recipient workspace: the current rows and their latest report
// While Validating is set the report still describes rows from before the last edit
type Upload struct {
	ID              uuid.UUID
	Rows            []RecipientRow
	Report          ValidationReport
	Validating      bool
	ValidationError string // structural failure of the latest re-validation
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Ledger defines the remote ledger client the distribution depends on
// Implementations report failures as *TransferError; errors without a kind are retried
type Ledger interface {
	// EstimateTransferCost returns the execution units a transfer would consume
	EstimateTransferCost(ctx context.Context, session Session, op TransferOperation) (uint64, error)

	// ExecuteTransfer signs, submits and awaits one transfer
	ExecuteTransfer(ctx context.Context, session Session, op TransferOperation) (Receipt, error)

	// CurrentFeeRate returns the price of one execution unit
	CurrentFeeRate(ctx context.Context) (FeeRate, error)

	// Balance returns the session account's balance of the given asset
	Balance(ctx context.Context, session Session, asset Asset) (decimal.Decimal, error)
}

// SessionProvider exposes the wallet context
// Consumers read a Snapshot at call start and never listen for changes themselves
type SessionProvider interface {
	// Snapshot returns the current session
	Snapshot(ctx context.Context) (Session, error)

	// Subscribe registers fn for session changes and returns an unsubscribe function
	Subscribe(fn func(Session)) (unsubscribe func())
}

// UploadRepository defines the interface for recipient workspace storage
type UploadRepository interface {
	// Save creates or replaces an upload
	Save(ctx context.Context, upload *Upload) error

	// GetByID retrieves an upload by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*Upload, error)

	// Delete removes an upload
	Delete(ctx context.Context, id uuid.UUID) error
}

// RunRepository defines the interface for batch run snapshot storage
type RunRepository interface {
	// Save creates or replaces the snapshot of a run
	Save(ctx context.Context, run BatchRun) error

	// GetByID retrieves the latest snapshot of a run
	GetByID(ctx context.Context, id uuid.UUID) (*BatchRun, error)

	// List retrieves all known runs, newest first
	List(ctx context.Context) ([]BatchRun, error)
}
