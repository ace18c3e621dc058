package domain

import (
	"errors"
	"fmt"
)

// Structural errors abort an ingestion pass before any row is classified
var (
	ErrFileTooLarge   = errors.New("file exceeds the size limit")
	ErrEmptyFile      = errors.New("file is empty")
	ErrMissingColumns = errors.New("header is missing required columns")
	ErrRaggedRow      = errors.New("row column count does not match header")
	ErrMalformedRow   = errors.New("row is not well-formed CSV")
	ErrTooManyRows    = errors.New("row count exceeds the maximum")
	ErrTooFewRows     = errors.New("row count is below the minimum")
)

// Pre-flight errors block a run from starting
var (
	ErrNoAccount                = errors.New("no accessible account")
	ErrNetworkUnreachable       = errors.New("network unreachable")
	ErrContractNotCallable      = errors.New("token contract is not callable")
	ErrInsufficientTokenBalance = errors.New("insufficient token balance for total amount")
	ErrInsufficientFeeBalance   = errors.New("insufficient native balance for estimated cost")
)

// Lookup and lifecycle errors
var (
	ErrUploadNotFound     = errors.New("upload not found")
	ErrRunNotFound        = errors.New("run not found")
	ErrRowNotFound        = errors.New("row not found")
	ErrNoValidRecipients  = errors.New("no valid recipients")
	ErrReportStale        = errors.New("validation report does not match the current rows")
	ErrRunNotTerminal     = errors.New("run has not finished")
	ErrNothingToRetry     = errors.New("run has no failed operations")
	ErrInvalidPolicy      = errors.New("invalid batch policy")
	ErrInvalidCostBuffer  = errors.New("cost buffer multiplier must be at least 1.0")
	ErrCostEstimateFailed = errors.New("cost estimate failed")
)

// StructuralError reports malformed input shape
// errors.Is matches it against its Code sentinel
type StructuralError struct {
	Code   error
	Line   int // 0 when the error is not tied to a line
	Detail string
}

func (e *StructuralError) Error() string {
	msg := e.Code.Error()
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Line > 0 {
		msg = fmt.Sprintf("%s (line %d)", msg, e.Line)
	}
	return msg
}

func (e *StructuralError) Unwrap() error {
	return e.Code
}

// ErrorKind classifies a per-operation failure
type ErrorKind string

const (
	KindTransient         ErrorKind = "TRANSIENT"
	KindUserRejected      ErrorKind = "USER_REJECTED"
	KindReverted          ErrorKind = "REVERTED"
	KindInsufficientFunds ErrorKind = "INSUFFICIENT_FUNDS"
)

// IsTerminal reports whether retrying a failure of this kind can never succeed
func (k ErrorKind) IsTerminal() bool {
	switch k {
	case KindUserRejected, KindReverted, KindInsufficientFunds:
		return true
	}
	return false
}

// TransferError is the structured failure a ledger collaborator returns
type TransferError struct {
	Kind ErrorKind
	Err  error
}

// NewTransferError wraps err with a kind
func NewTransferError(kind ErrorKind, err error) *TransferError {
	return &TransferError{Kind: kind, Err: err}
}

func (e *TransferError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure kind of err
// Errors that carry no kind are treated as transient
func KindOf(err error) ErrorKind {
	var te *TransferError
	if errors.As(err, &te) && te.Kind != "" {
		return te.Kind
	}
	return KindTransient
}

// PreflightCheck names one gating check
type PreflightCheck string

const (
	CheckAccount      PreflightCheck = "account"
	CheckNetwork      PreflightCheck = "network"
	CheckContract     PreflightCheck = "contract"
	CheckTokenBalance PreflightCheck = "token_balance"
	CheckFeeBalance   PreflightCheck = "fee_balance"
)

// PreflightError reports the first failing gating check
type PreflightError struct {
	Check PreflightCheck
	Err   error
}

func (e *PreflightError) Error() string {
	return fmt.Sprintf("preflight check %s failed: %v", e.Check, e.Err)
}

func (e *PreflightError) Unwrap() error {
	return e.Err
}
