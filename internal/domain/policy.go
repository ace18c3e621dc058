package domain

import (
	"fmt"
	"time"
)

// BatchPolicy controls how the orchestrator drives a run
type BatchPolicy struct {
	MaxBatchSize           int
	MaxConcurrencyPerBatch int
	MaxRetries             int // retries after the first attempt
	InterBatchDelay        time.Duration
	SubGroupDelay          time.Duration
	RetryDelay             time.Duration
	DispatchRatePerSecond  float64 // 0 disables the dispatch throttle
}

// DefaultBatchPolicy mirrors the throttling values the distribution tool has always used
func DefaultBatchPolicy() BatchPolicy {
	return BatchPolicy{
		MaxBatchSize:           50,
		MaxConcurrencyPerBatch: 5,
		MaxRetries:             2,
		InterBatchDelay:        2 * time.Second,
		SubGroupDelay:          500 * time.Millisecond,
		RetryDelay:             5 * time.Second,
	}
}

// Validate ensures the policy can drive a run
func (p BatchPolicy) Validate() error {
	if p.MaxBatchSize < 1 {
		return fmt.Errorf("%w: max batch size must be at least 1", ErrInvalidPolicy)
	}
	if p.MaxConcurrencyPerBatch < 1 {
		return fmt.Errorf("%w: max concurrency per batch must be at least 1", ErrInvalidPolicy)
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries cannot be negative", ErrInvalidPolicy)
	}
	if p.InterBatchDelay < 0 || p.SubGroupDelay < 0 || p.RetryDelay < 0 {
		return fmt.Errorf("%w: delays cannot be negative", ErrInvalidPolicy)
	}
	if p.DispatchRatePerSecond < 0 {
		return fmt.Errorf("%w: dispatch rate cannot be negative", ErrInvalidPolicy)
	}
	return nil
}

// MaxAttempts is the total number of dispatches allowed for one operation
func (p BatchPolicy) MaxAttempts() int {
	return p.MaxRetries + 1
}
