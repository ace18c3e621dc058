package ingest

import "github.com/shopspring/decimal"

// Limits bounds what a single upload may contain
type Limits struct {
	MaxFileSizeBytes int64
	MaxAddressCount  int
	MinAddressCount  int
	ChunkSize        int
	TokenDecimals    int32
	MaxAmount        decimal.Decimal // zero means no upper bound
}

// DefaultLimits returns the limits used when nothing is configured
func DefaultLimits() Limits {
	return Limits{
		MaxFileSizeBytes: 5 * 1024 * 1024,
		MaxAddressCount:  1000,
		MinAddressCount:  1,
		ChunkSize:        1000,
		TokenDecimals:    18,
	}
}

func (l Limits) chunkSize() int {
	if l.ChunkSize < 1 {
		return 1000
	}
	return l.ChunkSize
}
