package domain

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// RecipientRow represents one data row of an uploaded recipient file
// LineNumber is the 1-based line in the source file (the header is line 1)
type RecipientRow struct {
	LineNumber int
	RawAddress string
	RawAmount  string
}

// WithAddress returns a copy of the row with a replaced address
func (r RecipientRow) WithAddress(address string) RecipientRow {
	r.RawAddress = address
	return r
}

// WithAmount returns a copy of the row with a replaced amount
func (r RecipientRow) WithAmount(amount string) RecipientRow {
	r.RawAmount = amount
	return r
}

// NormalizedAddress is the result of validating a single recipient identifier
type NormalizedAddress struct {
	Original    string
	Canonical   string // EIP-55 checksum form, empty when invalid
	IsValid     bool
	ErrorReason string
}

// Key returns the comparison key used for duplicate detection
func (a NormalizedAddress) Key() string {
	return strings.ToLower(a.Canonical)
}

// RowClass is the classification tag of a recipient row
type RowClass string

const (
	RowClassValid          RowClass = "VALID"
	RowClassInvalidAddress RowClass = "INVALID_ADDRESS"
	RowClassInvalidAmount  RowClass = "INVALID_AMOUNT"
	RowClassDuplicate      RowClass = "DUPLICATE"
)

// ClassifiedRow carries exactly one classification for a RecipientRow
type ClassifiedRow struct {
	Row                 RecipientRow
	Class               RowClass
	Address             NormalizedAddress
	Amount              decimal.Decimal // set only for VALID rows
	Reason              string          // set for INVALID_ADDRESS and INVALID_AMOUNT
	FirstOccurrenceLine int             // set only for DUPLICATE rows
}

// ValidationSummary holds the aggregate counts of a ValidationReport
type ValidationSummary struct {
	Total          int
	Valid          int
	InvalidAddress int
	InvalidAmount  int
	Duplicates     int
}

// ValidationReport is the classified view of a recipient set
// It is regenerated whenever the recipient set changes
type ValidationReport struct {
	TotalRows      int
	Valid          []ClassifiedRow
	InvalidAddress []ClassifiedRow
	InvalidAmount  []ClassifiedRow
	Duplicates     []ClassifiedRow
	TotalAmount    decimal.Decimal // exact sum of VALID amounts
}

// NewValidationReport partitions classified rows into a report
// Each partition is ordered by source line so identical inputs produce identical reports
func NewValidationReport(rows []ClassifiedRow) ValidationReport {
	report := ValidationReport{
		TotalRows:      len(rows),
		Valid:          []ClassifiedRow{},
		InvalidAddress: []ClassifiedRow{},
		InvalidAmount:  []ClassifiedRow{},
		Duplicates:     []ClassifiedRow{},
		TotalAmount:    decimal.Zero,
	}

	for _, row := range rows {
		switch row.Class {
		case RowClassValid:
			report.Valid = append(report.Valid, row)
			report.TotalAmount = report.TotalAmount.Add(row.Amount)
		case RowClassInvalidAddress:
			report.InvalidAddress = append(report.InvalidAddress, row)
		case RowClassInvalidAmount:
			report.InvalidAmount = append(report.InvalidAmount, row)
		case RowClassDuplicate:
			report.Duplicates = append(report.Duplicates, row)
		}
	}

	for _, part := range [][]ClassifiedRow{report.Valid, report.InvalidAddress, report.InvalidAmount, report.Duplicates} {
		sortByLine(part)
	}

	return report
}

// Summary returns the aggregate counts
func (r ValidationReport) Summary() ValidationSummary {
	return ValidationSummary{
		Total:          r.TotalRows,
		Valid:          len(r.Valid),
		InvalidAddress: len(r.InvalidAddress),
		InvalidAmount:  len(r.InvalidAmount),
		Duplicates:     len(r.Duplicates),
	}
}

// IsComplete reports whether every input row landed in exactly one partition
func (r ValidationReport) IsComplete() bool {
	s := r.Summary()
	return s.Valid+s.InvalidAddress+s.InvalidAmount+s.Duplicates == s.Total
}

// HasValidRows reports whether there is anything to distribute
func (r ValidationReport) HasValidRows() bool {
	return len(r.Valid) > 0
}

// Covers reports whether the report was produced from exactly rows
func (r ValidationReport) Covers(rows []RecipientRow) bool {
	if r.TotalRows != len(rows) {
		return false
	}

	seen := make(map[int]RecipientRow, r.TotalRows)
	for _, part := range [][]ClassifiedRow{r.Valid, r.InvalidAddress, r.InvalidAmount, r.Duplicates} {
		for _, row := range part {
			seen[row.Row.LineNumber] = row.Row
		}
	}
	for _, row := range rows {
		if got, ok := seen[row.LineNumber]; !ok || got != row {
			return false
		}
	}
	return true
}

func sortByLine(rows []ClassifiedRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Row.LineNumber < rows[j].Row.LineNumber
	})
}
