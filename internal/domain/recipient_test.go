package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecipientRow_WithAddressDoesNotMutate(t *testing.T) {
	row := RecipientRow{LineNumber: 2, RawAddress: "0xabc", RawAmount: "1"}

	edited := row.WithAddress("0xdef").WithAmount("2")

	assert.Equal(t, "0xabc", row.RawAddress)
	assert.Equal(t, "1", row.RawAmount)
	assert.Equal(t, "0xdef", edited.RawAddress)
	assert.Equal(t, "2", edited.RawAmount)
	assert.Equal(t, 2, edited.LineNumber)
}

func TestNormalizedAddress_Key(t *testing.T) {
	addr := NormalizedAddress{Canonical: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"}
	assert.Equal(t, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", addr.Key())
}

func TestNewValidationReport(t *testing.T) {
	rows := []ClassifiedRow{
		{Row: RecipientRow{LineNumber: 5}, Class: RowClassValid, Amount: decimal.RequireFromString("0.1")},
		{Row: RecipientRow{LineNumber: 2}, Class: RowClassValid, Amount: decimal.RequireFromString("0.2")},
		{Row: RecipientRow{LineNumber: 3}, Class: RowClassInvalidAddress, Reason: "bad length"},
		{Row: RecipientRow{LineNumber: 4}, Class: RowClassInvalidAmount, Reason: "amount must be positive"},
		{Row: RecipientRow{LineNumber: 6}, Class: RowClassDuplicate, FirstOccurrenceLine: 2},
	}

	report := NewValidationReport(rows)

	require.Len(t, report.Valid, 2)
	assert.Equal(t, 2, report.Valid[0].Row.LineNumber, "partitions are ordered by line")
	assert.Equal(t, 5, report.Valid[1].Row.LineNumber)
	assert.True(t, report.TotalAmount.Equal(decimal.RequireFromString("0.3")), "0.1 + 0.2 must be exact")
	assert.Equal(t, ValidationSummary{Total: 5, Valid: 2, InvalidAddress: 1, InvalidAmount: 1, Duplicates: 1}, report.Summary())
	assert.True(t, report.IsComplete())
	assert.True(t, report.HasValidRows())
}

func TestNewValidationReport_Empty(t *testing.T) {
	report := NewValidationReport(nil)

	assert.Equal(t, 0, report.TotalRows)
	assert.NotNil(t, report.Valid)
	assert.True(t, report.TotalAmount.IsZero())
	assert.True(t, report.IsComplete())
	assert.False(t, report.HasValidRows())
}

func TestValidationReport_Covers(t *testing.T) {
	rows := []RecipientRow{
		{LineNumber: 2, RawAddress: "0xa", RawAmount: "1"},
		{LineNumber: 3, RawAddress: "0xb", RawAmount: "2"},
	}
	report := NewValidationReport([]ClassifiedRow{
		{Row: rows[0], Class: RowClassInvalidAddress, Reason: "bad length"},
		{Row: rows[1], Class: RowClassInvalidAddress, Reason: "bad length"},
	})

	assert.True(t, report.Covers(rows))
	assert.False(t, report.Covers(rows[:1]), "row removed")

	edited := []RecipientRow{rows[0], rows[1].WithAmount("3")}
	assert.False(t, report.Covers(edited), "row edited")
}
