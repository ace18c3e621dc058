package ingest

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/simaogato/tokendrop-backend/internal/domain"
)

// WriteCleanList writes the valid recipients as an address,amount CSV
// Addresses are written in canonical form, in source line order
func WriteCleanList(w io.Writer, report domain.ValidationReport) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{columnAddress, columnAmount}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range report.Valid {
		if err := writer.Write([]string{row.Address.Canonical, row.Amount.String()}); err != nil {
			return fmt.Errorf("write line %d: %w", row.Row.LineNumber, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// OperationsFromReport builds one transfer operation per valid row
func OperationsFromReport(report domain.ValidationReport) []domain.TransferOperation {
	ops := make([]domain.TransferOperation, 0, len(report.Valid))
	for _, row := range report.Valid {
		ops = append(ops, domain.TransferOperation{
			ID:         uuid.New(),
			Recipient:  row.Address.Canonical,
			Amount:     row.Amount,
			SourceLine: row.Row.LineNumber,
		})
	}
	return ops
}
