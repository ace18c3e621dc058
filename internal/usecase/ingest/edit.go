package ingest

import (
	"fmt"

	"github.com/simaogato/tokendrop-backend/internal/domain"
)

// ReplaceRow returns a copy of rows with the row at line replaced by new values
func ReplaceRow(rows []domain.RecipientRow, line int, address, amount string) ([]domain.RecipientRow, error) {
	idx := indexOfLine(rows, line)
	if idx < 0 {
		return nil, fmt.Errorf("%w: line %d", domain.ErrRowNotFound, line)
	}

	out := append([]domain.RecipientRow(nil), rows...)
	out[idx] = out[idx].WithAddress(address).WithAmount(amount)
	return out, nil
}

// RemoveRow returns a copy of rows without the row at line
func RemoveRow(rows []domain.RecipientRow, line int) ([]domain.RecipientRow, error) {
	idx := indexOfLine(rows, line)
	if idx < 0 {
		return nil, fmt.Errorf("%w: line %d", domain.ErrRowNotFound, line)
	}

	out := make([]domain.RecipientRow, 0, len(rows)-1)
	out = append(out, rows[:idx]...)
	out = append(out, rows[idx+1:]...)
	return out, nil
}

func indexOfLine(rows []domain.RecipientRow, line int) int {
	for i, row := range rows {
		if row.LineNumber == line {
			return i
		}
	}
	return -1
}
