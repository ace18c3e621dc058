package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/simaogato/tokendrop-backend/internal/domain"
)

const (
	columnAddress = "address"
	columnAmount  = "amount"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// ParseCSV turns raw file content into recipient rows
// It only checks shape; every content problem is left to Classify
func ParseCSV(data []byte, limits Limits) ([]domain.RecipientRow, error) {
	if limits.MaxFileSizeBytes > 0 && int64(len(data)) > limits.MaxFileSizeBytes {
		return nil, &domain.StructuralError{
			Code:   domain.ErrFileTooLarge,
			Detail: fmt.Sprintf("%d bytes, limit is %d", len(data), limits.MaxFileSizeBytes),
		}
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &domain.StructuralError{Code: domain.ErrEmptyFile}
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, malformed(err)
	}
	headerLine, _ := reader.FieldPos(0)

	addressCol, amountCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case columnAddress:
			if addressCol < 0 {
				addressCol = i
			}
		case columnAmount:
			if amountCol < 0 {
				amountCol = i
			}
		}
	}
	if addressCol < 0 || amountCol < 0 {
		return nil, &domain.StructuralError{
			Code:   domain.ErrMissingColumns,
			Line:   headerLine,
			Detail: "header must contain address and amount",
		}
	}

	rows := []domain.RecipientRow{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, malformed(err)
		}

		if isBlank(record) {
			continue
		}

		line, _ := reader.FieldPos(0)
		if len(record) != len(header) {
			return nil, &domain.StructuralError{
				Code:   domain.ErrRaggedRow,
				Line:   line,
				Detail: fmt.Sprintf("expected %d columns, got %d", len(header), len(record)),
			}
		}

		rows = append(rows, domain.RecipientRow{
			LineNumber: line,
			RawAddress: strings.TrimSpace(record[addressCol]),
			RawAmount:  strings.TrimSpace(record[amountCol]),
		})
	}

	return rows, nil
}

// isBlank reports whether a record came from a whitespace-only line
func isBlank(record []string) bool {
	return len(record) == 1 && strings.TrimSpace(record[0]) == ""
}

func malformed(err error) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return &domain.StructuralError{
			Code:   domain.ErrMalformedRow,
			Line:   parseErr.StartLine,
			Detail: parseErr.Err.Error(),
		}
	}
	return &domain.StructuralError{Code: domain.ErrMalformedRow, Detail: err.Error()}
}
