package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/tokendrop-backend/internal/domain"
)

func TestParseCSV(t *testing.T) {
	data := "\xef\xbb\xbf Address , AMOUNT ,memo\n" +
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed, 10 ,first\n" +
		"\n" +
		"   \n" +
		"\"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359\",\"2.5\",\"quoted, with comma\"\n"

	rows, err := ParseCSV([]byte(data), DefaultLimits())

	require.NoError(t, err)
	assert.Equal(t, []domain.RecipientRow{
		{LineNumber: 2, RawAddress: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", RawAmount: "10"},
		{LineNumber: 5, RawAddress: "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359", RawAmount: "2.5"},
	}, rows)
}

func TestParseCSV_HeaderOnly(t *testing.T) {
	rows, err := ParseCSV([]byte("address,amount\n"), DefaultLimits())

	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParseCSV_StructuralErrors(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxFileSizeBytes = 64

	tests := []struct {
		name     string
		data     string
		wantErr  error
		wantLine int
	}{
		{name: "File Too Large", data: "address,amount\n" + strings.Repeat("x", 64), wantErr: domain.ErrFileTooLarge},
		{name: "Empty File", data: "", wantErr: domain.ErrEmptyFile},
		{name: "Whitespace Only", data: " \n\t\n", wantErr: domain.ErrEmptyFile},
		{name: "Missing Amount Column", data: "address,value\n0x1,1\n", wantErr: domain.ErrMissingColumns, wantLine: 1},
		{name: "Ragged Row", data: "address,amount\n0x1,1\n0x2,2,3\n", wantErr: domain.ErrRaggedRow, wantLine: 3},
		{name: "Short Row", data: "address,amount\n0x1\n", wantErr: domain.ErrRaggedRow, wantLine: 2},
		{name: "Unterminated Quote", data: "address,amount\n\"0x1,1\n", wantErr: domain.ErrMalformedRow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := ParseCSV([]byte(tt.data), limits)

			assert.Nil(t, rows)
			require.ErrorIs(t, err, tt.wantErr)

			var structural *domain.StructuralError
			require.ErrorAs(t, err, &structural)
			if tt.wantLine > 0 {
				assert.Equal(t, tt.wantLine, structural.Line)
			}
		})
	}
}
