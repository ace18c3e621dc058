package address

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name          string
		raw           string
		wantValid     bool
		wantCanonical string
		wantReason    string
	}{
		{
			name:          "Checksummed Address",
			raw:           "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
			wantValid:     true,
			wantCanonical: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		},
		{
			name:          "Lowercase Is Canonicalized",
			raw:           "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359",
			wantValid:     true,
			wantCanonical: "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		},
		{
			name:          "Uppercase Body Is Canonicalized",
			raw:           "0x" + strings.ToUpper("dbf03b407c01e7cd3cbea99509d93f8dddc8c6fb"),
			wantValid:     true,
			wantCanonical: "0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		},
		{
			name:          "Surrounding Whitespace",
			raw:           "  0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb\t",
			wantValid:     true,
			wantCanonical: "0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
		},
		{name: "Empty", raw: "   ", wantReason: ReasonEmpty},
		{name: "Too Short", raw: "0x123", wantReason: ReasonBadLength},
		{name: "Too Long", raw: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed00", wantReason: ReasonBadLength},
		{name: "Missing Prefix", raw: "005aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", wantReason: ReasonBadFormat},
		{name: "Multibyte Character At Full Length", raw: "0x\u00e9Aaeb6053F3E94C9b9A09f33669435E7Ef1BeAed", wantReason: ReasonBadFormat},
		{name: "Non Hex", raw: "0xZZAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", wantReason: ReasonBadFormat},
		{name: "Wrong Mixed Case", raw: "0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", wantReason: ReasonBadChecksum},
		{name: "Zero Address", raw: "0x0000000000000000000000000000000000000000", wantReason: ReasonNullAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.raw)

			assert.Equal(t, tt.raw, got.Original)
			assert.Equal(t, tt.wantValid, got.IsValid)
			assert.Equal(t, tt.wantCanonical, got.Canonical)
			assert.Equal(t, tt.wantReason, got.ErrorReason)
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	first := Normalize("0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359")
	second := Normalize(first.Canonical)

	assert.True(t, second.IsValid)
	assert.Equal(t, first.Canonical, second.Canonical)
}

func TestIsChecksummed(t *testing.T) {
	assert.True(t, IsChecksummed("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"))
	assert.False(t, IsChecksummed("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"))
	assert.False(t, IsChecksummed("not-an-address"))
}
