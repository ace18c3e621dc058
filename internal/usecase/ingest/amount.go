package ingest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var plainDecimal = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)$`)

// ParseAmount validates a raw amount against the token precision and optional ceiling
// It returns the parsed value, or a non-empty rejection reason
func ParseAmount(raw string, decimals int32, max decimal.Decimal) (decimal.Decimal, string) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, "amount is empty"
	}

	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, "amount is not a number"
	}
	if !value.IsPositive() {
		return decimal.Zero, "amount must be positive"
	}
	if !plainDecimal.MatchString(trimmed) {
		return decimal.Zero, "amount must be a plain decimal number"
	}
	if fractionDigits(trimmed) > int(decimals) {
		return decimal.Zero, fmt.Sprintf("amount has more than %d decimal places", decimals)
	}
	if max.IsPositive() && value.GreaterThan(max) {
		return decimal.Zero, fmt.Sprintf("amount exceeds maximum of %s", max.String())
	}

	return value, ""
}

// fractionDigits counts significant digits after the decimal point
func fractionDigits(s string) int {
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return 0
	}
	return len(strings.TrimRight(s[dot+1:], "0"))
}
