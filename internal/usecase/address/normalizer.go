package address

import (
	"encoding/hex"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/sha3"

	"github.com/simaogato/tokendrop-backend/internal/domain"
)

// Rejection reasons reported in NormalizedAddress.ErrorReason
const (
	ReasonEmpty       = "empty"
	ReasonBadLength   = "bad length"
	ReasonBadFormat   = "bad format"
	ReasonBadChecksum = "bad checksum"
	ReasonNullAddress = "null address not allowed"
)

// addressLength is counted in characters, not bytes
const addressLength = 42

var hexAddress = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

var zeroBody = strings.Repeat("0", 40)

// Normalize validates a raw recipient identifier and returns its canonical form
// It never fails: every rejection is reported through IsValid and ErrorReason
func Normalize(raw string) domain.NormalizedAddress {
	result := domain.NormalizedAddress{Original: raw}
	trimmed := strings.TrimSpace(raw)

	switch {
	case trimmed == "":
		return reject(result, ReasonEmpty)
	case utf8.RuneCountInString(trimmed) != addressLength:
		return reject(result, ReasonBadLength)
	case !hexAddress.MatchString(trimmed):
		return reject(result, ReasonBadFormat)
	}

	body := trimmed[2:]
	if strings.ToLower(body) == zeroBody {
		return reject(result, ReasonNullAddress)
	}

	canonical := Checksum(body)
	if isMixedCase(body) && "0x"+body != canonical {
		return reject(result, ReasonBadChecksum)
	}

	result.Canonical = canonical
	result.IsValid = true
	return result
}

// Checksum returns the EIP-55 form of a 40 hex character body, with the 0x prefix
func Checksum(body string) string {
	lower := strings.ToLower(strings.TrimPrefix(body, "0x"))

	hasher := sha3.NewLegacyKeccak256()
	hasher.Write([]byte(lower))
	digest := hex.EncodeToString(hasher.Sum(nil))

	out := []byte(lower)
	for i, c := range out {
		if c >= 'a' && c <= 'f' && digest[i] >= '8' {
			out[i] = c - 'a' + 'A'
		}
	}
	return "0x" + string(out)
}

// IsChecksummed reports whether raw is a valid address already in canonical casing
func IsChecksummed(raw string) bool {
	n := Normalize(raw)
	return n.IsValid && strings.TrimSpace(raw) == n.Canonical
}

func isMixedCase(body string) bool {
	return body != strings.ToLower(body) && body != strings.ToUpper(body)
}

func reject(n domain.NormalizedAddress, reason string) domain.NormalizedAddress {
	n.IsValid = false
	n.Canonical = ""
	n.ErrorReason = reason
	return n
}
