// Package mac canonicalises hardware addresses into the uppercase colon form used by the
// inventory table (AA:BB:CC:DD:EE:FF).
package mac

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// HexDigits is the number of hex characters in a 6-octet address.
const HexDigits = 12

// ErrInvalidFormat is returned when the input does not reduce to exactly 12 hex digits.
var ErrInvalidFormat = errors.New("mac: invalid format")

// Normalize strips every non-hex character from raw, requires exactly 12 hex digits and
// returns them upper-cased in colon-separated pairs. Separators in the input are irrelevant:
// "aa-bb-cc-dd-ee-ff", "aabb.ccdd.eeff" and "AABBCCDDEEFF" all yield "AA:BB:CC:DD:EE:FF".
func Normalize(raw string) (string, error) {
	digits := make([]byte, 0, HexDigits)
	for i := 0; i < len(raw); i++ {
		if isHex(raw[i]) {
			digits = append(digits, raw[i])
		}
	}
	if len(digits) != HexDigits {
		return "", ErrInvalidFormat
	}
	return format(strings.ToUpper(string(digits))), nil
}

// FromOctets converts six decimal octets, as found in the index of a bridge forwarding
// table OID, into canonical form.
func FromOctets(parts []string) (string, error) {
	if len(parts) != 6 {
		return "", fmt.Errorf("%w: want 6 octets, got %d", ErrInvalidFormat, len(parts))
	}
	var b strings.Builder
	b.Grow(HexDigits)
	for _, part := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(part), 10, 8)
		if err != nil {
			return "", fmt.Errorf("%w: octet %q", ErrInvalidFormat, part)
		}
		fmt.Fprintf(&b, "%02X", v)
	}
	return format(b.String()), nil
}

// IsMulticast reports whether the group bit of the first octet is set.
// canonical must come from Normalize.
func IsMulticast(canonical string) bool {
	return firstOctet(canonical)&0x01 != 0
}

// IsLocallyAdministered reports whether the U/L bit of the first octet is set.
func IsLocallyAdministered(canonical string) bool {
	return firstOctet(canonical)&0x02 != 0
}

func firstOctet(canonical string) uint64 {
	if len(canonical) < 2 {
		return 0
	}
	v, err := strconv.ParseUint(canonical[:2], 16, 8)
	if err != nil {
		return 0
	}
	return v
}

func format(hex string) string {
	var b strings.Builder
	b.Grow(HexDigits + 5)
	for i := 0; i < len(hex); i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(hex[i : i+2])
	}
	return b.String()
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
