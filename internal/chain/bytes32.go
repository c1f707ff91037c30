package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// IDLength is the length of a normalized identifier: 0x plus 64 hex digits.
const IDLength = 2 + 2*common.HashLength

// NormalizeID returns the canonical bytes32 form of a product or transfer
// identifier: lower-case hex, 0x prefixed, left-padded to 32 bytes.
// The prefix is optional on input. Anything that is not 1 to 64 hex digits
// is rejected with ErrInvalidIdentifier. NormalizeID(NormalizeID(s)) equals
// NormalizeID(s).
func NormalizeID(s string) (string, error) {
	raw := strings.TrimSpace(s)
	if len(raw) >= 2 && raw[0] == '0' && (raw[1] == 'x' || raw[1] == 'X') {
		raw = raw[2:]
	}
	if raw == "" || len(raw) > 2*common.HashLength {
		return "", newError(ErrInvalidIdentifier, "normalize", errInvalidIDText(s))
	}
	for i := 0; i < len(raw); i++ {
		if !isHex(raw[i]) {
			return "", newError(ErrInvalidIdentifier, "normalize", errInvalidIDText(s))
		}
	}
	return "0x" + strings.Repeat("0", 2*common.HashLength-len(raw)) + strings.ToLower(raw), nil
}

// ParseID normalizes s and returns it as a 32-byte array.
func ParseID(s string) ([32]byte, error) {
	norm, err := NormalizeID(s)
	if err != nil {
		return [32]byte{}, err
	}
	return common.HexToHash(norm), nil
}

// FormatID renders a bytes32 value in the normalized form.
func FormatID(id [32]byte) string {
	return common.Hash(id).Hex()
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

type errInvalidIDText string

func (e errInvalidIDText) Error() string {
	return "not a bytes32 hex value: " + string(e)
}
