package protocol

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ParseHex decodes a message written as hex digits, two digits per byte with
// the high nibble first. Whitespace between digits is ignored.
func ParseHex(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("hex message has odd length %d", len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("bad hex message: %w", err)
	}
	return b, nil
}
