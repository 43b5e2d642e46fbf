package utils

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// WeiPerEther is the number of base units in one ether.
const WeiPerEther uint64 = 1_000_000_000_000_000_000

const etherDecimals = 18

var ErrInvalidAmount = errors.New("invalid amount")

// ParseEther converts a decimal ether string such as "0.01" into base units.
// More than 18 fractional digits, negatives, and values that overflow a
// uint64 are rejected.
func ParseEther(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if s == "" || len(frac) > etherDecimals {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	frac += strings.Repeat("0", etherDecimals-len(frac))

	n, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok || n.Sign() < 0 || !n.IsUint64() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return n.Uint64(), nil
}

// FormatEther renders base units as a trimmed decimal ether string.
func FormatEther(wei uint64) string {
	whole, frac := wei/WeiPerEther, wei%WeiPerEther
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}
	digits := strings.TrimRight(fmt.Sprintf("%018d", frac), "0")
	return fmt.Sprintf("%d.%s", whole, digits)
}
