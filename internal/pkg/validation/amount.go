package validation

import (
	"strconv"
	"strings"

	"tng-backend/internal/ledger"
)

// ParseAmount parses a wire amount: a base-10 integer string in the
// asset's smallest unit. Amounts are never floats; the string form
// exists so JavaScript clients cannot lose precision past 2^53.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ledger.E(ledger.CodeInvalidAmount, "amount is required")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, ledger.E(ledger.CodeInvalidAmount, "amount must be a positive integer in the asset's smallest unit")
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ledger.E(ledger.CodeInvalidAmount, "amount out of range")
	}
	if n <= 0 {
		return 0, ledger.E(ledger.CodeInvalidAmount, "amount must be positive")
	}
	return n, nil
}

// FormatAmount renders an internal amount for the wire.
func FormatAmount(n int64) string {
	return strconv.FormatInt(n, 10)
}
