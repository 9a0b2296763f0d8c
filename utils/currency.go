package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatAmount formats a whole-unit amount with comma thousand separators,
// e.g. FormatAmount("UGX", 16000) -> "UGX 16,000". Fractions are rounded away.
func FormatAmount(currency string, amount decimal.Decimal) string {
	rounded := amount.Round(0)
	digits := rounded.Abs().StringFixed(0)

	var groups []string
	for i := len(digits); i > 0; i -= 3 {
		start := i - 3
		if start < 0 {
			start = 0
		}
		groups = append([]string{digits[start:i]}, groups...)
	}

	sign := ""
	if rounded.IsNegative() {
		sign = "-"
	}
	if currency == "" {
		return sign + strings.Join(groups, ",")
	}
	return currency + " " + sign + strings.Join(groups, ",")
}

// FormatUGX -> "UGX 16,000"
func FormatUGX(amount decimal.Decimal) string {
	return FormatAmount("UGX", amount)
}
