package core

import (
	"math"
	"strings"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// RoundPercent returns round(100 * part / total); 0 when total is 0.
func RoundPercent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(total)))
}
