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

// RoundTo rounds `f` half away from zero to `places` decimal places.
func RoundTo(f float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(f*p) / p
}
