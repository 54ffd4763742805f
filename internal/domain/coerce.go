package domain

import (
	"math"
	"strconv"
	"strings"
)

// belowLimitPrefix marks a below-detection-limit reading such as "<2".
const belowLimitPrefix = "<"

// ParseInteger converts feed text to an integer. Empty or non-numeric text
// yields ok=false. A "<X" token yields X. Fractional text is truncated toward
// zero, so "12.0" and "12.7" both yield 12. Negative values are returned as-is.
func ParseInteger(text string) (int, bool) {
	v, ok := ParseFraction(text)
	if !ok {
		return 0, false
	}
	if v > math.MaxInt32 || v < math.MinInt32 {
		return 0, false
	}
	return int(v), true
}

// ParseFraction converts feed text to a float. Empty or non-numeric text
// yields ok=false. A "<X" token yields X.
func ParseFraction(text string) (float64, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, false
	}
	if rest, found := strings.CutPrefix(s, belowLimitPrefix); found {
		s = strings.TrimSpace(rest)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
