package harvester

import (
	"strconv"
	"strings"
)

// SafeInt parses s into an int, returning nil for empty or
// malformed input. Upstream XML happily serves "" and "N/A" in
// numeric attributes.
func SafeInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

// SafeFloat parses s into a float64, returning nil for empty or
// malformed input.
func SafeFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
