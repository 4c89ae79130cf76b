// Package utils provides small helpers shared by the transport layers. They
// carry no domain logic.
package utils

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidLimit reports a limit that is not a non-negative integer.
var ErrInvalidLimit = errors.New("limit must be a non-negative integer")

// ParseLimit parses a result-size parameter such as ?limit=5.
//
// An empty (or blank) value yields 0, which callers treat as "use the
// default". Values above max are clamped to max when max > 0.
//
//	ParseLimit("", 100)    // 0, nil
//	ParseLimit("7", 100)   // 7, nil
//	ParseLimit("500", 100) // 100, nil
//	ParseLimit("-1", 100)  // 0, ErrInvalidLimit
func ParseLimit(s string, max int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, ErrInvalidLimit
	}
	if max > 0 && n > max {
		n = max
	}
	return n, nil
}
