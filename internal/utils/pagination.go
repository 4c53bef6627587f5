// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "strconv"

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// AtouDefault converts a string to a uint identifier. Returns the default
// when the string is empty, unparsable, or negative.
func AtouDefault(s string, def uint) uint {
	if s == "" {
		return def
	}
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return uint(n)
	}
	return def
}
