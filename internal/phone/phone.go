// Package phone is the single source of truth for phone number validation.
// Every entry path that accepts a phone number must normalize it here before
// using it as a cache key or a lookup key.
package phone

import (
	"errors"
	"strings"
)

// ErrInvalidPhone is returned for any input that cannot be normalized to a
// valid 11-digit phone number.
var ErrInvalidPhone = errors.New("invalid phone number format")

// Normalize validates and normalizes a phone number:
//
//  1. spaces are stripped, the rest must be all digits
//  2. 10 digits get a leading '0' prepended
//  3. 11 digits must already start with '0'
//
// The result is always an 11-digit string starting with '0'.
func Normalize(raw string) (string, error) {
	number := strings.ReplaceAll(raw, " ", "")
	if number == "" || !isDigits(number) {
		return "", ErrInvalidPhone
	}

	switch len(number) {
	case 10:
		return "0" + number, nil
	case 11:
		if number[0] != '0' {
			return "", ErrInvalidPhone
		}
		return number, nil
	}
	return "", ErrInvalidPhone
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
