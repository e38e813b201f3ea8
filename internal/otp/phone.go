package otp

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPhone marks a phone number that failed normalization.
var ErrInvalidPhone = errors.New("otp: invalid phone")

// NormalizePhone converts a user-entered phone number to international
// form: separators are stripped and a leading 0 is replaced with the
// country prefix (e.g. "0501234567" -> "+972501234567"). Numbers already
// in +... form keep their prefix.
func NormalizePhone(raw, countryPrefix string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	var normalized string
	switch {
	case strings.HasPrefix(cleaned, "+"):
		normalized = cleaned
	case strings.HasPrefix(cleaned, "0"):
		normalized = countryPrefix + cleaned[1:]
	default:
		return "", fmt.Errorf("%w: %q: expected leading 0 or +", ErrInvalidPhone, raw)
	}

	digits := normalized[1:]
	if len(digits) < 8 || len(digits) > 15 {
		return "", fmt.Errorf("%w: %q: bad length", ErrInvalidPhone, raw)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q: non-digit character", ErrInvalidPhone, raw)
		}
	}
	return normalized, nil
}
