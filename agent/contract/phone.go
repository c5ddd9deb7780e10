package contract

import (
	"fmt"
	"strings"
)

const phoneLength = 11

// NormalizePhone strips formatting punctuation and validates the result
// against the 89XXXXXXXXX customer-key format. Inputs like "8-912-345-67-89"
// normalize to "89123456789".
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	b.Grow(phoneLength)
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if len(cleaned) != phoneLength || !strings.HasPrefix(cleaned, "89") {
		return "", fmt.Errorf("%w: phone number %q must be 11 digits starting with 89", ErrValidation, raw)
	}
	return cleaned, nil
}
