// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "RU"

// NormalizeE164 formats a phone number to E.164. It returns the empty
// string when the input is not a valid number, so callers can treat the
// result as both the canonical form and the validity check.
func NormalizeE164(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}

	// Leading 8 is the domestic trunk prefix.
	if strings.HasPrefix(trimmed, "8") && len(trimmed) == 11 {
		trimmed = "+7" + trimmed[1:]
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return ""
	}

	if !phonenumbers.IsValidNumber(number) {
		return ""
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}
