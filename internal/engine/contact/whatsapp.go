// Package contact builds links for reaching a producer.
package contact

import (
	"strings"
	"unicode"
)

// DefaultCountryCode is the calling code assumed for local numbers.
const DefaultCountryCode = "56"

// WhatsAppLink turns a free-form phone number into a wa.me link. Numbers
// of at most nine digits that do not already start with countryCode are
// treated as local and get it prefixed. It reports false when the input
// has no digits at all.
func WhatsAppLink(phone, countryCode string) (string, bool) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return "", false
	}

	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	countryCode = strings.TrimFunc(countryCode, func(r rune) bool { return !unicode.IsDigit(r) })
	if !strings.HasPrefix(digits, countryCode) && len(digits) <= 9 {
		digits = countryCode + digits
	}
	return "https://wa.me/" + digits, true
}
