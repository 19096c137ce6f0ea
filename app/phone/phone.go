// Package phone compares provider-reported phone numbers with channel numbers.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// maxNationalDigits is the longest national number we parse with the default
// region; anything longer already carries its country code.
const maxNationalDigits = 11

type Matcher struct {
	region string
}

// NewMatcher builds a matcher that parses national numbers in region.
func NewMatcher(region string) *Matcher {
	return &Matcher{region: strings.ToUpper(strings.TrimSpace(region))}
}

// Normalize returns the E.164 digits of input without the leading plus. When
// the number cannot be parsed or validated the bare digits are returned.
func (m *Matcher) Normalize(input string) string {
	trimmed := strings.TrimSpace(input)
	digits := digitsOnly(trimmed)
	if digits == "" {
		return ""
	}

	candidate := trimmed
	if !strings.HasPrefix(trimmed, "+") && len(digits) > maxNationalDigits {
		candidate = "+" + digits
	}

	number, err := phonenumbers.Parse(candidate, m.region)
	if err != nil || !phonenumbers.IsValidNumber(number) {
		return digits
	}
	return strings.TrimPrefix(phonenumbers.Format(number, phonenumbers.E164), "+")
}

// Match reports whether a and b name the same line. Brazilian mobiles match
// with or without the ninth digit.
func (m *Matcher) Match(a string, b string) bool {
	na, nb := m.Normalize(a), m.Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	return withoutBrazilNinthDigit(na) == withoutBrazilNinthDigit(nb)
}

// withoutBrazilNinthDigit maps 55 AA 9XXXXXXXX to 55 AA XXXXXXXX.
func withoutBrazilNinthDigit(digits string) string {
	if len(digits) == 13 && strings.HasPrefix(digits, "55") && digits[4] == '9' {
		return digits[:4] + digits[5:]
	}
	return digits
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
