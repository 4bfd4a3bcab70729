package domain

import (
	"errors"
	"strings"
)

var ErrBadIdentifier = errors.New("identifier is not a valid phone number or email")

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone strips separators and returns an E.164-style number
// (leading + followed by 8-15 digits). "00" international prefixes are
// rewritten to "+".
func NormalizePhone(phone string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(phone) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && b.Len() == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			// separator, drop
		default:
			return "", ErrBadIdentifier
		}
	}

	s := b.String()
	s = strings.TrimPrefix(s, "+")
	s = strings.TrimPrefix(s, "00")
	if len(s) < 8 || len(s) > 15 {
		return "", ErrBadIdentifier
	}
	return "+" + s, nil
}

// NormalizeIdentifier classifies an OTP target as email or phone and
// normalizes it. Anything containing "@" is treated as an email.
func NormalizeIdentifier(identifier string) (normalized string, isEmail bool, err error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", false, ErrBadIdentifier
	}
	if strings.Contains(identifier, "@") {
		return NormalizeEmail(identifier), true, nil
	}
	phone, err := NormalizePhone(identifier)
	if err != nil {
		return "", false, err
	}
	return phone, false, nil
}
