package phone

import (
	"errors"
	"strings"
	"unicode"
)

const (
	minDigits = 10
	maxDigits = 15
)

var ErrInvalid = errors.New("неверный формат номера")

// Clean removes whitespace, including non-breaking and other Unicode spaces,
// and the punctuation people type around phone numbers.
func Clean(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		switch r {
		case '+', '-', '(', ')':
			return -1
		}
		return r
	}, raw)
}

// Validate reports whether raw holds 10 to 15 decimal digits once cleaned.
func Validate(raw string) bool {
	digits := Clean(raw)
	if len(digits) < minDigits || len(digits) > maxDigits {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Parse trims raw and returns it unchanged when it is a valid number.
func Parse(raw string) (string, error) {
	number := strings.TrimSpace(raw)
	if !Validate(number) {
		return "", ErrInvalid
	}
	return number, nil
}

// Format renders Russian numbers as +7 (XXX) XXX-XX-XX. Anything else comes
// back as cleaned digits.
func Format(raw string) string {
	d := Clean(raw)
	switch {
	case len(d) == 11 && d[0] == '7':
		return "+7 (" + d[1:4] + ") " + d[4:7] + "-" + d[7:9] + "-" + d[9:11]
	case len(d) == 10:
		return "+7 (" + d[0:3] + ") " + d[3:6] + "-" + d[6:8] + "-" + d[8:10]
	default:
		return d
	}
}
