package security

import (
	"errors"
	"unicode"
	"unicode/utf8"
)

const minPasswordLength = 8

var ErrWeakPassword = errors.New("password must be at least 8 characters and contain a letter and a digit")

// CheckPasswordPolicy is applied whenever a password is set. Existing
// passwords are never re-checked on login.
func CheckPasswordPolicy(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return ErrWeakPassword
	}
	letter := false
	digit := false
	for _, r := range password {
		letter = letter || unicode.IsLetter(r)
		digit = digit || unicode.IsDigit(r)
	}
	if !letter || !digit {
		return ErrWeakPassword
	}
	return nil
}
