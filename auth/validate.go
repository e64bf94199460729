package auth

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validation messages returned verbatim to clients
const (
	MsgEmailRequired    = "Email is required!"
	MsgEmailInvalid     = "Invalid email format"
	MsgPasswordRequired = "Password is required!"
	MsgPasswordWeak     = "Password must be at least 6 characters long"
)

// Strength policy. The message above predates the policy and is kept for
// client compatibility.
const (
	minPasswordLength = 8
	minLowercase      = 1
	minUppercase      = 1
	minDigits         = 1
	minSymbols        = 1

	// bcrypt only digests the first 72 bytes
	maxPasswordBytes = 72
)

// passwordSymbols are the characters counted as symbols
const passwordSymbols = "-#!$@£%^&*()_+|~=`{}[]:\";'<>?,./\\ "

var validate = validator.New()

// ValidateEmail returns nil or an error whose message is safe to show
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New(MsgEmailRequired)
	}
	if err := validate.Var(email, "email"); err != nil {
		return errors.New(MsgEmailInvalid)
	}
	return nil
}

// ValidatePassword returns nil or an error whose message is safe to show
func ValidatePassword(password string) error {
	if password == "" {
		return errors.New(MsgPasswordRequired)
	}
	if len(password) > maxPasswordBytes || !IsStrongPassword(password) {
		return errors.New(MsgPasswordWeak)
	}
	return nil
}

// IsStrongPassword reports whether password satisfies the length and
// character-class policy. Letters and digits count only in their ASCII
// ranges; symbols come from passwordSymbols.
func IsStrongPassword(password string) bool {
	var length, lower, upper, digits, symbols int
	for _, r := range password {
		length++
		switch {
		case r >= 'a' && r <= 'z':
			lower++
		case r >= 'A' && r <= 'Z':
			upper++
		case r >= '0' && r <= '9':
			digits++
		case strings.ContainsRune(passwordSymbols, r):
			symbols++
		}
	}
	return length >= minPasswordLength &&
		lower >= minLowercase &&
		upper >= minUppercase &&
		digits >= minDigits &&
		symbols >= minSymbols
}
