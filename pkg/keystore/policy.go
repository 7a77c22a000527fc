package keystore

import (
	"unicode"

	"github.com/apex-sdk/apex-sdk-go/pkg/apexerr"
)

// MinPasswordLength is the minimum accepted keystore password length.
const MinPasswordLength = 12

// weakPasswords is a small embedded blocklist of trivially weak passwords,
// rejected regardless of length or character classes.
var weakPasswords = map[string]bool{
	"password123":  true,
	"123456789":    true,
	"qwerty123":    true,
	"admin123":     true,
	"letmein123":   true,
	"welcome123":   true,
}

// ValidatePassword enforces the keystore's write-time password policy:
// length >= 12, at least one uppercase/lowercase/digit, and rejection of a
// small blocklist of weak passwords.
func ValidatePassword(password string) error {
	if weakPasswords[password] {
		return apexerr.Config("password is in the list of commonly used weak passwords")
	}
	if len(password) < MinPasswordLength {
		return apexerr.Config("password must be at least 12 characters long")
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper {
		return apexerr.Config("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return apexerr.Config("password must contain at least one lowercase letter")
	}
	if !hasDigit {
		return apexerr.Config("password must contain at least one digit")
	}
	return nil
}
