package utils

import (
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// TestPassword checks a candidate password against the registration policy:
// at least 8 characters, one uppercase letter, one lowercase letter and one
// digit. It returns a human-readable reason when the password is too weak,
// or the empty string when it is acceptable. The reason is safe to send back
// to the client verbatim.
func TestPassword(plain string) string {
	if len(plain) < 8 {
		return "Password must be at least 8 characters long"
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range plain {
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
		return "Password must include at least one uppercase letter"
	}
	if !hasLower {
		return "Password must include at least one lowercase letter"
	}
	if !hasDigit {
		return "Password must include at least one number"
	}
	return ""
}
