package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is enforced when a user sets a credentials password.
const MinPasswordLength = 8

// ErrWeakPassword is returned for passwords shorter than MinPasswordLength.
var ErrWeakPassword = errors.New("password must be at least 8 characters")

// HashPassword returns the bcrypt hash of the password.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a stored hash with a candidate password. An empty
// hash never matches, so OAuth-only accounts cannot log in with credentials.
func CheckPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
