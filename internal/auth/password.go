package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// HashPassword returns the bcrypt hash stored in admin.passwordHash
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", errors.New("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckCredentials compares the login against the configured admin account.
// Both the email and the password are always checked.
func CheckCredentials(configuredEmail, passwordHash, email, password string) error {
	if configuredEmail == "" || passwordHash == "" {
		return ErrInvalidCredentials
	}
	emailOK := subtle.ConstantTimeCompare(
		[]byte(strings.ToLower(strings.TrimSpace(email))),
		[]byte(strings.ToLower(strings.TrimSpace(configuredEmail))),
	) == 1
	passwordErr := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password))
	if !emailOK || passwordErr != nil {
		return ErrInvalidCredentials
	}
	return nil
}
