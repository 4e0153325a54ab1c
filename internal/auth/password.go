package auth

import (
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword generates a bcrypt hash of the password.
func HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// CheckPasswordHash compares a plaintext password with a stored bcrypt hash.
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword checks password against the configured policy expression.
func ValidatePassword(password, policy string) error {
	re, err := regexp.Compile(policy)
	if err != nil {
		return fmt.Errorf("invalid password policy: %w", err)
	}
	if !re.MatchString(password) {
		return fmt.Errorf("password does not meet requirements")
	}
	return nil
}
