package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/Cam1McH/RainienShare-sub001/internal/util"
)

const minPasswordLen = 8

// HashPassword derives a bcrypt hash from the NFKD-normalized password.
// bcrypt embeds its cost parameter in the hash, so the work factor can be
// raised later without invalidating stored hashes.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(util.Normalize(password)), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored hash. The
// comparison is pure: it never mutates state, and bcrypt's verification is
// resistant to timing analysis of the password content.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(util.Normalize(password))) == nil
}

// validatePassword enforces the minimum strength requirement shared by
// signup and password reset.
func validatePassword(password string) error {
	if len(password) < minPasswordLen {
		return ErrWeakPassword
	}
	return nil
}
