package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// PrefixLength is the number of leading plaintext characters stored for
	// indexed candidate lookup, e.g. "sk_live_abcd". The prefix is not a
	// secret and is never sufficient to authenticate.
	PrefixLength = 12

	// KeyEnvironmentLive and KeyEnvironmentTest select the key namespace.
	KeyEnvironmentLive = "live"
	KeyEnvironmentTest = "test"
)

// GenerateKey produces a new API key secret in the format
// sk_{environment}_{32 hex chars} with 128 bits of entropy, along with its
// lookup prefix and bcrypt hash. The plaintext is returned exactly once and
// must never be persisted.
func GenerateKey(environment string) (plaintext, prefix, hash string, err error) {
	if environment != KeyEnvironmentLive && environment != KeyEnvironmentTest {
		return "", "", "", fmt.Errorf("invalid key environment %q", environment)
	}

	random := make([]byte, 16)
	if _, err := rand.Read(random); err != nil {
		return "", "", "", fmt.Errorf("read entropy: %w", err)
	}

	plaintext = "sk_" + environment + "_" + hex.EncodeToString(random)
	prefix = plaintext[:PrefixLength]

	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", "", "", fmt.Errorf("hash key: %w", err)
	}

	return plaintext, prefix, string(digest), nil
}

// VerifyKey compares a plaintext key against a stored bcrypt hash. A mismatch
// is not an error, just false.
func VerifyKey(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// HashPassword hashes a user password with the same cost policy as API keys.
func HashPassword(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// VerifyPassword compares a plaintext password against a stored bcrypt hash.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
