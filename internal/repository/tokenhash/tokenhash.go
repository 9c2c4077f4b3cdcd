package tokenhash

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
)

const SaltLen = 16

// NewSalt returns a fresh random per-record salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("error while generating salt. Err: %w", err)
	}
	return salt, nil
}

// Sum computes the salted one-way hash of a bearer value (HMAC-SHA256
// keyed with the record salt).
func Sum(salt []byte, bearer string) []byte {
	mac := hmac.New(sha256.New, salt)
	mac.Write([]byte(bearer))
	return mac.Sum(nil)
}

// Match reports whether bearer hashes to storedHash under salt.
// hmac.Equal compares in constant time, so no early-exit timing leak.
func Match(salt []byte, storedHash []byte, bearer string) bool {
	return hmac.Equal(Sum(salt, bearer), storedHash)
}
