// Package auth holds the credential primitives of the account service:
// password hashing, session tokens, CSRF tokens and input validation.
package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost matches the salt rounds the service has always used
const DefaultBcryptCost = 10

// ErrPasswordTooLong is returned by Hash for secrets bcrypt cannot digest
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// BcryptHasher hashes secrets with a fresh random salt per call
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a hasher. Costs outside bcrypt's range fall back
// to DefaultBcryptCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns the salted bcrypt digest of plaintext
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches hash. Malformed hashes simply
// don't match.
func (h *BcryptHasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
