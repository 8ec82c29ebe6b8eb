// Package password hashes and verifies account passwords with bcrypt.
package password

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tubeaccounts/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// Hasher is the one-way password hashing contract.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// BcryptHasher implements Hasher with a fixed bcrypt cost.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher clamps cost into bcrypt's accepted range.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &BcryptHasher{cost: cost}
}

// generateFromPassword is a test seam for bcrypt.GenerateFromPassword.
var generateFromPassword = bcrypt.GenerateFromPassword

// Hash returns a salted bcrypt digest of plaintext. Passwords over bcrypt's
// 72-byte input limit are rejected as a validation error.
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	digest, err := generateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: password is too long", common.ErrValidation)
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches digest. A malformed digest never matches.
func (h *BcryptHasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
