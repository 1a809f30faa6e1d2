package auth

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/cloud-wave-best-zizon/marketplace-service/internal/domain"
)

const DefaultBcryptCost = 10

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

type PasswordHasher struct {
	cost int

	dummyOnce sync.Once
	dummy     []byte
}

// NewPasswordHasher returns a bcrypt hasher. A cost outside bcrypt's range
// falls back to DefaultBcryptCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash salts and hashes raw. bcrypt draws a fresh salt on every call.
func (h *PasswordHasher) Hash(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), h.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", domain.Validationf("password must be at most %d bytes", MaxPasswordBytes)
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CompareMissing spends the same bcrypt work as Compare for a login whose
// account does not exist. It always reports false.
func (h *PasswordHasher) CompareMissing(raw string) bool {
	h.dummyOnce.Do(func() {
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("no-such-account"), h.cost)
	})
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(raw))
	return false
}

func (h *PasswordHasher) Compare(hash, raw string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("compare password: %w", err)
}
