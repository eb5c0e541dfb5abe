package auth

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/fancy-blog/internal/apperror"
)

// defaultCost is the bcrypt work factor. Cost 12 takes roughly 250ms on
// a modern server — negligible for a login, brutal for an offline
// brute-force attacker. Tune so hashing stays in the 200-300ms range on
// production hardware.
const defaultCost = 12

// PasswordService provides bcrypt hashing and verification. It is a
// struct rather than free functions so tests can inject a low cost and
// skip the ~250ms per hash.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest creates a PasswordService with a custom
// cost. Use bcrypt's minimum (4) in tests; never in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash hashes a plaintext password. The output embeds the salt and cost,
// so it is stored as-is and Verify needs no extra inputs.
//
// bcrypt silently truncates inputs longer than 72 bytes; we reject them
// instead so callers aren't surprised.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", apperror.ValidationFailed("password", "Password must not be empty")
	}
	if len(plaintext) > 72 {
		return "", apperror.ValidationFailed("password", "Password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", apperror.ValidationFailed("password", "Password could not be hashed")
	}

	return string(hashed), nil
}

// Verify reports whether plaintext matches the stored hash. The
// comparison is constant-time inside bcrypt. A malformed hash is
// reported the same way as a mismatch: the caller only learns "these
// credentials do not work".
func (p *PasswordService) Verify(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
