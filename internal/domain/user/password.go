package user

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
)

// ErrEmptyPassword is returned when hashing an empty password.
var ErrEmptyPassword = errors.New("password must not be empty")

// PasswordParams are the Argon2id cost parameters.
type PasswordParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
}

// DefaultPasswordParams follow the OWASP minimum for Argon2id
// (46 MiB, 1 iteration, 1 lane).
func DefaultPasswordParams() PasswordParams {
	return PasswordParams{MemoryKiB: 47 * 1024, Iterations: 1, Parallelism: 1}
}

// PasswordHasher hashes and verifies user passwords.
type PasswordHasher struct {
	params *argon2id.Params
}

// NewPasswordHasher creates a hasher with p. Zero fields fall back to the defaults.
func NewPasswordHasher(p PasswordParams) *PasswordHasher {
	def := DefaultPasswordParams()
	if p.MemoryKiB == 0 {
		p.MemoryKiB = def.MemoryKiB
	}
	if p.Iterations == 0 {
		p.Iterations = def.Iterations
	}
	if p.Parallelism == 0 {
		p.Parallelism = def.Parallelism
	}
	return &PasswordHasher{params: &argon2id.Params{
		Memory:      p.MemoryKiB,
		Iterations:  p.Iterations,
		Parallelism: p.Parallelism,
		SaltLength:  16,
		KeyLength:   32,
	}}
}

// Hash returns the Argon2id PHC string for password.
// Format: $argon2id$v=19$m=47104,t=1,p=1$<salt>$<hash>
func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	return argon2id.CreateHash(password, h.params)
}

// Verify reports whether password matches storedHash. A missing or
// non-Argon2id hash never matches.
func (h *PasswordHasher) Verify(password, storedHash string) (bool, error) {
	if !strings.HasPrefix(storedHash, "$argon2id$") {
		return false, nil
	}
	return safeCompare(password, storedHash)
}

// safeCompare wraps argon2id.ComparePasswordAndHash with panic recovery.
// The argon2 package panics on hashes with invalid parameters (t=0, p=0).
func safeCompare(password, storedHash string) (match bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			match = false
			err = fmt.Errorf("invalid argon2id hash parameters: %v", r)
		}
	}()
	return argon2id.ComparePasswordAndHash(password, storedHash)
}
