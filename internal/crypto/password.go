package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 120_000
	pbkdf2KeyLen     = 64
)

// HashPassword derives a 64-byte PBKDF2 hash from password using a fresh
// random 64-byte salt, per spec.md §4.2.
func HashPassword(password string) (salt [64]byte, hash [64]byte, err error) {
	if _, err = rand.Read(salt[:]); err != nil {
		return salt, hash, fmt.Errorf("generating salt: %w", err)
	}
	derived := pbkdf2.Key([]byte(password), salt[:], pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
	copy(hash[:], derived)
	return salt, hash, nil
}

// VerifyPassword recomputes the PBKDF2 hash for password with the given salt
// and compares it to hash in constant time.
func VerifyPassword(password string, salt, hash [64]byte) bool {
	derived := pbkdf2.Key([]byte(password), salt[:], pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
	return subtle.ConstantTimeCompare(derived, hash[:]) == 1
}

// FakeVerify performs a PBKDF2 computation of the same cost as VerifyPassword
// without comparing against a real record, so that a lookup-miss on Login
// takes at least as long as a lookup-hit with a wrong password (spec.md §8,
// property 4: timing equivalence).
func FakeVerify(password string) {
	var salt [64]byte
	_ = pbkdf2.Key([]byte(password), salt[:], pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
}
