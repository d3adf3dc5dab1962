package crypto

import "golang.org/x/crypto/sha3"

// DeriveSessionKey computes the 32-byte session key from an X25519 shared
// secret: session_key = Keccak256(shared).
func DeriveSessionKey(shared [32]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(shared[:])
	sum := h.Sum(nil)
	var key [32]byte
	copy(key[:], sum)
	return key
}
