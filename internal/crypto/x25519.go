package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// KeyPair is an X25519 key pair used for the per-session handshake.
type KeyPair struct {
	Private [32]byte
	Public  [32]byte
}

// GenerateKeyPair creates a fresh ephemeral X25519 key pair.
func GenerateKeyPair() (KeyPair, error) {
	var kp KeyPair
	if _, err := rand.Read(kp.Private[:]); err != nil {
		return KeyPair{}, fmt.Errorf("generating x25519 private key: %w", err)
	}
	pub, err := curve25519.X25519(kp.Private[:], curve25519.Basepoint)
	if err != nil {
		return KeyPair{}, fmt.Errorf("deriving x25519 public key: %w", err)
	}
	copy(kp.Public[:], pub)
	return kp, nil
}

// Agree computes the X25519 shared secret between a local private key and a
// peer's public key.
func Agree(priv, peerPub [32]byte) ([32]byte, error) {
	shared, err := curve25519.X25519(priv[:], peerPub[:])
	if err != nil {
		return [32]byte{}, fmt.Errorf("x25519 agreement: %w", err)
	}
	var out [32]byte
	copy(out[:], shared)
	return out, nil
}

// Wipe zeroes a key-sized buffer in place. Callers are expected to call this
// on private keys and shared secrets once they are no longer needed.
func Wipe(b *[32]byte) {
	for i := range b {
		b[i] = 0
	}
}
