package domain

import (
	"crypto/rand"
	"fmt"
)

// EncryptionKey is the symmetric key and IV pair used by the string codec.
//
// One EncryptionKey exists per process. It is created on first run, loaded on every
// later run and never rotated: every stored profile and certificate approval is
// encrypted under it, so replacing it makes existing storage unreadable.
type EncryptionKey struct {
	Key [KeySize]byte
	IV  [IVSize]byte
}

// NewEncryptionKey generates a fresh random key and IV using crypto/rand.
func NewEncryptionKey() (EncryptionKey, error) {
	var k EncryptionKey
	if _, err := rand.Read(k.Key[:]); err != nil {
		return EncryptionKey{}, fmt.Errorf("failed to generate key: %w", err)
	}
	if _, err := rand.Read(k.IV[:]); err != nil {
		return EncryptionKey{}, fmt.Errorf("failed to generate iv: %w", err)
	}
	return k, nil
}

// ParseEncryptionKey decodes the key file layout (32 key bytes then 16 IV bytes).
// Returns ErrInvalidKeyFile when the length does not match.
func ParseEncryptionKey(b []byte) (EncryptionKey, error) {
	if len(b) != KeyFileSize {
		return EncryptionKey{}, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidKeyFile, KeyFileSize, len(b))
	}
	var k EncryptionKey
	copy(k.Key[:], b[:KeySize])
	copy(k.IV[:], b[KeySize:])
	return k, nil
}

// Bytes returns the key file encoding of k. The caller owns the returned slice
// and should Zero it once written.
func (k EncryptionKey) Bytes() []byte {
	b := make([]byte, 0, KeyFileSize)
	b = append(b, k.Key[:]...)
	return append(b, k.IV[:]...)
}

// IsZero reports whether k has never been populated.
func (k EncryptionKey) IsZero() bool {
	return k == EncryptionKey{}
}
