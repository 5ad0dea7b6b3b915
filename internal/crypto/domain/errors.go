package domain

import (
	"github.com/allisson/glvault/internal/errors"
)

// Key material and codec error definitions.
//
// Codec errors never escape the storage layers: stores recover them locally into
// passthrough or empty values. They exist so Decrypt callers can tell why a value
// did not decode.
var (
	// ErrInvalidKeyFile indicates the key file does not hold exactly 48 bytes of key material
	// or could not be unwrapped.
	ErrInvalidKeyFile = errors.Wrap(errors.ErrInvalidInput, "invalid key file")

	// ErrInvalidFormat indicates the ciphertext is not base64 or not a whole number of AES blocks.
	ErrInvalidFormat = errors.Wrap(errors.ErrInvalidInput, "invalid ciphertext format")

	// ErrInvalidPadding indicates the decrypted block does not end in valid PKCS#7 padding.
	ErrInvalidPadding = errors.Wrap(errors.ErrInvalidInput, "invalid padding")

	// ErrKeyMismatch indicates the ciphertext decrypted to bytes that are not text,
	// which in practice means it was produced under a different key.
	ErrKeyMismatch = errors.Wrap(errors.ErrInvalidInput, "key mismatch")
)
