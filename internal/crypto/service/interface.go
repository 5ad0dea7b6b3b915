// Package service provides the process-wide key manager and the string codec used to
// encrypt connection profiles and certificate approvals at rest.
package service

import (
	"context"

	cryptoDomain "github.com/allisson/glvault/internal/crypto/domain"
)

// KeyProvider supplies the process encryption key, creating it on first use.
type KeyProvider interface {
	// Key returns the loaded key, initializing the key manager if needed.
	Key() (cryptoDomain.EncryptionKey, error)
}

// KeyWrapper seals the key file content at rest. *secrets.Keeper from
// gocloud.dev/secrets satisfies it.
type KeyWrapper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}

// Codec defines the reversible string transform used by the stores.
type Codec interface {
	// Encrypt returns the base64 ciphertext of plaintext.
	Encrypt(plaintext string) (string, error)

	// EncryptOrPlain returns the ciphertext, or plaintext unchanged when encryption fails.
	EncryptOrPlain(plaintext string) string

	// Decrypt returns the plaintext of a base64 ciphertext, or "" and an error.
	Decrypt(ciphertext string) (string, error)

	// TryDecrypt never fails loudly: it reports whether value decoded, and passes
	// empty or whitespace-only values through unchanged.
	TryDecrypt(value string) (string, bool)
}
