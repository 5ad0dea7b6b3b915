package service

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	cryptoDomain "github.com/allisson/glvault/internal/crypto/domain"
)

// CodecService encrypts strings with the key supplied by a KeyProvider and encodes
// the result as standard base64.
//
// Known limitation: the IV is fixed per process, so the codec is deterministic.
// Equal plaintexts map to equal ciphertexts.
type CodecService struct {
	keys   KeyProvider
	logger *slog.Logger
}

// NewCodec creates a codec bound to keys.
func NewCodec(keys KeyProvider, logger *slog.Logger) *CodecService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CodecService{keys: keys, logger: logger}
}

func (c *CodecService) cipher() (*AESCBCCipher, error) {
	key, err := c.keys.Key()
	if err != nil {
		return nil, fmt.Errorf("encryption key unavailable: %w", err)
	}
	return NewAESCBC(key.Key[:], key.IV[:])
}

// Encrypt returns base64(AES-256-CBC(plaintext)).
func (c *CodecService) Encrypt(plaintext string) (string, error) {
	aesCipher, err := c.cipher()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(aesCipher.Encrypt([]byte(plaintext))), nil
}

// EncryptOrPlain returns the ciphertext of plaintext. If encryption fails the
// plaintext is returned unchanged, so storage degrades instead of failing.
func (c *CodecService) EncryptOrPlain(plaintext string) string {
	ciphertext, err := c.Encrypt(plaintext)
	if err != nil {
		c.logger.Warn("encryption failed, storing value unencrypted", slog.Any("error", err))
		return plaintext
	}
	return ciphertext
}

// Decrypt returns the plaintext for a value produced by Encrypt. On failure it
// returns "" and one of ErrInvalidFormat, ErrInvalidPadding or ErrKeyMismatch.
func (c *CodecService) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(ciphertext))
	if err != nil {
		return "", fmt.Errorf("%w: %v", cryptoDomain.ErrInvalidFormat, err)
	}

	aesCipher, err := c.cipher()
	if err != nil {
		return "", err
	}

	plain, err := aesCipher.Decrypt(raw)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(plain) {
		return "", cryptoDomain.ErrKeyMismatch
	}
	return string(plain), nil
}

// TryDecrypt is the total form of Decrypt. Empty or whitespace values are returned
// as-is with ok=true; any failure yields "" and ok=false.
func (c *CodecService) TryDecrypt(value string) (plaintext string, ok bool) {
	if strings.TrimSpace(value) == "" {
		return value, true
	}
	defer func() {
		if r := recover(); r != nil {
			plaintext, ok = "", false
		}
	}()

	plain, err := c.Decrypt(value)
	if err != nil {
		return "", false
	}
	return plain, true
}
