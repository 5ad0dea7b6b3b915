package service

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"

	cryptoDomain "github.com/allisson/glvault/internal/crypto/domain"
)

// AESCBCCipher implements deterministic AES-256-CBC with PKCS#7 padding.
//
// The IV is fixed for the lifetime of the cipher, so equal plaintexts always produce
// equal ciphertexts. The stores depend on this: an encrypted scope name is used
// directly as a map key for lookups. The trade-off is that ciphertexts leak equality
// of plaintexts and offer no integrity protection; an AEAD with random nonces would not
// allow ciphertext-as-key lookups.
//
// Thread safety:
//
//	The cipher holds only the block and IV; each call builds its own CBC mode, so
//	an instance is safe for concurrent use.
type AESCBCCipher struct {
	block cipher.Block
	iv    []byte
}

// NewAESCBC creates a cipher from a 32-byte key and a 16-byte IV.
func NewAESCBC(key, iv []byte) (*AESCBCCipher, error) {
	if len(key) != cryptoDomain.KeySize {
		return nil, errors.New("key must be exactly 32 bytes")
	}
	if len(iv) != cryptoDomain.IVSize {
		return nil, errors.New("iv must be exactly 16 bytes")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	ivCopy := make([]byte, len(iv))
	copy(ivCopy, iv)
	return &AESCBCCipher{block: block, iv: ivCopy}, nil
}

// Encrypt pads plaintext to the block size and encrypts it. The result is always a
// non-empty multiple of 16 bytes; an empty plaintext becomes one full padding block.
func (c *AESCBCCipher) Encrypt(plaintext []byte) []byte {
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(out, padded)
	return out
}

// Decrypt reverses Encrypt. Returns ErrInvalidFormat when ciphertext is not a whole
// number of blocks and ErrInvalidPadding when the final block is not PKCS#7.
func (c *AESCBCCipher) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, cryptoDomain.ErrInvalidFormat
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(out, ciphertext)
	return pkcs7Unpad(out, aes.BlockSize)
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	out := make([]byte, len(b), len(b)+n)
	copy(out, b)
	for i := 0; i < n; i++ {
		out = append(out, byte(n))
	}
	return out
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 {
		return nil, cryptoDomain.ErrInvalidPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, cryptoDomain.ErrInvalidPadding
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, cryptoDomain.ErrInvalidPadding
		}
	}
	return b[:len(b)-n], nil
}
