package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	cryptoDomain "github.com/allisson/glvault/internal/crypto/domain"
	"github.com/allisson/glvault/internal/fsutil"
)

// KeyManagerService owns the process-wide EncryptionKey and its key file.
//
// The key is created on first run and loaded afterwards. A key file that exists but
// cannot be used (unreadable, wrong length, unwrap failure) is replaced by a fresh key.
// That loses access to everything encrypted under the old key; Regenerated reports it
// so the caller can warn the user. Failures while writing a new key are returned,
// since no stored value could be read back without it.
//
// Once loaded the key never changes for the lifetime of the service.
type KeyManagerService struct {
	path    string
	wrapper KeyWrapper
	logger  *slog.Logger

	mu          sync.Mutex
	key         cryptoDomain.EncryptionKey
	loaded      bool
	regenerated bool
}

// NewKeyManager creates a key manager for the key file at path. wrapper may be nil,
// in which case the file holds the raw 48 bytes.
func NewKeyManager(path string, wrapper KeyWrapper, logger *slog.Logger) *KeyManagerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeyManagerService{
		path:    path,
		wrapper: wrapper,
		logger:  logger,
	}
}

// Path returns the key file location.
func (km *KeyManagerService) Path() string {
	return km.path
}

// Initialize loads or creates the key. It is idempotent and safe for concurrent use;
// only the first successful call touches the file system.
func (km *KeyManagerService) Initialize(ctx context.Context) error {
	km.mu.Lock()
	defer km.mu.Unlock()

	if km.loaded {
		return nil
	}

	key, err := km.load(ctx)
	switch {
	case err == nil:
		km.key = key
		km.loaded = true
		km.logger.Debug("encryption key loaded", slog.String("path", km.path))
		return nil
	case errors.Is(err, fs.ErrNotExist):
		km.logger.Info("creating encryption key", slog.String("path", km.path))
	default:
		km.logger.Warn(
			"encryption key unusable, generating a new one; previously encrypted data is lost",
			slog.String("path", km.path),
			slog.Any("error", err),
		)
		km.regenerated = true
	}

	key, err = km.generate(ctx)
	if err != nil {
		return err
	}
	km.key = key
	km.loaded = true
	return nil
}

// Key returns the loaded key, calling Initialize on first use.
func (km *KeyManagerService) Key() (cryptoDomain.EncryptionKey, error) {
	if err := km.Initialize(context.Background()); err != nil {
		return cryptoDomain.EncryptionKey{}, err
	}
	km.mu.Lock()
	defer km.mu.Unlock()
	return km.key, nil
}

// Regenerated reports whether an existing key file was discarded and replaced.
func (km *KeyManagerService) Regenerated() bool {
	km.mu.Lock()
	defer km.mu.Unlock()
	return km.regenerated
}

func (km *KeyManagerService) load(ctx context.Context) (cryptoDomain.EncryptionKey, error) {
	data, err := os.ReadFile(km.path)
	if err != nil {
		return cryptoDomain.EncryptionKey{}, err
	}
	defer cryptoDomain.Zero(data)

	if km.wrapper != nil {
		plain, err := km.wrapper.Decrypt(ctx, data)
		if err != nil {
			return cryptoDomain.EncryptionKey{}, fmt.Errorf("%w: %v", cryptoDomain.ErrInvalidKeyFile, err)
		}
		defer cryptoDomain.Zero(plain)
		data = plain
	}

	return cryptoDomain.ParseEncryptionKey(data)
}

func (km *KeyManagerService) generate(ctx context.Context) (cryptoDomain.EncryptionKey, error) {
	key, err := cryptoDomain.NewEncryptionKey()
	if err != nil {
		return cryptoDomain.EncryptionKey{}, err
	}

	raw := key.Bytes()
	defer cryptoDomain.Zero(raw)

	out := raw
	if km.wrapper != nil {
		if out, err = km.wrapper.Encrypt(ctx, raw); err != nil {
			return cryptoDomain.EncryptionKey{}, fmt.Errorf("failed to wrap key: %w", err)
		}
	}

	if err := fsutil.WriteFileAtomic(km.path, out, 0o600); err != nil {
		return cryptoDomain.EncryptionKey{}, fmt.Errorf("failed to write key file: %w", err)
	}
	if err := markHidden(km.path); err != nil {
		return cryptoDomain.EncryptionKey{}, fmt.Errorf("failed to hide key file: %w", err)
	}
	return key, nil
}
