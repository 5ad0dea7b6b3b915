package app

import (
	"context"
	"fmt"

	cryptoService "github.com/allisson/glvault/internal/crypto/service"
)

// KeyWrapper returns the keeper sealing the key file, or nil when KEY_WRAP_URI is empty.
func (c *Container) KeyWrapper() (cryptoService.KeyWrapper, error) {
	var err error
	c.keyWrapperInit.Do(func() {
		c.keyWrapper, err = c.initKeyWrapper()
		if err != nil {
			c.setInitError("keyWrapper", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("keyWrapper"); storedErr != nil {
		return nil, storedErr
	}
	return c.keyWrapper, nil
}

// KeyManager returns the key manager for the configured key file.
func (c *Container) KeyManager() (*cryptoService.KeyManagerService, error) {
	var err error
	c.keyManagerInit.Do(func() {
		c.keyManager, err = c.initKeyManager()
		if err != nil {
			c.setInitError("keyManager", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("keyManager"); storedErr != nil {
		return nil, storedErr
	}
	return c.keyManager, nil
}

// Codec returns the string codec used by the stores.
func (c *Container) Codec() (*cryptoService.CodecService, error) {
	var err error
	c.codecInit.Do(func() {
		c.codec, err = c.initCodec()
		if err != nil {
			c.setInitError("codec", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("codec"); storedErr != nil {
		return nil, storedErr
	}
	return c.codec, nil
}

func (c *Container) initKeyWrapper() (cryptoService.KeyWrapper, error) {
	if c.config.KeyWrapURI == "" {
		return nil, nil
	}
	wrapper, err := cryptoService.OpenKeyWrapper(context.Background(), c.config.KeyWrapURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open key wrapper: %w", err)
	}
	return wrapper, nil
}

func (c *Container) initKeyManager() (*cryptoService.KeyManagerService, error) {
	wrapper, err := c.KeyWrapper()
	if err != nil {
		return nil, err
	}
	return cryptoService.NewKeyManager(c.config.KeyFile, wrapper, c.Logger()), nil
}

func (c *Container) initCodec() (*cryptoService.CodecService, error) {
	keyManager, err := c.KeyManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get key manager for codec: %w", err)
	}
	return cryptoService.NewCodec(keyManager, c.Logger()), nil
}
