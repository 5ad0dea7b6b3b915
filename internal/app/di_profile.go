package app

import (
	"fmt"

	profileRepository "github.com/allisson/glvault/internal/profile/repository"
	profileUsecase "github.com/allisson/glvault/internal/profile/usecase"
)

// ProfileStore returns the encrypted connection profile store.
func (c *Container) ProfileStore() (*profileRepository.FileProfileStore, error) {
	var err error
	c.profileStoreInit.Do(func() {
		c.profileStore, err = c.initProfileStore()
		if err != nil {
			c.setInitError("profileStore", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("profileStore"); storedErr != nil {
		return nil, storedErr
	}
	return c.profileStore, nil
}

// ProfileUseCase returns the profile use case. Activating a profile resets the trust
// gate session.
func (c *Container) ProfileUseCase() (profileUsecase.ProfileUseCase, error) {
	var err error
	c.profileUseCaseInit.Do(func() {
		c.profileUseCase, err = c.initProfileUseCase()
		if err != nil {
			c.setInitError("profileUseCase", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("profileUseCase"); storedErr != nil {
		return nil, storedErr
	}
	return c.profileUseCase, nil
}

func (c *Container) initProfileStore() (*profileRepository.FileProfileStore, error) {
	codec, err := c.Codec()
	if err != nil {
		return nil, fmt.Errorf("failed to get codec for profile store: %w", err)
	}
	return profileRepository.NewFileProfileStore(c.config.ProfilesFile, codec, c.Logger()), nil
}

func (c *Container) initProfileUseCase() (profileUsecase.ProfileUseCase, error) {
	store, err := c.ProfileStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get profile store for profile use case: %w", err)
	}
	gate, err := c.TrustGate()
	if err != nil {
		return nil, fmt.Errorf("failed to get trust gate for profile use case: %w", err)
	}
	return profileUsecase.NewProfileUseCase(store, gate, c.Logger()), nil
}
