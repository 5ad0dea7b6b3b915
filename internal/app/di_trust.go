package app

import (
	"context"
	"fmt"

	trustDomain "github.com/allisson/glvault/internal/trust/domain"
	trustRepository "github.com/allisson/glvault/internal/trust/repository"
	trustUsecase "github.com/allisson/glvault/internal/trust/usecase"
)

// rejectAll is the prompter used when no interactive prompter was set.
var rejectAll = trustUsecase.PromptFunc(
	func(ctx context.Context, cert trustDomain.Certificate) (trustDomain.Decision, error) {
		return trustDomain.Decision{}, nil
	},
)

// SetPrompter sets the human approval prompt. It must be called before the trust gate
// is first requested.
func (c *Container) SetPrompter(p trustUsecase.Prompter) {
	c.prompter = p
}

// TrustStore returns the persistent certificate approval store.
func (c *Container) TrustStore() (*trustRepository.FileTrustStore, error) {
	var err error
	c.trustStoreInit.Do(func() {
		c.trustStore, err = c.initTrustStore()
		if err != nil {
			c.setInitError("trustStore", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("trustStore"); storedErr != nil {
		return nil, storedErr
	}
	return c.trustStore, nil
}

// TrustGate returns the session trust gate, instrumented when metrics are enabled.
func (c *Container) TrustGate() (trustUsecase.TrustGate, error) {
	var err error
	c.trustGateInit.Do(func() {
		c.trustGate, err = c.initTrustGate()
		if err != nil {
			c.setInitError("trustGate", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("trustGate"); storedErr != nil {
		return nil, storedErr
	}
	return c.trustGate, nil
}

func (c *Container) initTrustStore() (*trustRepository.FileTrustStore, error) {
	codec, err := c.Codec()
	if err != nil {
		return nil, fmt.Errorf("failed to get codec for trust store: %w", err)
	}
	return trustRepository.NewFileTrustStore(c.config.TrustStoreFile, codec, c.Logger()), nil
}

func (c *Container) initTrustGate() (trustUsecase.TrustGate, error) {
	store, err := c.TrustStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get trust store for trust gate: %w", err)
	}
	trustMetrics, err := c.TrustMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics for trust gate: %w", err)
	}

	prompter := c.prompter
	if prompter == nil {
		prompter = rejectAll
	}

	gate := trustUsecase.NewGate(
		store,
		prompter,
		c.UILoop(),
		trustUsecase.Config{PromptTimeout: c.config.PromptTimeout},
		c.Logger(),
	)
	if !c.config.MetricsEnabled {
		return gate, nil
	}
	return trustUsecase.NewTrustGateWithMetrics(gate, trustMetrics), nil
}
