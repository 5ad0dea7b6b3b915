// Package app provides the dependency injection container that assembles the vault,
// trust gate and profile components.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/allisson/glvault/internal/config"
	cryptoService "github.com/allisson/glvault/internal/crypto/service"
	"github.com/allisson/glvault/internal/http"
	"github.com/allisson/glvault/internal/metrics"
	profileRepository "github.com/allisson/glvault/internal/profile/repository"
	profileUsecase "github.com/allisson/glvault/internal/profile/usecase"
	trustRepository "github.com/allisson/glvault/internal/trust/repository"
	trustUsecase "github.com/allisson/glvault/internal/trust/usecase"
	"github.com/allisson/glvault/internal/ui"
)

// Container holds all application dependencies and provides methods to access them.
// Components are created on first access.
type Container struct {
	// Configuration
	config    *config.Config
	logOutput io.Writer

	// Infrastructure
	logger          *slog.Logger
	metricsProvider *metrics.Provider
	trustMetrics    metrics.TrustMetrics
	uiLoop          *ui.Loop
	statusServer    *http.StatusServer

	// Crypto
	keyWrapper cryptoService.KeyWrapper
	keyManager *cryptoService.KeyManagerService
	codec      *cryptoService.CodecService

	// Trust
	prompter   trustUsecase.Prompter
	trustStore *trustRepository.FileTrustStore
	trustGate  trustUsecase.TrustGate

	// Profiles
	profileStore   *profileRepository.FileProfileStore
	profileUseCase profileUsecase.ProfileUseCase

	// Initialization flags and mutex for thread-safety
	mu                 sync.Mutex
	loggerInit         sync.Once
	metricsInit        sync.Once
	uiLoopInit         sync.Once
	statusServerInit   sync.Once
	keyWrapperInit     sync.Once
	keyManagerInit     sync.Once
	codecInit          sync.Once
	trustStoreInit     sync.Once
	trustGateInit      sync.Once
	profileStoreInit   sync.Once
	profileUseCaseInit sync.Once
	initErrors         map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
// Logs go to stderr so command output on stdout stays clean.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		logOutput:  os.Stderr,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// SetLogOutput redirects logs. It has no effect once the logger has been created.
func (c *Container) SetLogOutput(w io.Writer) {
	c.logOutput = w
}

// Logger returns the configured logger instance.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// MetricsProvider returns the metrics provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	if err := c.initMetricsOnce(); err != nil {
		return nil, err
	}
	return c.metricsProvider, nil
}

// TrustMetrics returns the trust decision metrics; a no-op implementation when metrics
// are disabled.
func (c *Container) TrustMetrics() (metrics.TrustMetrics, error) {
	if err := c.initMetricsOnce(); err != nil {
		return nil, err
	}
	return c.trustMetrics, nil
}

func (c *Container) initMetricsOnce() error {
	var err error
	c.metricsInit.Do(func() {
		err = c.initMetrics()
		if err != nil {
			c.setInitError("metrics", err)
		}
	})
	if err != nil {
		return err
	}
	return c.initError("metrics")
}

// UILoop returns the dispatcher that owns the interactive context.
func (c *Container) UILoop() *ui.Loop {
	c.uiLoopInit.Do(func() {
		c.uiLoop = ui.NewLoop(c.Logger())
	})
	return c.uiLoop
}

// StatusServer returns the health/readiness/metrics server.
func (c *Container) StatusServer() (*http.StatusServer, error) {
	var err error
	c.statusServerInit.Do(func() {
		c.statusServer, err = c.initStatusServer()
		if err != nil {
			c.setInitError("statusServer", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("statusServer"); storedErr != nil {
		return nil, storedErr
	}
	return c.statusServer, nil
}

// Shutdown performs cleanup of all initialized resources.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.statusServer != nil {
		if err := c.statusServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("status server shutdown: %w", err))
		}
	}

	if c.uiLoop != nil {
		c.uiLoop.Close()
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.keyWrapper != nil {
		if err := c.keyWrapper.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("key wrapper close: %w", err))
		}
	}

	return errors.Join(shutdownErrors...)
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(c.logOutput, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

func (c *Container) initMetrics() error {
	if !c.config.MetricsEnabled {
		c.trustMetrics = metrics.NewNoOpTrustMetrics()
		return nil
	}

	provider, err := metrics.NewProvider()
	if err != nil {
		return fmt.Errorf("failed to create metrics provider: %w", err)
	}
	trustMetrics, err := metrics.NewTrustMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
	if err != nil {
		return fmt.Errorf("failed to create trust metrics: %w", err)
	}

	c.metricsProvider = provider
	c.trustMetrics = trustMetrics
	return nil
}

func (c *Container) initStatusServer() (*http.StatusServer, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, err
	}
	keyManager, err := c.KeyManager()
	if err != nil {
		return nil, err
	}
	trustStore, err := c.TrustStore()
	if err != nil {
		return nil, err
	}

	checks := map[string]http.Check{
		"key": func() error {
			if keyManager.Regenerated() {
				return errors.New("key file was regenerated, stored values are unreadable")
			}
			return nil
		},
		"trust_store": trustStore.LoadError,
	}
	return http.NewStatusServer(c.config.MetricsHost, c.config.MetricsPort, c.Logger(), provider, checks), nil
}

func (c *Container) setInitError(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initErrors[name] = err
}

func (c *Container) initError(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initErrors[name]
}
