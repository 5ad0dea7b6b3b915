package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/allisson/glvault/internal/ftpsession"
	profileDomain "github.com/allisson/glvault/internal/profile/domain"
	profileUsecase "github.com/allisson/glvault/internal/profile/usecase"
	trustUsecase "github.com/allisson/glvault/internal/trust/usecase"
)

// keepAliveInterval is how often held sessions send NOOP.
const keepAliveInterval = 30 * time.Second

// Dispatcher runs the interactive loop the trust prompts are dispatched to.
type Dispatcher interface {
	Run(ctx context.Context) error
}

// Server is the optional status server started while sessions are held.
type Server interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// DialFunc opens one FTP session.
type DialFunc func(
	ctx context.Context,
	profile profileDomain.ConnectionProfile,
	gate trustUsecase.TrustGate,
	opts ftpsession.Options,
) (*ftpsession.Session, error)

// ConnectOptions configures RunConnect.
type ConnectOptions struct {
	Profile string
	// Parallel is how many control connections are opened at once. They share one
	// trust prompt per certificate.
	Parallel int
	// Hold keeps the sessions open until ctx ends.
	Hold    bool
	Timeout time.Duration
	Dial    DialFunc
	// WatchStore, when set, runs while sessions are held so approvals made by other
	// processes take effect without reconnecting.
	WatchStore func(ctx context.Context) error
}

// RunConnect activates a profile, which starts a new trust session, and opens
// opts.Parallel sessions to it concurrently. Certificate prompts run on loop. With
// opts.Hold the sessions stay open, kept alive with NOOP, and server (if not nil)
// serves health and metrics until ctx ends.
func RunConnect(
	ctx context.Context,
	profiles profileUsecase.ProfileUseCase,
	gate trustUsecase.TrustGate,
	loop Dispatcher,
	server Server,
	logger *slog.Logger,
	opts ConnectOptions,
	w io.Writer,
) error {
	if opts.Parallel < 1 {
		opts.Parallel = 1
	}
	if opts.Dial == nil {
		opts.Dial = ftpsession.Dial
	}

	profile, err := profiles.Activate(ctx, opts.Profile)
	if err != nil {
		return fmt.Errorf("failed to activate profile: %w", err)
	}

	loopCtx, stopLoop := context.WithCancel(ctx)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := loop.Run(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("ui loop stopped", slog.Any("error", err))
		}
	}()
	defer func() {
		stopLoop()
		<-loopDone
	}()

	sessions, err := dialAll(ctx, *profile, gate, logger, opts, w)
	defer closeSessions(sessions, logger)
	if err != nil {
		return err
	}

	if !opts.Hold {
		return nil
	}
	return hold(ctx, sessions, server, opts.WatchStore, logger, w)
}

func dialAll(
	ctx context.Context,
	profile profileDomain.ConnectionProfile,
	gate trustUsecase.TrustGate,
	logger *slog.Logger,
	opts ConnectOptions,
	w io.Writer,
) ([]*ftpsession.Session, error) {
	var (
		mu       sync.Mutex
		sessions = make([]*ftpsession.Session, opts.Parallel)
		g        errgroup.Group
	)

	for i := range opts.Parallel {
		g.Go(func() error {
			session, err := opts.Dial(ctx, profile, gate, ftpsession.Options{
				Timeout: opts.Timeout,
				Logger:  logger.With(slog.Int("connection", i+1)),
			})
			if err != nil {
				mu.Lock()
				_, _ = errorColor.Fprintf(w, "[%d] failed: %v\n", i+1, err)
				mu.Unlock()
				return fmt.Errorf("connection %d: %w", i+1, err)
			}
			sessions[i] = session

			dir, err := session.CurrentDir()
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				_, _ = fmt.Fprintf(w, "[%d] connected to %s, PWD failed: %v\n", i+1, profile.Address(), err)
				return nil
			}
			_, _ = successColor.Fprintf(w, "[%d] connected to %s, current directory %s\n", i+1, profile.Address(), dir)
			return nil
		})
	}

	err := g.Wait()
	opened := sessions[:0]
	for _, s := range sessions {
		if s != nil {
			opened = append(opened, s)
		}
	}
	return opened, err
}

func hold(
	ctx context.Context,
	sessions []*ftpsession.Session,
	server Server,
	watch func(ctx context.Context) error,
	logger *slog.Logger,
	w io.Writer,
) error {
	if watch != nil {
		watchCtx, stopWatch := context.WithCancel(ctx)
		watchDone := make(chan struct{})
		go func() {
			defer close(watchDone)
			if err := watch(watchCtx); err != nil {
				logger.Warn("trust store watch stopped", slog.Any("error", err))
			}
		}()
		defer func() {
			stopWatch()
			<-watchDone
		}()
	}

	serverErr := make(chan error, 1)
	if server != nil {
		go func() {
			serverErr <- server.Start(ctx)
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shutdown status server", slog.Any("error", err))
			}
		}()
	}

	_, _ = fmt.Fprintf(w, "Holding %d session(s), press Ctrl+C to disconnect.\n", len(sessions))

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutdown signal received")
			return nil
		case err := <-serverErr:
			if err != nil {
				return err
			}
		case <-ticker.C:
			for _, s := range sessions {
				if err := s.NoOp(); err != nil {
					logger.Warn("keep-alive failed", slog.Any("error", err))
				}
			}
		}
	}
}

func closeSessions(sessions []*ftpsession.Session, logger *slog.Logger) {
	for _, s := range sessions {
		if err := s.Disconnect(); err != nil {
			logger.Debug("disconnect returned an error", slog.Any("error", err))
		}
	}
}
