package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/glvault/internal/metrics"
)

// Check reports the health of one component. A nil error means healthy.
type Check func() error

// StatusServer exposes /health, /ready and, when a provider is set, /metrics.
type StatusServer struct {
	server *http.Server
	logger *slog.Logger
	checks map[string]Check
}

// NewStatusServer creates the server. metricsProvider may be nil.
func NewStatusServer(
	host string,
	port int,
	logger *slog.Logger,
	metricsProvider *metrics.Provider,
	checks map[string]Check,
) *StatusServer {
	s := &StatusServer{logger: logger, checks: checks}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(logger))

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)
	if metricsProvider != nil {
		router.GET("/metrics", gin.WrapH(metricsProvider.Handler()))
	}

	s.server = &http.Server{
		Addr:         net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the router, for tests.
func (s *StatusServer) Handler() http.Handler {
	return s.server.Handler
}

// Addr returns the listen address.
func (s *StatusServer) Addr() string {
	return s.server.Addr
}

// Start listens until Shutdown is called.
func (s *StatusServer) Start(ctx context.Context) error {
	s.logger.Info("starting status server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start status server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *StatusServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down status server")
	return s.server.Shutdown(ctx)
}

func (s *StatusServer) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *StatusServer) readinessHandler(c *gin.Context) {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	components := make(gin.H, len(names))
	for _, name := range names {
		if err := s.checks[name](); err != nil {
			status = http.StatusServiceUnavailable
			components[name] = err.Error()
			continue
		}
		components[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	c.JSON(status, gin.H{"status": state, "components": components})
}
