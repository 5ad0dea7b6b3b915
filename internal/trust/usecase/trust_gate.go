package usecase

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	trustDomain "github.com/allisson/glvault/internal/trust/domain"
)

// pendingPrompt tracks one in-flight approval prompt. done is closed once the prompt
// has resolved and the session sets reflect its outcome.
type pendingPrompt struct {
	done    chan struct{}
	waiters int
}

// session holds the per-session trust caches. A thumbprint is never in both approved
// and rejected.
type session struct {
	approved  map[string]struct{}
	rejected  map[string]struct{}
	prompting map[string]*pendingPrompt
}

func newSession() *session {
	return &session{
		approved:  map[string]struct{}{},
		rejected:  map[string]struct{}{},
		prompting: map[string]*pendingPrompt{},
	}
}

// Config configures a Gate.
type Config struct {
	// PromptTimeout bounds the wait for a human decision; zero waits indefinitely.
	// A timed out prompt is a rejection.
	PromptTimeout time.Duration
}

// Gate is the TrustGate implementation.
//
// For every thumbprint the gate walks the same steps under its mutex: a cached
// rejection rejects, a cached approval accepts, a persistent approval is promoted into
// the session and accepts. Otherwise the first caller becomes the prompter and every
// later caller for the same thumbprint waits for that prompt, then re-evaluates from
// the top. At most one prompt is shown per thumbprint per session.
//
// The mutex is released while the prompt runs and while callers wait. The store is
// only read under the mutex (memory lookups); approvals are written to the store after
// the mutex has been released, so the lock order is always gate then store.
type Gate struct {
	store      TrustStore
	prompter   Prompter
	dispatcher Dispatcher
	config     Config
	logger     *slog.Logger

	mu      sync.Mutex
	session *session
}

// NewGate creates a gate. dispatcher may be nil, in which case prompts run on the
// verifying goroutine.
func NewGate(
	store TrustStore,
	prompter Prompter,
	dispatcher Dispatcher,
	config Config,
	logger *slog.Logger,
) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		store:      store,
		prompter:   prompter,
		dispatcher: dispatcher,
		config:     config,
		logger:     logger,
		session:    newSession(),
	}
}

// ResetSession starts a new session. Prompts already in flight still resolve and wake
// their waiters, but their outcome is recorded in the discarded session.
func (g *Gate) ResetSession() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session = newSession()
	g.logger.Debug("trust session reset")
}

// Verify decides whether the certificate in req is trusted for req.Scope.
func (g *Gate) Verify(ctx context.Context, req VerifyRequest) (verdict trustDomain.Verdict) {
	logger := g.logger.With(slog.String("decision_id", uuid.NewString()), slog.String("scope", req.Scope))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("trust decision failed", slog.Any("panic", r))
			verdict = reject(trustDomain.SourceError)
		}
	}()

	if len(req.RawCertificate) == 0 {
		logger.Warn("trust decision without certificate")
		return reject(trustDomain.SourceError)
	}

	cert := trustDomain.ParseCertificate(req.RawCertificate)
	if cert.Parsed == nil {
		logger.Warn("certificate did not parse, using raw hash", slog.String("thumbprint", cert.Thumbprint))
	}
	logger = logger.With(slog.String("thumbprint", cert.Thumbprint))

	verdict = g.decide(ctx, cert, req, logger)
	logger.Info(
		"certificate trust decided",
		slog.Bool("accepted", verdict.Accepted),
		slog.String("source", string(verdict.Source)),
	)
	return verdict
}

func (g *Gate) decide(
	ctx context.Context,
	cert trustDomain.Certificate,
	req VerifyRequest,
	logger *slog.Logger,
) trustDomain.Verdict {
	thumb := cert.Thumbprint

	for {
		g.mu.Lock()
		sess := g.session

		if _, ok := sess.rejected[thumb]; ok {
			g.mu.Unlock()
			return reject(trustDomain.SourceSession)
		}
		if _, ok := sess.approved[thumb]; ok {
			g.mu.Unlock()
			return accept(trustDomain.SourceSession)
		}
		if g.storeApproved(thumb, req.Scope, logger) {
			sess.approved[thumb] = struct{}{}
			g.mu.Unlock()
			return accept(trustDomain.SourceStore)
		}

		if p, ok := sess.prompting[thumb]; ok {
			p.waiters++
			g.mu.Unlock()

			logger.Debug("waiting for pending trust prompt")
			select {
			case <-p.done:
			case <-ctx.Done():
				g.mu.Lock()
				p.waiters--
				g.mu.Unlock()
				logger.Warn("gave up waiting for trust prompt", slog.Any("error", ctx.Err()))
				return reject(trustDomain.SourceError)
			}

			g.mu.Lock()
			p.waiters--
			g.mu.Unlock()
			continue
		}

		p := &pendingPrompt{done: make(chan struct{})}
		sess.prompting[thumb] = p
		g.mu.Unlock()

		return g.resolve(ctx, sess, p, cert, req, logger)
	}
}

// resolve runs the prompt for a thumbprint this caller claimed. Whatever happens the
// claim is released and waiters are woken.
func (g *Gate) resolve(
	ctx context.Context,
	sess *session,
	p *pendingPrompt,
	cert trustDomain.Certificate,
	req VerifyRequest,
	logger *slog.Logger,
) trustDomain.Verdict {
	thumb := cert.Thumbprint
	released := false
	release := func(approved bool) {
		if released {
			return
		}
		released = true

		g.mu.Lock()
		defer g.mu.Unlock()
		delete(sess.prompting, thumb)
		if approved {
			sess.approved[thumb] = struct{}{}
		} else {
			sess.rejected[thumb] = struct{}{}
		}
		close(p.done)
	}
	defer release(false)

	decision, err := g.prompt(ctx, cert)
	if err != nil {
		release(false)
		logger.Error("trust prompt failed, rejecting", slog.Any("error", err))
		g.disconnect(req.Connection, logger)
		return reject(trustDomain.SourceError)
	}

	if !decision.Approved {
		release(false)
		g.disconnect(req.Connection, logger)
		return reject(trustDomain.SourcePrompt)
	}

	release(true)
	if decision.Remember {
		g.remember(cert, req.Scope, logger)
	}
	return accept(trustDomain.SourcePrompt)
}

// storeApproved is called with g.mu held and must not unwind through it.
func (g *Gate) storeApproved(thumb, scope string, logger *slog.Logger) (approved bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("trust store lookup panicked", slog.Any("panic", r))
			approved = false
		}
	}()
	return g.store.IsApproved(thumb, scope)
}

// remember persists an approval. Failures only cost the persistence; the session
// approval stands.
func (g *Gate) remember(cert trustDomain.Certificate, scope string, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("trust store approve panicked", slog.Any("panic", r))
		}
	}()
	if err := g.store.Approve(cert.Thumbprint, cert.Subject, true, scope); err != nil {
		logger.Error("failed to remember certificate approval", slog.Any("error", err))
	}
}

type promptResult struct {
	decision trustDomain.Decision
	err      error
}

// prompt asks the prompter through the dispatcher and converts panics, dispatcher
// failures and timeouts into errors.
func (g *Gate) prompt(ctx context.Context, cert trustDomain.Certificate) (trustDomain.Decision, error) {
	if g.config.PromptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.PromptTimeout)
		defer cancel()
	}

	results := make(chan promptResult, 1)
	job := func() {
		var res promptResult
		defer func() {
			if r := recover(); r != nil {
				res = promptResult{err: fmt.Errorf("trust prompt panicked: %v", r)}
			}
			results <- res
		}()
		res.decision, res.err = g.prompter.Prompt(ctx, cert)
	}

	if g.dispatcher == nil {
		job()
	} else if err := g.dispatcher.Invoke(ctx, job); err != nil {
		return trustDomain.Decision{}, g.promptError(ctx, err)
	}

	select {
	case res := <-results:
		return res.decision, res.err
	case <-ctx.Done():
		return trustDomain.Decision{}, g.promptError(ctx, ctx.Err())
	}
}

func (g *Gate) promptError(ctx context.Context, err error) error {
	if g.config.PromptTimeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", trustDomain.ErrPromptTimeout, g.config.PromptTimeout)
	}
	return fmt.Errorf("failed to dispatch trust prompt: %w", err)
}

func (g *Gate) disconnect(conn Connection, logger *slog.Logger) {
	if conn == nil {
		return
	}
	if err := conn.Disconnect(); err != nil {
		logger.Warn("failed to disconnect rejected connection", slog.Any("error", err))
	}
}

// pendingWaiters returns how many callers are blocked on the prompt for thumbprint.
func (g *Gate) pendingWaiters(thumbprint string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.session.prompting[thumbprint]; ok {
		return p.waiters
	}
	return 0
}

// VerifyConnection adapts gate to tls.Config.VerifyConnection. The leaf certificate
// is verified for scope; a rejection aborts the handshake with ErrCertificateRejected.
func VerifyConnection(
	ctx context.Context,
	gate TrustGate,
	scope string,
	conn Connection,
) func(tls.ConnectionState) error {
	return func(cs tls.ConnectionState) error {
		if len(cs.PeerCertificates) == 0 {
			return trustDomain.ErrNoPeerCertificate
		}
		verdict := gate.Verify(ctx, VerifyRequest{
			RawCertificate: cs.PeerCertificates[0].Raw,
			Scope:          scope,
			Connection:     conn,
		})
		if !verdict.Accepted {
			return trustDomain.ErrCertificateRejected
		}
		return nil
	}
}

func accept(source trustDomain.Source) trustDomain.Verdict {
	return trustDomain.Verdict{Accepted: true, Source: source}
}

func reject(source trustDomain.Source) trustDomain.Verdict {
	return trustDomain.Verdict{Accepted: false, Source: source}
}
