package usecase

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	trustDomain "github.com/allisson/glvault/internal/trust/domain"
	trustTesting "github.com/allisson/glvault/internal/trust/testing"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// memoryStore is an in-memory TrustStore honoring scope then global lookups.
type memoryStore struct {
	mu           sync.Mutex
	approved     map[string]map[string]string
	lookups      atomic.Int32
	approveCalls atomic.Int32
	approveErr   error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{approved: map[string]map[string]string{}}
}

func (s *memoryStore) IsApproved(thumbprint, scope string) bool {
	s.lookups.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.approved[scope][thumbprint]; ok {
		return true
	}
	_, ok := s.approved[trustDomain.GlobalScope][thumbprint]
	return ok
}

func (s *memoryStore) Approve(thumbprint, subject string, remember bool, scope string) error {
	s.approveCalls.Add(1)
	if !remember {
		return nil
	}
	if s.approveErr != nil {
		return s.approveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.approved[scope] == nil {
		s.approved[scope] = map[string]string{}
	}
	s.approved[scope][thumbprint] = subject
	return nil
}

// countingPrompter answers with a fixed decision, optionally blocking until release
// is closed.
type countingPrompter struct {
	calls    atomic.Int32
	decision trustDomain.Decision
	err      error
	release  chan struct{}
}

func (p *countingPrompter) Prompt(ctx context.Context, cert trustDomain.Certificate) (trustDomain.Decision, error) {
	p.calls.Add(1)
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return trustDomain.Decision{}, ctx.Err()
		}
	}
	return p.decision, p.err
}

type countingConn struct {
	disconnects atomic.Int32
}

func (c *countingConn) Disconnect() error {
	c.disconnects.Add(1)
	return nil
}

// goDispatcher runs jobs on a fresh goroutine and waits for them.
type goDispatcher struct {
	invocations atomic.Int32
	err         error
}

func (d *goDispatcher) Invoke(ctx context.Context, fn func()) error {
	d.invocations.Add(1)
	if d.err != nil {
		return d.err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		<-done
		return ctx.Err()
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGate(store TrustStore, prompter Prompter, dispatcher Dispatcher, cfg Config) *Gate {
	return NewGate(store, prompter, dispatcher, cfg, discardLogger())
}

func TestGate_Verify(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_PromptApprovalWithoutRemember", func(t *testing.T) {
		der := trustTesting.SelfSignedDER("ftp.example.com")
		store := newMemoryStore()
		prompter := &countingPrompter{decision: trustDomain.Decision{Approved: true}}
		gate := newTestGate(store, prompter, nil, Config{})

		verdict := gate.Verify(ctx, VerifyRequest{RawCertificate: der, Scope: "site"})

		assert.Equal(t, trustDomain.Verdict{Accepted: true, Source: trustDomain.SourcePrompt}, verdict)
		assert.Equal(t, int32(1), prompter.calls.Load())
		assert.Equal(t, int32(0), store.approveCalls.Load())
		assert.False(t, store.IsApproved(trustDomain.Thumbprint(der), "site"))
	})

	t.Run("Success_SessionCacheSkipsPromptAndStore", func(t *testing.T) {
		der := trustTesting.SelfSignedDER("ftp.example.com")
		store := newMemoryStore()
		prompter := &countingPrompter{decision: trustDomain.Decision{Approved: true}}
		gate := newTestGate(store, prompter, nil, Config{})

		gate.Verify(ctx, VerifyRequest{RawCertificate: der, Scope: "site"})
		lookups := store.lookups.Load()
		verdict := gate.Verify(ctx, VerifyRequest{RawCertificate: der, Scope: "site"})

		assert.Equal(t, trustDomain.Verdict{Accepted: true, Source: trustDomain.SourceSession}, verdict)
		assert.Equal(t, int32(1), prompter.calls.Load())
		assert.Equal(t, lookups, store.lookups.Load())
	})

	t.Run("Success_RememberedApprovalSurvivesSessionReset", func(t *testing.T) {
		der := trustTesting.SelfSignedDER("ftp.example.com")
		store := newMemoryStore()
		prompter := &countingPrompter{decision: trustDomain.Decision{Approved: true, Remember: true}}
		gate := newTestGate(store, prompter, nil, Config{})

		gate.Verify(ctx, VerifyRequest{RawCertificate: der, Scope: "site"})
		assert.True(t, store.IsApproved(trustDomain.Thumbprint(der), "site"))

		gate.ResetSession()
		verdict := gate.Verify(ctx, VerifyRequest{RawCertificate: der, Scope: "site"})

		assert.Equal(t, trustDomain.Verdict{Accepted: true, Source: trustDomain.SourceStore}, verdict)
		assert.Equal(t, int32(1), prompter.calls.Load())
	})

	t.Run("Success_StoreApprovalIsPromotedIntoSession", func(t *testing.T) {
		der := trustTesting.SelfSignedDER("ftp.example.com")
		store := newMemoryStore()
		require.NoError(t, store.Approve(trustDomain.Thumbprint(der), "CN=ftp.example.com", true, "site"))
		prompter := &countingPrompter{}
		gate := newTestGate(store, prompter, nil, Config{})

		first := gate.Verify(ctx, VerifyRequest{RawCertificate: der, Scope: "site"})
		second := gate.Verify(ctx, VerifyRequest{RawCertificate: der, Scope: "site"})

		assert.Equal(t, trustDomain.SourceStore, first.Source)
		assert.True(t, first.Accepted)
		assert.Equal(t, trustDomain.SourceSession, second.Source)
		assert.True(t, second.Accepted)
		assert.Equal(t, int32(0), prompter.calls.Load())
	})

	t.Run("Success_ApprovalIsBoundToScope", func(t *testing.T) {
		der := trustTesting.SelfSignedDER("ftp.example.com")
		store := newMemoryStore()
		require.NoError(t, store.Approve(trustDomain.Thumbprint(der), "CN=ftp.example.com", true, "site-a"))
		prompter := &countingPrompter{decision: trustDomain.Decision{Approved: false}}
		gate := newTestGate(store, prompter, nil, Config{})

		verdict := gate.Verify(ctx, VerifyRequest{RawCertificate: der, Scope: "site-b"})

		assert.False(t, verdict.Accepted)
		assert.Equal(t, int32(1), prompter.calls.Load())
	})

	t.Run("Success_GlobalApprovalAppliesToEveryScope", func(t *testing.T) {
		der := trustTesting.SelfSignedDER("ftp.example.com")
		store := newMemoryStore()
		require.NoError(t, store.Approve(trustDomain.Thumbprint(der), "CN=ftp.example.com", true, trustDomain.GlobalScope))
		gate := newTestGate(store, &countingPrompter{}, nil, Config{})

		verdict := gate.Verify(ctx, VerifyRequest{RawCertificate: der, Scope: "any-site"})

		assert.Equal(t, trustDomain.Verdict{Accepted: true, Source: trustDomain.SourceStore}, verdict)
	})

	t.Run("Reject_UserRejectionDisconnectsOnce", func(t *testing.T) {
		der := trustTesting.SelfSignedDER("evil.example.com")
		prompter := &countingPrompter{decision: trustDomain.Decision{Approved: false}}
		gate := newTestGate(newMemoryStore(), prompter, nil, Config{})
		conn := &countingConn{}
		later := &countingConn{}

		first := gate.Verify(ctx, VerifyRequest{RawCertificate: der, Scope: "site", Connection: conn})
		second := gate.Verify(ctx, VerifyRequest{RawCertificate: der, Scope: "site", Connection: later})

		assert.Equal(t, trustDomain.Verdict{Accepted: false, Source: trustDomain.SourcePrompt}, first)
		assert.Equal(t, trustDomain.Verdict{Accepted: false, Source: trustDomain.SourceSession}, second)
		assert.Equal(t, int32(1), conn.disconnects.Load())
		assert.Equal(t, int32(0), later.disconnects.Load())
		assert.Equal(t, int32(1), prompter.calls.Load())
	})

	t.Run("Reject_PromptErrorFailsClosedAndIsCached", func(t *testing.T) {
		der := trustTesting.SelfSignedDER("ftp.example.com")
		prompter := &countingPrompter{err: errors.New("dialog crashed")}
		gate := newTestGate(newMemoryStore(), prompter, nil, Config{})
		conn := &countingConn{}

		first := gate.Verify(ctx, VerifyRequest{RawCertificate: der, Scope: "site", Connection: conn})
		second := gate.Verify(ctx, VerifyRequest{RawCertificate: der, Scope: "site"})

		assert.Equal(t, trustDomain.Verdict{Accepted: false, Source: trustDomain.SourceError}, first)
		assert.Equal(t, trustDomain.Verdict{Accepted: false, Source: trustDomain.SourceSession}, second)
		assert.Equal(t, int32(1), prompter.calls.Load())
		assert.Equal(t, int32(1), conn.disconnects.Load())
	})

	t.Run("Reject_PromptPanicFailsClosed", func(t *testing.T) {
		der := trustTesting.SelfSignedDER("ftp.example.com")
		prompter := PromptFunc(func(ctx context.Context, cert trustDomain.Certificate) (trustDomain.Decision, error) {
			panic("boom")
		})
		gate := newTestGate(newMemoryStore(), prompter, nil, Config{})

		verdict := gate.Verify(ctx, VerifyRequest{RawCertificate: der, Scope: "site"})

		assert.Equal(t, trustDomain.Verdict{Accepted: false, Source: trustDomain.SourceError}, verdict)
		assert.Equal(t, 0, gate.pendingWaiters(trustDomain.Thumbprint(der)))
	})

	t.Run("Reject_PromptTimeout", func(t *testing.T) {
		der := trustTesting.SelfSignedDER("ftp.example.com")
		prompter := &countingPrompter{
			decision: trustDomain.Decision{Approved: true},
			release:  make(chan struct{}),
		}
		gate := newTestGate(newMemoryStore(), prompter, nil, Config{PromptTimeout: 20 * time.Millisecond})

		verdict := gate.Verify(ctx, VerifyRequest{RawCertificate: der, Scope: "site"})

		assert.Equal(t, trustDomain.Verdict{Accepted: false, Source: trustDomain.SourceError}, verdict)
	})

	t.Run("Reject_EmptyCertificate", func(t *testing.T) {
		prompter := &countingPrompter{decision: trustDomain.Decision{Approved: true}}
		gate := newTestGate(newMemoryStore(), prompter, nil, Config{})

		verdict := gate.Verify(ctx, VerifyRequest{Scope: "site"})

		assert.Equal(t, trustDomain.Verdict{Accepted: false, Source: trustDomain.SourceError}, verdict)
		assert.Equal(t, int32(0), prompter.calls.Load())
	})

	t.Run("Success_UnparsableCertificateStillPrompts", func(t *testing.T) {
		var seen trustDomain.Certificate
		prompter := PromptFunc(func(ctx context.Context, cert trustDomain.Certificate) (trustDomain.Decision, error) {
			seen = cert
			return trustDomain.Decision{Approved: true}, nil
		})
		gate := newTestGate(newMemoryStore(), prompter, nil, Config{})

		verdict := gate.Verify(ctx, VerifyRequest{RawCertificate: []byte("not a certificate"), Scope: "site"})

		assert.True(t, verdict.Accepted)
		assert.Nil(t, seen.Parsed)
		assert.Equal(t, trustDomain.Thumbprint([]byte("not a certificate")), seen.Thumbprint)
	})

	t.Run("Success_StoreWriteFailureKeepsSessionApproval", func(t *testing.T) {
		der := trustTesting.SelfSignedDER("ftp.example.com")
		store := newMemoryStore()
		store.approveErr = errors.New("disk full")
		prompter := &countingPrompter{decision: trustDomain.Decision{Approved: true, Remember: true}}
		gate := newTestGate(store, prompter, nil, Config{})

		first := gate.Verify(ctx, VerifyRequest{RawCertificate: der, Scope: "site"})
		second := gate.Verify(ctx, VerifyRequest{RawCertificate: der, Scope: "site"})

		assert.True(t, first.Accepted)
		assert.Equal(t, trustDomain.Verdict{Accepted: true, Source: trustDomain.SourceSession}, second)
		assert.Equal(t, int32(1), store.approveCalls.Load())
	})
}

func TestGate_ConcurrentCallersShareOnePrompt(t *testing.T) {
	const callers = 8

	for _, tc := range []struct {
		name     string
		decision trustDomain.Decision
	}{
		{name: "Approved", decision: trustDomain.Decision{Approved: true}},
		{name: "Rejected", decision: trustDomain.Decision{Approved: false}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			der := trustTesting.SelfSignedDER("ftp.example.com")
			thumb := trustDomain.Thumbprint(der)
			prompter := &countingPrompter{decision: tc.decision, release: make(chan struct{})}
			gate := newTestGate(newMemoryStore(), prompter, &goDispatcher{}, Config{})

			verdicts := make([]trustDomain.Verdict, callers)
			conns := make([]*countingConn, callers)
			var g errgroup.Group
			for i := range callers {
				conns[i] = &countingConn{}
				g.Go(func() error {
					verdicts[i] = gate.Verify(context.Background(), VerifyRequest{
						RawCertificate: der,
						Scope:          "site",
						Connection:     conns[i],
					})
					return nil
				})
			}

			require.Eventually(t, func() bool {
				return gate.pendingWaiters(thumb) == callers-1
			}, 2*time.Second, time.Millisecond)
			close(prompter.release)
			require.NoError(t, g.Wait())

			assert.Equal(t, int32(1), prompter.calls.Load())
			var disconnects int32
			for i := range callers {
				assert.Equal(t, tc.decision.Approved, verdicts[i].Accepted)
				disconnects += conns[i].disconnects.Load()
			}
			if tc.decision.Approved {
				assert.Equal(t, int32(0), disconnects)
			} else {
				assert.Equal(t, int32(1), disconnects)
			}
			assert.Equal(t, 0, gate.pendingWaiters(thumb))
		})
	}
}

func TestGate_DistinctThumbprintsPromptIndependently(t *testing.T) {
	derA := trustTesting.SelfSignedDER("a.example.com")
	derB := trustTesting.SelfSignedDER("b.example.com")
	prompter := &countingPrompter{decision: trustDomain.Decision{Approved: true}}
	gate := newTestGate(newMemoryStore(), prompter, &goDispatcher{}, Config{})

	var g errgroup.Group
	for _, der := range [][]byte{derA, derB, derA, derB} {
		g.Go(func() error {
			if !gate.Verify(context.Background(), VerifyRequest{RawCertificate: der, Scope: "site"}).Accepted {
				return errors.New("rejected")
			}
			return nil
		})
	}

	require.NoError(t, g.Wait())
	assert.Equal(t, int32(2), prompter.calls.Load())
}

func TestGate_WaiterContextCancelled(t *testing.T) {
	der := trustTesting.SelfSignedDER("ftp.example.com")
	thumb := trustDomain.Thumbprint(der)
	prompter := &countingPrompter{decision: trustDomain.Decision{Approved: true}, release: make(chan struct{})}
	gate := newTestGate(newMemoryStore(), prompter, nil, Config{})

	first := make(chan trustDomain.Verdict, 1)
	go func() {
		first <- gate.Verify(context.Background(), VerifyRequest{RawCertificate: der, Scope: "site"})
	}()
	require.Eventually(t, func() bool { return prompter.calls.Load() == 1 }, 2*time.Second, time.Millisecond)

	waiterCtx, cancel := context.WithCancel(context.Background())
	waiter := make(chan trustDomain.Verdict, 1)
	go func() {
		waiter <- gate.Verify(waiterCtx, VerifyRequest{RawCertificate: der, Scope: "site"})
	}()
	require.Eventually(t, func() bool { return gate.pendingWaiters(thumb) == 1 }, 2*time.Second, time.Millisecond)

	cancel()
	assert.Equal(t, trustDomain.Verdict{Accepted: false, Source: trustDomain.SourceError}, <-waiter)
	assert.Equal(t, 0, gate.pendingWaiters(thumb))

	close(prompter.release)
	assert.Equal(t, trustDomain.Verdict{Accepted: true, Source: trustDomain.SourcePrompt}, <-first)
}

func TestGate_ResetSession(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_ForgetsApprovalsAndRejections", func(t *testing.T) {
		approved := trustTesting.SelfSignedDER("good.example.com")
		rejected := trustTesting.SelfSignedDER("bad.example.com")
		decisions := map[string]trustDomain.Decision{
			trustDomain.Thumbprint(approved): {Approved: true},
			trustDomain.Thumbprint(rejected): {Approved: false},
		}
		var calls atomic.Int32
		prompter := PromptFunc(func(ctx context.Context, cert trustDomain.Certificate) (trustDomain.Decision, error) {
			calls.Add(1)
			return decisions[cert.Thumbprint], nil
		})
		gate := newTestGate(newMemoryStore(), prompter, nil, Config{})

		gate.Verify(ctx, VerifyRequest{RawCertificate: approved, Scope: "site"})
		gate.Verify(ctx, VerifyRequest{RawCertificate: rejected, Scope: "site"})
		gate.ResetSession()
		a := gate.Verify(ctx, VerifyRequest{RawCertificate: approved, Scope: "site"})
		r := gate.Verify(ctx, VerifyRequest{RawCertificate: rejected, Scope: "site"})

		assert.Equal(t, trustDomain.SourcePrompt, a.Source)
		assert.True(t, a.Accepted)
		assert.Equal(t, trustDomain.SourcePrompt, r.Source)
		assert.False(t, r.Accepted)
		assert.Equal(t, int32(4), calls.Load())
	})

	t.Run("Success_InFlightPromptStillWakesWaiters", func(t *testing.T) {
		der := trustTesting.SelfSignedDER("ftp.example.com")
		thumb := trustDomain.Thumbprint(der)
		prompter := &countingPrompter{decision: trustDomain.Decision{Approved: true}, release: make(chan struct{})}
		gate := newTestGate(newMemoryStore(), prompter, nil, Config{})

		var g errgroup.Group
		verdicts := make([]trustDomain.Verdict, 2)
		for i := range verdicts {
			g.Go(func() error {
				verdicts[i] = gate.Verify(ctx, VerifyRequest{RawCertificate: der, Scope: "site"})
				return nil
			})
		}
		require.Eventually(t, func() bool { return gate.pendingWaiters(thumb) == 1 }, 2*time.Second, time.Millisecond)

		gate.ResetSession()
		// The woken waiter re-evaluates against the new session and prompts again.
		close(prompter.release)
		require.NoError(t, g.Wait())

		assert.True(t, verdicts[0].Accepted)
		assert.True(t, verdicts[1].Accepted)
		assert.Equal(t, int32(2), prompter.calls.Load())
	})
}

func TestGate_Dispatcher(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_PromptRunsThroughDispatcher", func(t *testing.T) {
		dispatcher := &goDispatcher{}
		prompter := &countingPrompter{decision: trustDomain.Decision{Approved: true}}
		gate := newTestGate(newMemoryStore(), prompter, dispatcher, Config{})

		verdict := gate.Verify(ctx, VerifyRequest{RawCertificate: trustTesting.SelfSignedDER("a"), Scope: "site"})

		assert.True(t, verdict.Accepted)
		assert.Equal(t, int32(1), dispatcher.invocations.Load())
	})

	t.Run("Reject_DispatcherFailure", func(t *testing.T) {
		dispatcher := &goDispatcher{err: errors.New("ui closed")}
		prompter := &countingPrompter{decision: trustDomain.Decision{Approved: true}}
		gate := newTestGate(newMemoryStore(), prompter, dispatcher, Config{})
		conn := &countingConn{}

		verdict := gate.Verify(ctx, VerifyRequest{
			RawCertificate: trustTesting.SelfSignedDER("a"),
			Scope:          "site",
			Connection:     conn,
		})

		assert.Equal(t, trustDomain.Verdict{Accepted: false, Source: trustDomain.SourceError}, verdict)
		assert.Equal(t, int32(0), prompter.calls.Load())
		assert.Equal(t, int32(1), conn.disconnects.Load())
	})
}

func TestVerifyConnection(t *testing.T) {
	ctx := context.Background()
	der := trustTesting.SelfSignedDER("ftp.example.com")
	leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	t.Run("Success_Accepted", func(t *testing.T) {
		gate := newTestGate(newMemoryStore(), &countingPrompter{decision: trustDomain.Decision{Approved: true}}, nil, Config{})

		verify := VerifyConnection(ctx, gate, "site", nil)

		assert.NoError(t, verify(tls.ConnectionState{PeerCertificates: []*x509.Certificate{leaf}}))
	})

	t.Run("Error_Rejected", func(t *testing.T) {
		gate := newTestGate(newMemoryStore(), &countingPrompter{}, nil, Config{})

		verify := VerifyConnection(ctx, gate, "site", nil)

		assert.ErrorIs(t, verify(tls.ConnectionState{PeerCertificates: []*x509.Certificate{leaf}}), trustDomain.ErrCertificateRejected)
	})

	t.Run("Error_NoPeerCertificate", func(t *testing.T) {
		gate := newTestGate(newMemoryStore(), &countingPrompter{}, nil, Config{})

		verify := VerifyConnection(ctx, gate, "site", nil)

		assert.ErrorIs(t, verify(tls.ConnectionState{}), trustDomain.ErrNoPeerCertificate)
	})
}
