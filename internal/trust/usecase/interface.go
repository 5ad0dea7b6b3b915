// Package usecase implements the TLS trust gate that decides, once per certificate
// per session, whether an FTPS peer is accepted.
package usecase

import (
	"context"

	trustDomain "github.com/allisson/glvault/internal/trust/domain"
)

// TrustStore is the persistent approval store consulted on a session cache miss.
type TrustStore interface {
	// IsApproved reports whether thumbprint is approved for scope or globally.
	IsApproved(thumbprint, scope string) bool

	// Approve persists thumbprint for scope when remember is true.
	Approve(thumbprint, subject string, remember bool, scope string) error
}

// Prompter asks a human whether to trust a certificate.
type Prompter interface {
	Prompt(ctx context.Context, cert trustDomain.Certificate) (trustDomain.Decision, error)
}

// PromptFunc adapts a function to Prompter.
type PromptFunc func(ctx context.Context, cert trustDomain.Certificate) (trustDomain.Decision, error)

// Prompt calls f.
func (f PromptFunc) Prompt(ctx context.Context, cert trustDomain.Certificate) (trustDomain.Decision, error) {
	return f(ctx, cert)
}

// Dispatcher runs a function on the goroutine that owns the user interface and
// waits for it to finish.
type Dispatcher interface {
	Invoke(ctx context.Context, fn func()) error
}

// Connection is the live connection whose handshake is being verified. The gate
// disconnects it when the user rejects the certificate.
type Connection interface {
	Disconnect() error
}

// VerifyRequest carries one handshake's peer certificate.
type VerifyRequest struct {
	RawCertificate []byte
	// Scope is the connection profile name the approval is bound to.
	Scope string
	// Connection may be nil when there is nothing to tear down.
	Connection Connection
}

// TrustGate decides whether TLS peers are accepted.
type TrustGate interface {
	// Verify returns the verdict for req. It never accepts on internal error.
	Verify(ctx context.Context, req VerifyRequest) trustDomain.Verdict

	// ResetSession forgets every in-session approval and rejection.
	ResetSession()
}
