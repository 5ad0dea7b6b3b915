package domain

import (
	"github.com/allisson/glvault/internal/errors"
)

// Trust decision error definitions.
var (
	// ErrCertificateRejected is returned to the TLS stack when the gate refuses a peer.
	ErrCertificateRejected = errors.Wrap(errors.ErrRejected, "certificate rejected")

	// ErrNoPeerCertificate indicates the handshake presented no certificate.
	ErrNoPeerCertificate = errors.Wrap(errors.ErrInvalidInput, "no peer certificate")

	// ErrPromptTimeout indicates the human decision did not arrive within the configured timeout.
	ErrPromptTimeout = errors.New("trust prompt timed out")
)
