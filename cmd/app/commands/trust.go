package commands

import (
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"text/tabwriter"

	trustDomain "github.com/allisson/glvault/internal/trust/domain"
)

// TrustStore is the part of the approval store the trust commands use.
type TrustStore interface {
	IsApproved(thumbprint, scope string) bool
	Approve(thumbprint, subject string, remember bool, scope string) error
	Entries() []trustDomain.Entry
}

var thumbprintPattern = regexp.MustCompile(`^[0-9A-F]{40}$`)

// TrustTarget names the certificate a trust command acts on, either by thumbprint or
// by a PEM/DER certificate file.
type TrustTarget struct {
	Thumbprint string
	CertFile   string
}

func (t TrustTarget) resolve() (trustDomain.Certificate, error) {
	switch {
	case t.Thumbprint != "" && t.CertFile != "":
		return trustDomain.Certificate{}, errors.New("use either --thumbprint or --cert-file, not both")
	case t.CertFile != "":
		data, err := os.ReadFile(t.CertFile)
		if err != nil {
			return trustDomain.Certificate{}, fmt.Errorf("failed to read certificate: %w", err)
		}
		if block, _ := pem.Decode(data); block != nil {
			data = block.Bytes
		}
		return trustDomain.ParseCertificate(data), nil
	case t.Thumbprint != "":
		thumb := trustDomain.NormalizeThumbprint(t.Thumbprint)
		if !thumbprintPattern.MatchString(thumb) {
			return trustDomain.Certificate{}, fmt.Errorf("invalid thumbprint: %s (expected 40 hex digits)", t.Thumbprint)
		}
		return trustDomain.Certificate{Thumbprint: thumb}, nil
	default:
		return trustDomain.Certificate{}, errors.New("--thumbprint or --cert-file is required")
	}
}

func scopeLabel(scope string) string {
	if scope == trustDomain.GlobalScope {
		return "(global)"
	}
	return scope
}

// RunTrustList prints every stored approval.
func RunTrustList(store TrustStore, format string, w io.Writer) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	entries := store.Entries()
	if format == "json" {
		type entryView struct {
			Scope      string `json:"scope"`
			Global     bool   `json:"global"`
			Thumbprint string `json:"thumbprint"`
			Subject    string `json:"subject"`
		}
		views := make([]entryView, 0, len(entries))
		for _, e := range entries {
			views = append(views, entryView{
				Scope:      e.Scope,
				Global:     e.Scope == trustDomain.GlobalScope,
				Thumbprint: e.Thumbprint,
				Subject:    e.Subject,
			})
		}
		return outputJSON(w, views)
	}

	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w, "No approved certificates.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SCOPE\tTHUMBPRINT\tSUBJECT")
	for _, e := range entries {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", scopeLabel(e.Scope), e.Thumbprint, e.Subject)
	}
	return tw.Flush()
}

// RunTrustApprove stores an approval for target under scope. An empty scope approves
// the certificate for every connection.
func RunTrustApprove(
	store TrustStore,
	logger *slog.Logger,
	target TrustTarget,
	subject string,
	scope string,
	w io.Writer,
) error {
	cert, err := target.resolve()
	if err != nil {
		return err
	}
	if subject == "" {
		subject = cert.Subject
	}

	if err := store.Approve(cert.Thumbprint, subject, true, scope); err != nil {
		return fmt.Errorf("failed to approve certificate: %w", err)
	}

	_, _ = fmt.Fprintf(w, "Approved %s for %s.\n", cert.Thumbprint, scopeLabel(scope))
	logger.Info("certificate approved from command line",
		slog.String("thumbprint", cert.Thumbprint),
		slog.String("scope", scope),
	)
	return nil
}

// RunTrustCheck reports whether target is approved for scope, directly or globally.
// It returns trustDomain.ErrCertificateRejected when it is not, so the exit status
// can be scripted.
func RunTrustCheck(store TrustStore, target TrustTarget, scope string, w io.Writer) error {
	cert, err := target.resolve()
	if err != nil {
		return err
	}

	if !store.IsApproved(cert.Thumbprint, scope) {
		_, _ = fmt.Fprintf(w, "%s is NOT approved for %s.\n", cert.Thumbprint, scopeLabel(scope))
		return trustDomain.ErrCertificateRejected
	}
	_, _ = fmt.Fprintf(w, "%s is approved for %s.\n", cert.Thumbprint, scopeLabel(scope))
	return nil
}
