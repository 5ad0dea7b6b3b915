// Package domain defines certificate identities and trust decisions.
package domain

import (
	"crypto/sha1" //nolint:gosec // thumbprints are SHA-1 by convention, not a security boundary
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Certificate is the identity of a TLS peer certificate presented to the trust gate
// and to the approval prompt.
type Certificate struct {
	// Thumbprint is the uppercase hex SHA-1 of the DER encoding.
	Thumbprint string
	// Subject is the distinguished name of the subject, or a placeholder when the
	// certificate could not be parsed.
	Subject   string
	Issuer    string
	NotBefore time.Time
	NotAfter  time.Time
	Raw       []byte
	// Parsed is nil when structural parsing failed.
	Parsed *x509.Certificate
}

// ParseCertificate derives the identity of a DER certificate. It never fails: when the
// bytes do not parse as X.509 the thumbprint is the hash of the raw bytes and the
// subject a placeholder, so a decision can still be keyed on it.
func ParseCertificate(raw []byte) Certificate {
	cert, err := x509.ParseCertificate(raw)
	if err != nil {
		return Certificate{
			Thumbprint: Thumbprint(raw),
			Subject:    fmt.Sprintf("unparsed certificate (%d bytes)", len(raw)),
			Raw:        raw,
		}
	}
	return FromX509(cert)
}

// FromX509 builds the identity of an already parsed certificate.
func FromX509(cert *x509.Certificate) Certificate {
	return Certificate{
		Thumbprint: Thumbprint(cert.Raw),
		Subject:    cert.Subject.String(),
		Issuer:     cert.Issuer.String(),
		NotBefore:  cert.NotBefore,
		NotAfter:   cert.NotAfter,
		Raw:        cert.Raw,
		Parsed:     cert,
	}
}

// Thumbprint returns the uppercase hex SHA-1 of raw.
func Thumbprint(raw []byte) string {
	sum := sha1.Sum(raw) //nolint:gosec
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// NormalizeThumbprint uppercases a thumbprint and strips separators so "aa:11" and
// "AA11" compare equal.
func NormalizeThumbprint(s string) string {
	r := strings.NewReplacer(":", "", " ", "", "-", "")
	return strings.ToUpper(r.Replace(strings.TrimSpace(s)))
}
