// Package domain defines FTP connection profiles.
package domain

import (
	"net"
	"strconv"
	"strings"

	validation "github.com/jellydator/validation"

	appValidation "github.com/allisson/glvault/internal/validation"
)

// DefaultPort is the FTP control port.
const DefaultPort = 21

// SSLMode is how a profile negotiates TLS.
type SSLMode string

const (
	// SSLExplicit upgrades the control connection with AUTH TLS.
	SSLExplicit SSLMode = "explicit"
	// SSLImplicit speaks TLS from the first byte.
	SSLImplicit SSLMode = "implicit"
	// SSLNone is plaintext FTP. The trust gate is never consulted.
	SSLNone SSLMode = "none"
)

// ParseSSLMode accepts the mode names plus the legacy True/False flag. Unknown and
// empty values map to SSLExplicit.
func ParseSSLMode(s string) SSLMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "implicit":
		return SSLImplicit
	case "none", "false", "0", "no", "off":
		return SSLNone
	default:
		return SSLExplicit
	}
}

// UsesTLS reports whether the mode negotiates TLS.
func (m SSLMode) UsesTLS() bool {
	return m != SSLNone
}

// ConnectionProfile is a named glFTPd site.
type ConnectionProfile struct {
	Name        string
	Host        string
	Port        int
	Username    string
	Password    string
	SSLMode     SSLMode
	PassiveMode bool
}

// Address returns host:port for dialing.
func (p ConnectionProfile) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// Validate checks the profile before it is saved.
func (p *ConnectionProfile) Validate() error {
	err := validation.ValidateStruct(p,
		validation.Field(&p.Name,
			validation.Required.Error("name is required"),
			appValidation.NotBlank,
			appValidation.NoWhitespace,
			appValidation.SectionName,
			validation.Length(1, 128).Error("name must be between 1 and 128 characters"),
		),
		validation.Field(&p.Host,
			validation.Required.Error("host is required"),
			appValidation.Host,
		),
		validation.Field(&p.Port,
			validation.Required.Error("port is required"),
			validation.Min(1).Error("port must be between 1 and 65535"),
			validation.Max(65535).Error("port must be between 1 and 65535"),
		),
		validation.Field(&p.Username,
			validation.Required.Error("username is required"),
			appValidation.NotBlank,
		),
		validation.Field(&p.SSLMode,
			validation.In(SSLExplicit, SSLImplicit, SSLNone).Error("ssl mode must be explicit, implicit or none"),
		),
	)
	return appValidation.WrapValidationError(err)
}
