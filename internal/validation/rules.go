// Package validation provides the custom validation rules used for connection profiles.
package validation

import (
	"net"
	"regexp"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/glvault/internal/errors"
)

// hostnameRegex accepts RFC 1123 host names.
var hostnameRegex = regexp.MustCompile(
	`^([a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?)(\.[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?)*$`,
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput.
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// NotBlank validates that a string is not empty after trimming whitespace.
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// NoWhitespace validates that a string has no leading or trailing whitespace.
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// Host validates a host name or an IP literal.
var Host = validation.NewStringRuleWithError(
	func(s string) bool {
		if net.ParseIP(s) != nil {
			return true
		}
		return len(s) <= 253 && hostnameRegex.MatchString(s)
	},
	validation.NewError("validation_host", "must be a host name or IP address"),
)

// SectionName validates a profile name that can round-trip through the legacy
// "[Name]" section syntax.
var SectionName = validation.NewStringRuleWithError(
	func(s string) bool {
		return !strings.ContainsAny(s, "[]\r\n")
	},
	validation.NewError("validation_section_name", "must not contain brackets or line breaks"),
)
