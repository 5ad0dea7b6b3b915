package domain

import (
	"github.com/allisson/glvault/internal/errors"
)

// Connection profile error definitions.
var (
	// ErrProfileNotFound indicates no profile has the requested name.
	ErrProfileNotFound = errors.Wrap(errors.ErrNotFound, "connection profile not found")

	// ErrLegacyNotFound indicates the legacy profile file does not exist.
	ErrLegacyNotFound = errors.Wrap(errors.ErrNotFound, "legacy profile file not found")
)
