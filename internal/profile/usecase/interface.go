// Package usecase manages the connection profile list and the trust session boundary
// tied to profile activation.
package usecase

import (
	"context"

	profileDomain "github.com/allisson/glvault/internal/profile/domain"
)

// ProfileRepository persists the ordered profile list.
type ProfileRepository interface {
	Load() ([]profileDomain.ConnectionProfile, error)
	Save(profiles []profileDomain.ConnectionProfile) error
	ImportLegacy(path string) (int, error)
}

// SessionResetter starts a new trust session. The trust gate implements it.
type SessionResetter interface {
	ResetSession()
}

// ProfileUseCase defines the connection profile operations.
type ProfileUseCase interface {
	List(ctx context.Context) ([]profileDomain.ConnectionProfile, error)
	Get(ctx context.Context, name string) (*profileDomain.ConnectionProfile, error)
	// Save validates profile and inserts it, or replaces the profile with the same name
	// in place.
	Save(ctx context.Context, profile profileDomain.ConnectionProfile) error
	Delete(ctx context.Context, name string) error
	// Activate returns the named profile and starts a new trust session for it.
	Activate(ctx context.Context, name string) (*profileDomain.ConnectionProfile, error)
	ImportLegacy(ctx context.Context, path string) (int, error)
}
