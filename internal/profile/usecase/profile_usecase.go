package usecase

import (
	"context"
	"log/slog"
	"sync"

	profileDomain "github.com/allisson/glvault/internal/profile/domain"
)

type profileUseCase struct {
	repo    ProfileRepository
	session SessionResetter
	logger  *slog.Logger

	// mu serializes read-modify-write cycles on the list.
	mu sync.Mutex
}

// NewProfileUseCase creates a ProfileUseCase. session may be nil when no trust gate
// is in use.
func NewProfileUseCase(repo ProfileRepository, session SessionResetter, logger *slog.Logger) ProfileUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &profileUseCase{repo: repo, session: session, logger: logger}
}

func (u *profileUseCase) List(ctx context.Context) ([]profileDomain.ConnectionProfile, error) {
	return u.repo.Load()
}

func (u *profileUseCase) Get(ctx context.Context, name string) (*profileDomain.ConnectionProfile, error) {
	profiles, err := u.repo.Load()
	if err != nil {
		return nil, err
	}
	i := indexOf(profiles, name)
	if i < 0 {
		return nil, profileDomain.ErrProfileNotFound
	}
	p := profiles[i]
	return &p, nil
}

func (u *profileUseCase) Save(ctx context.Context, profile profileDomain.ConnectionProfile) error {
	if profile.SSLMode == "" {
		profile.SSLMode = profileDomain.SSLExplicit
	}
	if profile.Port == 0 {
		profile.Port = profileDomain.DefaultPort
	}
	if err := profile.Validate(); err != nil {
		return err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	profiles, err := u.repo.Load()
	if err != nil {
		return err
	}
	if i := indexOf(profiles, profile.Name); i >= 0 {
		profiles[i] = profile
	} else {
		profiles = append(profiles, profile)
	}
	if err := u.repo.Save(profiles); err != nil {
		return err
	}

	u.logger.Info("connection profile saved", slog.String("profile", profile.Name))
	return nil
}

func (u *profileUseCase) Delete(ctx context.Context, name string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	profiles, err := u.repo.Load()
	if err != nil {
		return err
	}
	i := indexOf(profiles, name)
	if i < 0 {
		return profileDomain.ErrProfileNotFound
	}
	profiles = append(profiles[:i], profiles[i+1:]...)
	if err := u.repo.Save(profiles); err != nil {
		return err
	}

	u.logger.Info("connection profile deleted", slog.String("profile", name))
	return nil
}

func (u *profileUseCase) Activate(ctx context.Context, name string) (*profileDomain.ConnectionProfile, error) {
	p, err := u.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if u.session != nil {
		u.session.ResetSession()
	}
	u.logger.Info("connection profile activated", slog.String("profile", name))
	return p, nil
}

func (u *profileUseCase) ImportLegacy(ctx context.Context, path string) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.repo.ImportLegacy(path)
}

func indexOf(profiles []profileDomain.ConnectionProfile, name string) int {
	for i, p := range profiles {
		if p.Name == name {
			return i
		}
	}
	return -1
}
