package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	profileDomain "github.com/allisson/glvault/internal/profile/domain"
	profileUsecase "github.com/allisson/glvault/internal/profile/usecase"
)

// profileView is the printable form of a profile. The password is never shown.
type profileView struct {
	Name        string `json:"name"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Username    string `json:"username"`
	SSLMode     string `json:"ssl_mode"`
	PassiveMode bool   `json:"passive_mode"`
	HasPassword bool   `json:"has_password"`
}

func newProfileView(p profileDomain.ConnectionProfile) profileView {
	return profileView{
		Name:        p.Name,
		Host:        p.Host,
		Port:        p.Port,
		Username:    p.Username,
		SSLMode:     string(p.SSLMode),
		PassiveMode: p.PassiveMode,
		HasPassword: p.Password != "",
	}
}

// RunListProfiles prints the stored connection profiles in file order.
func RunListProfiles(
	ctx context.Context,
	uc profileUsecase.ProfileUseCase,
	format string,
	w io.Writer,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	profiles, err := uc.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}

	views := make([]profileView, 0, len(profiles))
	for _, p := range profiles {
		views = append(views, newProfileView(p))
	}
	if format == "json" {
		return outputJSON(w, views)
	}

	if len(views) == 0 {
		_, _ = fmt.Fprintln(w, "No profiles stored.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tADDRESS\tUSER\tSSL\tMODE")
	for _, v := range views {
		mode := "passive"
		if !v.PassiveMode {
			mode = "active"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s:%d\t%s\t%s\t%s\n", v.Name, v.Host, v.Port, v.Username, v.SSLMode, mode)
	}
	return tw.Flush()
}

// RunSaveProfile adds profile, or replaces the stored profile of the same name.
func RunSaveProfile(
	ctx context.Context,
	uc profileUsecase.ProfileUseCase,
	logger *slog.Logger,
	profile profileDomain.ConnectionProfile,
	w io.Writer,
) error {
	if err := uc.Save(ctx, profile); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	_, _ = fmt.Fprintf(w, "Profile %q saved.\n", profile.Name)
	logger.Info("profile saved", slog.String("profile", profile.Name))
	return nil
}

// RunDeleteProfile removes the named profile.
func RunDeleteProfile(
	ctx context.Context,
	uc profileUsecase.ProfileUseCase,
	logger *slog.Logger,
	name string,
	w io.Writer,
) error {
	if err := uc.Delete(ctx, name); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}

	_, _ = fmt.Fprintf(w, "Profile %q deleted.\n", name)
	logger.Info("profile deleted", slog.String("profile", name))
	return nil
}

// RunImportLegacy merges the plaintext legacy profile file into the encrypted store.
// A missing legacy file is not an error.
func RunImportLegacy(
	ctx context.Context,
	uc profileUsecase.ProfileUseCase,
	logger *slog.Logger,
	path string,
	w io.Writer,
) error {
	added, err := uc.ImportLegacy(ctx, path)
	if errors.Is(err, profileDomain.ErrLegacyNotFound) {
		_, _ = fmt.Fprintf(w, "No legacy profile file at %s.\n", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to import legacy profiles: %w", err)
	}

	_, _ = fmt.Fprintf(w, "Imported %d profile(s) from %s.\n", added, path)
	logger.Info("legacy profiles imported", slog.Int("added", added), slog.String("path", path))
	return nil
}
