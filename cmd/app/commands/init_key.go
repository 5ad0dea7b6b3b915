package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// KeyInitializer loads or creates the key file.
type KeyInitializer interface {
	Initialize(ctx context.Context) error
	Path() string
	Regenerated() bool
}

// RunInitKey makes sure a usable key file exists and reports where it is. When an
// existing file had to be replaced it says so, since everything encrypted with the old
// key is now unreadable.
func RunInitKey(ctx context.Context, keys KeyInitializer, logger *slog.Logger, w io.Writer) error {
	if err := keys.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize key: %w", err)
	}

	_, _ = fmt.Fprintf(w, "Key file: %s\n", keys.Path())
	if keys.Regenerated() {
		_, _ = warningColor.Fprintln(w, "Warning: the previous key file was unusable and has been replaced.")
		_, _ = fmt.Fprintln(w, "Stored profiles and approvals encrypted with it can no longer be read.")
		logger.Warn("key file regenerated", slog.String("path", keys.Path()))
		return nil
	}

	logger.Info("key ready", slog.String("path", keys.Path()))
	return nil
}
