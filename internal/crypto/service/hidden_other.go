//go:build !windows

package service

// markHidden is a no-op outside Windows; the default key file name is a dotfile and
// the file is written 0600.
func markHidden(string) error {
	return nil
}
