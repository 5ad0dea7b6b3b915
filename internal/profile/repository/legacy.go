package repository

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	profileDomain "github.com/allisson/glvault/internal/profile/domain"
)

// ParseLegacy reads the old plaintext profile format:
//
//	[Name]
//	Host=ftp.example.com
//	Port=21
//	Username=admin
//	Password=secret
//	SSL=True
//	PassiveMode=True
//
// Keys are case-insensitive, blank lines and lines starting with ';' or '#' are
// skipped, and key/value lines before the first section are ignored. A repeated
// section header continues the earlier section of that name.
func ParseLegacy(r io.Reader) ([]profileDomain.ConnectionProfile, error) {
	var (
		profiles []profileDomain.ConnectionProfile
		index    = map[string]int{}
		current  = -1
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			name := strings.TrimSpace(line[1 : len(line)-1])
			if i, ok := index[name]; ok {
				current = i
				continue
			}
			profiles = append(profiles, profileDomain.ConnectionProfile{
				Name:        name,
				Port:        profileDomain.DefaultPort,
				SSLMode:     profileDomain.SSLExplicit,
				PassiveMode: true,
			})
			current = len(profiles) - 1
			index[name] = current
			continue
		}

		if current < 0 {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		applyLegacyKey(&profiles[current], strings.TrimSpace(key), strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read legacy profiles: %w", err)
	}
	return profiles, nil
}

func applyLegacyKey(p *profileDomain.ConnectionProfile, key, value string) {
	switch strings.ToLower(key) {
	case "host", "hostname", "server":
		p.Host = value
	case "port":
		if n, err := strconv.Atoi(value); err == nil && n > 0 && n <= 65535 {
			p.Port = n
		}
	case "username", "user":
		p.Username = value
	case "password", "pass":
		p.Password = value
	case "ssl", "sslmode", "secure":
		p.SSLMode = profileDomain.ParseSSLMode(value)
	case "passivemode", "passive", "mode":
		p.PassiveMode = parseLegacyPassive(value)
	}
}

func parseLegacyPassive(value string) bool {
	switch strings.ToLower(value) {
	case "false", "0", "no", "off", modeActive:
		return false
	default:
		return true
	}
}

// ImportLegacy merges the legacy file at path into the store and deletes it. Profiles
// whose name already exists in the store are skipped. It returns how many profiles
// were added.
func (s *FileProfileStore) ImportLegacy(path string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, profileDomain.ErrLegacyNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to open legacy profiles: %w", err)
	}
	legacy, err := ParseLegacy(f)
	_ = f.Close()
	if err != nil {
		return 0, err
	}

	existing, err := s.load()
	if err != nil {
		return 0, err
	}

	names := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		names[p.Name] = struct{}{}
	}

	added := 0
	for _, p := range legacy {
		p.Name = s.plain(p.Name)
		if _, ok := names[p.Name]; ok {
			s.logger.Info("skipping legacy profile, name already exists", slog.String("profile", p.Name))
			continue
		}
		p.Host = s.plain(p.Host)
		p.Username = s.plain(p.Username)
		p.Password = s.plain(p.Password)
		existing = append(existing, p)
		names[p.Name] = struct{}{}
		added++
	}

	if err := s.save(existing); err != nil {
		return 0, err
	}
	if err := os.Remove(path); err != nil {
		return added, fmt.Errorf("imported %d profiles but failed to delete legacy file: %w", added, err)
	}

	s.logger.Info("imported legacy profiles", slog.Int("added", added), slog.Int("skipped", len(legacy)-added))
	return added, nil
}
