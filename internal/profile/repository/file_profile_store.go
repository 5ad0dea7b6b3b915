// Package repository persists connection profiles with their sensitive fields encrypted.
package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	cryptoService "github.com/allisson/glvault/internal/crypto/service"
	"github.com/allisson/glvault/internal/fsutil"
	profileDomain "github.com/allisson/glvault/internal/profile/domain"
)

const (
	modePassive = "passive"
	modeActive  = "active"
)

// profileRecord is one entry of the JSON file. Name, host, username, password and
// port hold ciphertext; sslMode and mode are stored as-is.
type profileRecord struct {
	Name     string    `json:"name"`
	SSLMode  string    `json:"sslMode"`
	Host     string    `json:"host"`
	Username string    `json:"username"`
	Password string    `json:"password"`
	Port     portField `json:"port"`
	Mode     string    `json:"mode"`
}

// portField is written as a (ciphertext) string but also reads a bare number, which
// older files contain.
type portField string

func (p *portField) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = portField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("port must be a string or number: %w", err)
	}
	*p = portField(n.String())
	return nil
}

// FileProfileStore reads and writes the ordered profile list.
type FileProfileStore struct {
	path   string
	codec  cryptoService.Codec
	logger *slog.Logger
	mu     sync.Mutex
}

// NewFileProfileStore creates a store for path.
func NewFileProfileStore(path string, codec cryptoService.Codec, logger *slog.Logger) *FileProfileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileProfileStore{path: path, codec: codec, logger: logger}
}

// Path returns the JSON file location.
func (s *FileProfileStore) Path() string {
	return s.path
}

// Load returns every stored profile in file order. Fields that do not decrypt are
// used as stored, so never-encrypted data still loads. A missing file is an empty list.
func (s *FileProfileStore) Load() ([]profileDomain.ConnectionProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Save replaces the file with profiles, encrypting every sensitive field. A field
// that fails to encrypt is written in plaintext rather than failing the save.
func (s *FileProfileStore) Save(profiles []profileDomain.ConnectionProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(profiles)
}

func (s *FileProfileStore) load() ([]profileDomain.ConnectionProfile, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []profileDomain.ConnectionProfile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return []profileDomain.ConnectionProfile{}, nil
	}

	var records []profileRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse profiles: %w", err)
	}

	profiles := make([]profileDomain.ConnectionProfile, 0, len(records))
	for _, r := range records {
		profiles = append(profiles, s.fromRecord(r))
	}
	return profiles, nil
}

func (s *FileProfileStore) save(profiles []profileDomain.ConnectionProfile) error {
	records := make([]profileRecord, 0, len(profiles))
	for _, p := range profiles {
		records = append(records, s.toRecord(p))
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode profiles: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write profiles: %w", err)
	}
	return nil
}

func (s *FileProfileStore) fromRecord(r profileRecord) profileDomain.ConnectionProfile {
	p := profileDomain.ConnectionProfile{
		Name:        s.plain(r.Name),
		Host:        s.plain(r.Host),
		Username:    s.plain(r.Username),
		Password:    s.plain(r.Password),
		SSLMode:     profileDomain.ParseSSLMode(r.SSLMode),
		PassiveMode: !strings.EqualFold(r.Mode, modeActive),
	}
	p.Port = s.port(p.Name, s.plain(string(r.Port)))
	return p
}

func (s *FileProfileStore) toRecord(p profileDomain.ConnectionProfile) profileRecord {
	mode := modePassive
	if !p.PassiveMode {
		mode = modeActive
	}
	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = profileDomain.SSLExplicit
	}
	return profileRecord{
		Name:     s.codec.EncryptOrPlain(p.Name),
		SSLMode:  string(sslMode),
		Host:     s.codec.EncryptOrPlain(p.Host),
		Username: s.codec.EncryptOrPlain(p.Username),
		Password: s.codec.EncryptOrPlain(p.Password),
		Port:     portField(s.codec.EncryptOrPlain(strconv.Itoa(p.Port))),
		Mode:     mode,
	}
}

// plain decrypts value, falling back to value itself.
func (s *FileProfileStore) plain(value string) string {
	if v, ok := s.codec.TryDecrypt(value); ok {
		return v
	}
	return value
}

func (s *FileProfileStore) port(name, value string) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return profileDomain.DefaultPort
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 || n > 65535 {
		s.logger.Warn("invalid stored port, using default",
			slog.String("profile", name),
			slog.Int("default", profileDomain.DefaultPort),
		)
		return profileDomain.DefaultPort
	}
	return n
}
