// Package repository persists certificate approvals as an encrypted JSON document.
package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"sync"

	cryptoService "github.com/allisson/glvault/internal/crypto/service"
	"github.com/allisson/glvault/internal/fsutil"
	trustDomain "github.com/allisson/glvault/internal/trust/domain"
)

// document is the on-disk shape: scope ciphertext -> thumbprint ciphertext -> subject
// ciphertext. The global scope is stored under the empty key.
type document map[string]map[string]string

// FileTrustStore is the durable record of approved certificate thumbprints.
//
// The file is read once, at construction. From then on the in-memory document is the
// only source of truth and every approval rewrites the whole file. There is no
// plaintext index: lookups decrypt each stored thumbprint of a bucket and compare,
// which is linear in the bucket size.
//
// One mutex serializes all access to the document and the file.
type FileTrustStore struct {
	path   string
	codec  cryptoService.Codec
	logger *slog.Logger

	mu      sync.Mutex
	doc     document
	loadErr error
}

// NewFileTrustStore opens the store at path. A missing file is an empty store; an
// unreadable or malformed file is logged and also treated as empty.
func NewFileTrustStore(path string, codec cryptoService.Codec, logger *slog.Logger) *FileTrustStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &FileTrustStore{
		path:   path,
		codec:  codec,
		logger: logger,
		doc:    document{},
	}
	s.load()
	return s
}

// LoadError returns the error that made the initial load fall back to an empty store.
func (s *FileTrustStore) LoadError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

// IsApproved reports whether thumbprint was approved for scope, or globally. It
// consults memory only.
func (s *FileTrustStore) IsApproved(thumbprint, scope string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := trustDomain.NormalizeThumbprint(thumbprint)
	if want == "" {
		return false
	}

	if scope != trustDomain.GlobalScope && s.bucketHas(s.scopeKey(scope), want) {
		return true
	}
	return s.bucketHas(trustDomain.GlobalScope, want)
}

// Approve records thumbprint for scope and rewrites the file. It does nothing when
// remember is false. When the file cannot be written the approval is dropped from
// memory too.
func (s *FileTrustStore) Approve(thumbprint, subject string, remember bool, scope string) error {
	if !remember {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.scopeKey(scope)
	bucket, bucketExisted := s.doc[key]
	if !bucketExisted {
		bucket = map[string]string{}
		s.doc[key] = bucket
	}
	thumb := trustDomain.NormalizeThumbprint(thumbprint)
	thumbKey := s.codec.EncryptOrPlain(thumb)
	previous, replaced := bucket[thumbKey]
	bucket[thumbKey] = s.codec.EncryptOrPlain(subject)

	if err := s.persist(); err != nil {
		switch {
		case replaced:
			bucket[thumbKey] = previous
		case bucketExisted:
			delete(bucket, thumbKey)
		default:
			delete(s.doc, key)
		}
		return fmt.Errorf("failed to persist approval: %w", err)
	}
	s.logger.Info("certificate approval stored", slog.String("thumbprint", thumb), slog.Bool("global", scope == ""))
	return nil
}

// Entries returns every approval decrypted, ordered by scope then thumbprint.
// Values that fail to decrypt are returned as stored.
func (s *FileTrustStore) Entries() []trustDomain.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []trustDomain.Entry
	for scopeKey, bucket := range s.doc {
		scope := s.plain(scopeKey)
		for thumbKey, subject := range bucket {
			entries = append(entries, trustDomain.Entry{
				Scope:      scope,
				Thumbprint: s.plain(thumbKey),
				Subject:    s.plain(subject),
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Scope != entries[j].Scope {
			return entries[i].Scope < entries[j].Scope
		}
		return entries[i].Thumbprint < entries[j].Thumbprint
	})
	return entries
}

func (s *FileTrustStore) bucketHas(key, thumbprint string) bool {
	bucket, ok := s.doc[key]
	if !ok {
		return false
	}
	for stored := range bucket {
		if trustDomain.NormalizeThumbprint(s.plain(stored)) == thumbprint {
			return true
		}
	}
	return false
}

func (s *FileTrustStore) scopeKey(scope string) string {
	if scope == trustDomain.GlobalScope {
		return trustDomain.GlobalScope
	}
	return s.codec.EncryptOrPlain(scope)
}

func (s *FileTrustStore) plain(v string) string {
	if p, ok := s.codec.TryDecrypt(v); ok {
		return p
	}
	return v
}

func (s *FileTrustStore) load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err != nil {
		s.fail(fmt.Errorf("failed to read trust store: %w", err))
		return
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.fail(fmt.Errorf("failed to decode trust store: %w", err))
		return
	}
	if doc == nil {
		doc = document{}
	}
	s.doc = doc

	if migrated := s.migrateScopes(); migrated > 0 {
		s.logger.Info("encrypted legacy trust store scopes", slog.Int("count", migrated))
		if err := s.persist(); err != nil {
			s.logger.Error("failed to persist migrated trust store", slog.Any("error", err))
		}
	}
}

// migrateScopes re-encrypts scope keys that do not decrypt, treating them as legacy
// plaintext. A plaintext name that happens to decrypt is left untouched.
func (s *FileTrustStore) migrateScopes() int {
	migrated := 0
	for key, bucket := range s.doc {
		if _, ok := s.codec.TryDecrypt(key); ok {
			continue
		}
		encrypted := s.codec.EncryptOrPlain(key)
		if encrypted == key {
			continue
		}
		delete(s.doc, key)
		target, ok := s.doc[encrypted]
		if !ok {
			target = map[string]string{}
			s.doc[encrypted] = target
		}
		for thumb, subject := range bucket {
			target[thumb] = subject
		}
		migrated++
	}
	return migrated
}

func (s *FileTrustStore) persist() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode trust store: %w", err)
	}
	return fsutil.WriteFileAtomic(s.path, data, 0o600)
}

func (s *FileTrustStore) fail(err error) {
	s.loadErr = err
	s.doc = document{}
	s.logger.Error("trust store unavailable, treating as empty", slog.String("path", s.path), slog.Any("error", err))
}
