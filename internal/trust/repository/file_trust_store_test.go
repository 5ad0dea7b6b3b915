package repository

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoService "github.com/allisson/glvault/internal/crypto/service"
	trustDomain "github.com/allisson/glvault/internal/trust/domain"
)

type storeFixture struct {
	dir   string
	path  string
	codec *cryptoService.CodecService
}

func newStoreFixture(t *testing.T) storeFixture {
	t.Helper()
	dir := t.TempDir()
	return storeFixture{
		dir:   dir,
		path:  filepath.Join(dir, "certificates.json"),
		codec: cryptoService.NewCodec(cryptoService.NewKeyManager(filepath.Join(dir, ".key"), nil, nil), nil),
	}
}

func (f storeFixture) open() *FileTrustStore {
	return NewFileTrustStore(f.path, f.codec, nil)
}

func (f storeFixture) readDocument(t *testing.T) document {
	t.Helper()
	data, err := os.ReadFile(f.path)
	require.NoError(t, err)
	var doc document
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func TestFileTrustStore_FreshInstall(t *testing.T) {
	f := newStoreFixture(t)
	store := f.open()

	assert.False(t, store.IsApproved("AA11", "prod"))
	assert.False(t, store.IsApproved("AA11", ""))
	assert.NoError(t, store.LoadError())
	assert.Empty(t, store.Entries())

	_, err := os.Stat(f.path)
	assert.True(t, os.IsNotExist(err), "lookups must not create the file")
}

func TestFileTrustStore_Approve(t *testing.T) {
	t.Run("scoped approval survives reload", func(t *testing.T) {
		f := newStoreFixture(t)
		require.NoError(t, f.open().Approve("AA11", "CN=ftp.example.org", true, "prod"))

		reloaded := f.open()
		assert.True(t, reloaded.IsApproved("AA11", "prod"))
		assert.False(t, reloaded.IsApproved("AA11", "other-scope"))
		assert.False(t, reloaded.IsApproved("AA11", ""))
	})

	t.Run("global approval applies to every scope", func(t *testing.T) {
		f := newStoreFixture(t)
		require.NoError(t, f.open().Approve("BB22", "CN=any", true, ""))

		reloaded := f.open()
		assert.True(t, reloaded.IsApproved("BB22", "prod"))
		assert.True(t, reloaded.IsApproved("BB22", "staging"))
		assert.True(t, reloaded.IsApproved("BB22", ""))
	})

	t.Run("remember false is a no-op", func(t *testing.T) {
		f := newStoreFixture(t)
		store := f.open()
		require.NoError(t, store.Approve("AA11", "CN=x", false, "prod"))

		assert.False(t, store.IsApproved("AA11", "prod"))
		_, err := os.Stat(f.path)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("thumbprints compare case-insensitively", func(t *testing.T) {
		f := newStoreFixture(t)
		store := f.open()
		require.NoError(t, store.Approve("aa:11", "CN=x", true, "prod"))

		assert.True(t, store.IsApproved("AA11", "prod"))
	})

	t.Run("nothing is stored in plaintext", func(t *testing.T) {
		f := newStoreFixture(t)
		require.NoError(t, f.open().Approve("AA11", "CN=ftp.example.org", true, "prod"))

		raw, err := os.ReadFile(f.path)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "AA11")
		assert.NotContains(t, string(raw), "prod")
		assert.NotContains(t, string(raw), "ftp.example.org")
		assert.Contains(t, string(raw), "\n  ", "file is pretty printed")

		doc := f.readDocument(t)
		require.Len(t, doc, 1)
		for scope, bucket := range doc {
			plainScope, err := f.codec.Decrypt(scope)
			require.NoError(t, err)
			assert.Equal(t, "prod", plainScope)
			for thumb, subject := range bucket {
				plainThumb, err := f.codec.Decrypt(thumb)
				require.NoError(t, err)
				assert.Equal(t, "AA11", plainThumb)
				plainSubject, err := f.codec.Decrypt(subject)
				require.NoError(t, err)
				assert.Equal(t, "CN=ftp.example.org", plainSubject)
			}
		}
	})

	t.Run("returns write errors", func(t *testing.T) {
		f := newStoreFixture(t)
		blocker := filepath.Join(f.dir, "blocker")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

		store := NewFileTrustStore(filepath.Join(blocker, "certificates.json"), f.codec, nil)
		assert.Error(t, store.Approve("AA11", "CN=x", true, "prod"))
		assert.False(t, store.IsApproved("AA11", "prod"))
		assert.Empty(t, store.Entries())
	})

	t.Run("failed write keeps earlier approvals", func(t *testing.T) {
		f := newStoreFixture(t)
		store := f.open()
		require.NoError(t, store.Approve("AA11", "CN=a", true, "prod"))

		require.NoError(t, os.Remove(f.path))
		require.NoError(t, os.Mkdir(f.path, 0o700))
		require.NoError(t, os.WriteFile(filepath.Join(f.path, "keep"), []byte("x"), 0o600))

		assert.Error(t, store.Approve("BB22", "CN=b", true, "prod"))
		assert.Error(t, store.Approve("CC33", "CN=c", true, "staging"))

		assert.True(t, store.IsApproved("AA11", "prod"))
		assert.False(t, store.IsApproved("BB22", "prod"))
		assert.False(t, store.IsApproved("CC33", "staging"))
		require.Len(t, store.Entries(), 1)
		assert.Equal(t, "CN=a", store.Entries()[0].Subject)
	})
}

func TestFileTrustStore_ConcurrentApprovals(t *testing.T) {
	f := newStoreFixture(t)
	store := f.open()

	thumbs := []string{"A1", "B2", "C3", "D4", "E5", "F6", "A7", "B8"}
	var wg sync.WaitGroup
	for _, thumb := range thumbs {
		wg.Add(1)
		go func(thumb string) {
			defer wg.Done()
			assert.NoError(t, store.Approve(thumb, "CN="+thumb, true, "prod"))
		}(thumb)
	}
	wg.Wait()

	// Every rewrite replaced the whole file; the final one must hold every approval.
	reloaded := f.open()
	require.NoError(t, reloaded.LoadError())
	for _, thumb := range thumbs {
		assert.True(t, reloaded.IsApproved(thumb, "prod"), thumb)
	}
	assert.Len(t, f.readDocument(t)[f.codec.EncryptOrPlain("prod")], len(thumbs))
}

func TestFileTrustStore_LegacyScopeMigration(t *testing.T) {
	f := newStoreFixture(t)
	thumb := f.codec.EncryptOrPlain("AA11")
	subject := f.codec.EncryptOrPlain("CN=legacy")
	legacy := document{
		"prod": {thumb: subject},
		"":     {f.codec.EncryptOrPlain("CC33"): f.codec.EncryptOrPlain("CN=global")},
	}
	data, err := json.MarshalIndent(legacy, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(f.path, data, 0o600))

	store := f.open()

	assert.True(t, store.IsApproved("AA11", "prod"))
	assert.True(t, store.IsApproved("CC33", "prod"))

	doc := f.readDocument(t)
	assert.NotContains(t, doc, "prod")
	encryptedScope := f.codec.EncryptOrPlain("prod")
	require.Contains(t, doc, encryptedScope)
	assert.Equal(t, subject, doc[encryptedScope][thumb])
	assert.Contains(t, doc, "", "global scope key stays empty")

	// A second load finds nothing left to migrate and keeps the same content.
	before, err := os.ReadFile(f.path)
	require.NoError(t, err)
	assert.True(t, f.open().IsApproved("AA11", "prod"))
	after, err := os.ReadFile(f.path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestFileTrustStore_LegacyScopeMergesWithEncryptedBucket(t *testing.T) {
	f := newStoreFixture(t)
	legacy := document{}
	legacy["prod"] = map[string]string{f.codec.EncryptOrPlain("AA11"): f.codec.EncryptOrPlain("CN=a")}
	legacy[f.codec.EncryptOrPlain("prod")] = map[string]string{f.codec.EncryptOrPlain("BB22"): f.codec.EncryptOrPlain("CN=b")}
	data, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(f.path, data, 0o600))

	store := f.open()

	assert.True(t, store.IsApproved("AA11", "prod"))
	assert.True(t, store.IsApproved("BB22", "prod"))
	assert.Len(t, f.readDocument(t), 1)
}

func TestFileTrustStore_CorruptFile(t *testing.T) {
	f := newStoreFixture(t)
	require.NoError(t, os.WriteFile(f.path, []byte("{not json"), 0o600))

	store := f.open()

	assert.Error(t, store.LoadError())
	assert.False(t, store.IsApproved("AA11", "prod"))

	require.NoError(t, store.Approve("AA11", "CN=x", true, "prod"))
	reloaded := f.open()
	assert.NoError(t, reloaded.LoadError())
	assert.True(t, reloaded.IsApproved("AA11", "prod"))
}

func TestFileTrustStore_Entries(t *testing.T) {
	f := newStoreFixture(t)
	store := f.open()
	require.NoError(t, store.Approve("BB22", "CN=b", true, "prod"))
	require.NoError(t, store.Approve("AA11", "CN=a", true, "prod"))
	require.NoError(t, store.Approve("CC33", "CN=c", true, ""))

	entries := f.open().Entries()

	assert.Equal(t, []trustDomain.Entry{
		{Scope: "", Thumbprint: "CC33", Subject: "CN=c"},
		{Scope: "prod", Thumbprint: "AA11", Subject: "CN=a"},
		{Scope: "prod", Thumbprint: "BB22", Subject: "CN=b"},
	}, entries)
}
