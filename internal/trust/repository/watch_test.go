package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileTrustStore_Merge(t *testing.T) {
	f := newStoreFixture(t)
	store := f.open()
	require.NoError(t, store.Approve("AA11", "CN=local", true, "prod"))

	other := f.open()
	require.NoError(t, other.Approve("BB22", "CN=external", true, "prod"))
	require.NoError(t, other.Approve("CC33", "CN=global", true, ""))

	added, err := store.merge()

	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.True(t, store.IsApproved("AA11", "prod"))
	assert.True(t, store.IsApproved("BB22", "prod"))
	assert.True(t, store.IsApproved("CC33", "other"))

	again, err := store.merge()
	require.NoError(t, err)
	assert.Equal(t, 0, again)
}

func TestFileTrustStore_MergeKeepsMemoryOnBadFile(t *testing.T) {
	f := newStoreFixture(t)
	store := f.open()
	require.NoError(t, store.Approve("AA11", "CN=local", true, "prod"))
	require.NoError(t, os.WriteFile(f.path, []byte("{truncated"), 0o600))

	_, err := store.merge()

	assert.Error(t, err)
	assert.True(t, store.IsApproved("AA11", "prod"))
}

func TestFileTrustStore_Watch(t *testing.T) {
	f := newStoreFixture(t)
	store := f.open()
	other := f.open()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- store.Watch(ctx) }()

	assert.Eventually(t, func() bool {
		_ = other.Approve("DD44", "CN=external", true, "prod")
		return store.IsApproved("DD44", "prod")
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
