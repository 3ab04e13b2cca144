package stores_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/walletflow/internal/stores"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
)

func snapshot(rev uint64, expires time.Time) *stores.Snapshot {
	return &stores.Snapshot{
		Kind:        "create_wallet",
		Revision:    rev,
		Step:        201,
		Continuable: true,
		UpdatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		ExpiresAt:   expires,
		State:       []byte(`{"kind":"binding_phone_number"}`),
	}
}

func TestBlobSnapshotStore(t *testing.T) {
	ctx := context.Background()

	s, err := stores.NewBlobSnapshotStore(ctx, "mem://", "flows/")
	require.NoError(t, err)
	defer s.Close()

	t.Run("Load returns not found for missing flow", func(t *testing.T) {
		_, err := s.Load(ctx, "missing")
		assert.ErrorIs(t, err, stores.ErrSnapshotNotFound)
	})

	t.Run("Save and Load round-trip", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "f1", snapshot(1, time.Time{}), 0))

		got, err := s.Load(ctx, "f1")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), got.Revision)
		assert.Equal(t, 201.0, got.Step)
		assert.True(t, got.Continuable)
		assert.Equal(t, `{"kind":"binding_phone_number"}`, string(got.State))
	})

	t.Run("Save enforces revision order", func(t *testing.T) {
		assert.ErrorIs(t, s.Save(ctx, "f1", snapshot(1, time.Time{}), 0), stores.ErrRevisionConflict)
		assert.ErrorIs(t, s.Save(ctx, "f1", snapshot(3, time.Time{}), 0), stores.ErrRevisionConflict)
		assert.NoError(t, s.Save(ctx, "f1", snapshot(2, time.Time{}), 0))
	})

	t.Run("Expired snapshots are not found", func(t *testing.T) {
		past := time.Now().Add(-time.Minute)
		require.NoError(t, s.Save(ctx, "old", snapshot(1, past), time.Minute))

		_, err := s.Load(ctx, "old")
		assert.ErrorIs(t, err, stores.ErrSnapshotNotFound)

		assert.NoError(t, s.Save(ctx, "old", snapshot(1, time.Time{}), 0))
	})

	t.Run("Delete removes flow", func(t *testing.T) {
		assert.NoError(t, s.Delete(ctx, "f1"))
		_, err := s.Load(ctx, "f1")
		assert.ErrorIs(t, err, stores.ErrSnapshotNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "f1"), stores.ErrSnapshotNotFound)
	})
}

func TestBlobSnapshotStoreFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := stores.NewBlobSnapshotStore(ctx, "file://"+dir, "")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(ctx, "f1", snapshot(1, time.Time{}), 0))

	reopened, err := stores.NewBlobSnapshotStore(ctx, "file://"+dir, "")
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "create_wallet", got.Kind)
}

func TestBlobSnapshotStoreExpiryRemovesObject(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := stores.NewBlobSnapshotStore(ctx, "file://"+dir, "")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(ctx, "old", snapshot(1, time.Now().Add(-time.Minute)), time.Minute))
	_, err = os.Stat(filepath.Join(dir, "old.snap"))
	require.NoError(t, err)

	_, err = s.Load(ctx, "old")
	assert.ErrorIs(t, err, stores.ErrSnapshotNotFound)
	_, err = os.Stat(filepath.Join(dir, "old.snap"))
	assert.True(t, os.IsNotExist(err), "expired object should be removed, got %v", err)
}

func TestBlobSnapshotStoreExpiryDeleteFailure(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}
	ctx := context.Background()
	dir := t.TempDir()

	s, err := stores.NewBlobSnapshotStore(ctx, "file://"+dir, "")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(ctx, "old", snapshot(1, time.Now().Add(-time.Minute)), time.Minute))
	require.NoError(t, os.Chmod(dir, 0o500))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o700) })

	_, err = s.Load(ctx, "old")
	assert.ErrorIs(t, err, stores.ErrSnapshotUnavailable)
}

func TestBlobSnapshotStoreBadURL(t *testing.T) {
	_, err := stores.NewBlobSnapshotStore(context.Background(), "nosuchscheme://x", "")
	assert.ErrorIs(t, err, stores.ErrSnapshotUnavailable)
}
