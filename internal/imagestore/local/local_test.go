package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mhzan/cctv-archiver/internal/cctv"
)

func TestNewCreatesMissingBaseDir(t *testing.T) {
	t.Parallel()

	base := filepath.Join(t.TempDir(), "images")
	store, err := New(Config{BaseDir: base})
	require.NoError(t, err)
	require.NotNil(t, store)

	info, err := os.Stat(base)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestNewRejectsEmptyBaseDir(t *testing.T) {
	t.Parallel()

	_, err := New(Config{BaseDir: "   "})
	require.Error(t, err)
}

func TestNewRejectsFileAsBaseDir(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	_, err := New(Config{BaseDir: path})
	require.Error(t, err)
}

func TestPutGetRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	payload := []byte{0xff, 0xd8, 0xff, 0xe0}
	require.NoError(t, store.Put(context.Background(), "DUKE_DUKE-1_20250326_133051.jpg", payload))

	got, err := store.Get(context.Background(), "DUKE_DUKE-1_20250326_133051.jpg")
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestGetMissingKeyReturnsNotFound(t *testing.T) {
	t.Parallel()

	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "absent.jpg")
	require.Error(t, err)
	require.True(t, errors.Is(err, cctv.ErrNotFound))
}

func TestPutRejectsTraversalKey(t *testing.T) {
	t.Parallel()

	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	err = store.Put(context.Background(), "../escape.jpg", []byte("x"))
	require.Error(t, err)
}

func TestStatsCountsJPEGFiles(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	store, err := New(Config{BaseDir: base})
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), "a.jpg", []byte("a")))
	require.NoError(t, store.Put(context.Background(), "b.jpg", []byte("b")))
	require.NoError(t, os.WriteFile(filepath.Join(base, "note.txt"), []byte("n"), 0o600))

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, base, stats.Dir)
	require.True(t, stats.Exists)
	require.True(t, stats.IsDir)
	require.EqualValues(t, 2, stats.ImageCount)
}

func TestStatsMissingDirReportsNotExists(t *testing.T) {
	t.Parallel()

	base := filepath.Join(t.TempDir(), "images")
	store, err := New(Config{BaseDir: base})
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(base))

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	require.False(t, stats.Exists)
	require.Zero(t, stats.ImageCount)
}
