package checklist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestWatcher(t *testing.T, store *Store) *Watcher {
	t.Helper()
	w, err := NewWatcher(store, zap.NewNop())
	require.NoError(t, err)
	w.settle = 20 * time.Millisecond
	return w
}

func TestWatcherInvalidatesChangedFile(t *testing.T) {
	ctx := context.Background()
	cache, srv := newTestCache(t)
	dir := writeDataDir(t, baseFixtures())
	store := NewStore(dir, cache, zap.NewNop())

	_, err := store.House(ctx)
	require.NoError(t, err)
	require.True(t, srv.Exists(cacheKeyHouse))

	w := newTestWatcher(t, store)
	w.Start(ctx)
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, fileHouse), []byte(`{}`), 0o644))

	require.Eventually(t, func() bool {
		return !srv.Exists(cacheKeyHouse)
	}, 2*time.Second, 25*time.Millisecond)
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	ctx := context.Background()
	cache, srv := newTestCache(t)
	dir := writeDataDir(t, baseFixtures())
	store := NewStore(dir, cache, zap.NewNop())

	_, err := store.Rooms(ctx)
	require.NoError(t, err)
	require.True(t, srv.Exists(cacheKeyRooms))

	w := newTestWatcher(t, store)
	w.Start(ctx)
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("scratch"), 0o644))

	// Give the debounce window and ticker time to run a full cycle.
	time.Sleep(300 * time.Millisecond)
	assert.True(t, srv.Exists(cacheKeyRooms))
}

func TestWatcherStartOnMissingDirIsTolerated(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "absent"), nil, zap.NewNop())
	w := newTestWatcher(t, store)
	w.Start(context.Background())
	w.Stop()
}

func TestWatcherStopWithoutStart(t *testing.T) {
	store := NewStore(t.TempDir(), nil, zap.NewNop())
	w := newTestWatcher(t, store)
	w.Stop()
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	store := NewStore(writeDataDir(t, baseFixtures()), nil, zap.NewNop())
	w := newTestWatcher(t, store)
	w.Start(context.Background())
	w.Stop()
	w.Stop()
}
