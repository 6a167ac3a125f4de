package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dbtcontracts/internal/testutil"
	"github.com/leapstack-labs/dbtcontracts/internal/watch"
)

func TestWatcherTriggersOnPropertyChange(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "models"), 0o755))

	w := watch.New([]string{dir}, testutil.NewTestLogger(t))
	w.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	triggered := make(chan struct{}, 8)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(context.Context) error {
			triggered <- struct{}{}
			return nil
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "models", "schema.yml"), []byte("version: 2\n"), 0o644))

	select {
	case <-triggered:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not trigger on yaml write")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}

func TestWatcherIgnoresIrrelevantFiles(t *testing.T) {
	dir := t.TempDir()

	w := watch.New([]string{dir}, testutil.NewTestLogger(t))
	w.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(context.Context) error {
			calls.Add(1)
			return nil
		})
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	time.Sleep(200 * time.Millisecond)

	assert.Zero(t, calls.Load())
	cancel()
	<-done
}

func TestWatcherMissingPath(t *testing.T) {
	w := watch.New([]string{filepath.Join(t.TempDir(), "nope")}, nil)
	err := w.Run(context.Background(), func(context.Context) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watch")
}
