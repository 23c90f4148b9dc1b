package watch

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherRunsCallbackOnWrite(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "allow.yaml")
	require.NoError(t, os.WriteFile(file, []byte("a: 1\n"), 0o644))

	var calls atomic.Int32
	w, err := NewWatcher(file, 20*time.Millisecond, func() error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	require.NoError(t, os.WriteFile(file, []byte("a: 2\n"), 0o644))
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "allow.yaml")
	require.NoError(t, os.WriteFile(file, []byte("a: 1\n"), 0o644))

	var calls atomic.Int32
	w, err := NewWatcher(file, 20*time.Millisecond, func() error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("b: 1\n"), 0o644))
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestStopIsIdempotent(t *testing.T) {
	file := filepath.Join(t.TempDir(), "allow.yaml")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	w, err := NewWatcher(file, 0, func() error { return nil })
	require.NoError(t, err)
	w.Start()
	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}
