package filelock

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_Exclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locks", "wx_ingest.lock")

	lock, err := Acquire(path)
	require.NoError(t, err)
	assert.Equal(t, path, lock.Path())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(data)))

	_, err = Acquire(path)
	require.ErrorIs(t, err, ErrLocked)
	assert.Contains(t, err.Error(), strconv.Itoa(os.Getpid()))

	require.NoError(t, lock.Release())
	require.NoError(t, lock.Release())

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data, "owner pid cleared on release")

	again, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestAcquire_LeftoverFileFromDeadOwner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wx_ingest.lock")
	require.NoError(t, os.WriteFile(path, []byte("999999\n"), 0o644))

	lock, err := Acquire(path)
	require.NoError(t, err, "an unlocked file left by an exited process must not block")
	t.Cleanup(func() { _ = lock.Release() })

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(data)))
}

func TestRelease_AlreadyRemoved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wx_ingest.lock")

	lock, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	assert.NoError(t, lock.Release())
}
