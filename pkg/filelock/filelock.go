// Package filelock provides an advisory lock file used to serialise writers
// of the same output stores across processes.
package filelock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another holder owns the lock
var ErrLocked = errors.New("lock is held by another process")

// Lock is a held lock file
type Lock struct {
	path string
	fl   *flock.Flock
	once sync.Once
}

// Acquire takes a non-blocking flock on path and records the owner's pid in
// it. The kernel drops the lock when the owning process exits, so a file left
// behind by a crashed run does not block the next one.
func Acquire(path string) (*Lock, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create lock directory: %w", err)
		}
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s (owner pid %s)", ErrLocked, path, readOwner(path))
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}

	return &Lock{path: path, fl: fl}, nil
}

// Path returns the lock file location
func (l *Lock) Path() string {
	return l.path
}

// Release clears the owner pid and drops the lock. The file itself stays so
// that a waiting process never locks an unlinked inode. Calling it more than
// once is safe.
func (l *Lock) Release() error {
	var err error
	l.once.Do(func() {
		if truncErr := os.Truncate(l.path, 0); truncErr != nil && !errors.Is(truncErr, os.ErrNotExist) {
			err = fmt.Errorf("failed to clear lock file: %w", truncErr)
		}
		if unlockErr := l.fl.Unlock(); unlockErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to unlock: %w", unlockErr))
		}
	})
	return err
}

func readOwner(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "unknown"
	}
	if owner := strings.TrimSpace(string(data)); owner != "" {
		return owner
	}
	return "unknown"
}
