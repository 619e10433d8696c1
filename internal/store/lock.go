package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	apperrors "bankfx/internal/errors"
)

// lockRetryInterval is how often a blocked run re-attempts the file lock
// before its timeout expires.
const lockRetryInterval = 50 * time.Millisecond

// withFileLock runs fn while holding an exclusive advisory lock scoped to
// path. The lock lives in a sidecar ".lock" file so the data file itself can
// be atomically replaced while locked. Acquisition gives up after timeout
// with a StoreLocked error instead of blocking indefinitely; the lock is
// released on every exit path.
func withFileLock(path string, timeout time.Duration, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	fileLock := flock.New(path + ".lock")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(ctx, lockRetryInterval)
	if err != nil || !locked {
		return apperrors.NewStoreLockedError(path, err)
	}
	defer fileLock.Unlock()

	return fn()
}
