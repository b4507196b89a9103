package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 50 * time.Millisecond

// lockFile takes an advisory lock on target+".lock", retrying until ctx is done.
func lockFile(ctx context.Context, target string) (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	fl := flock.New(target + ".lock")
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to lock index: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("failed to lock index: %s is held by another process", fl.Path())
	}

	return fl.Unlock, nil
}
