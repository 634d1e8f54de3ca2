package alephfs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/kaselby/aleph/internal/alepherr"
)

// AtomicWrite writes data to path by creating a uniquely-named temp file in
// the same directory, fsyncing it, and renaming it over the target. The
// rename is atomic on any POSIX filesystem as long as temp and target share
// a device; a cross-device rename fails fast with ErrCrossDevice instead of
// silently falling back to a torn copy.
func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("alephfs: mkdir %s: %w", dir, err)
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".%s.tmp.%d.%s", filepath.Base(path), os.Getpid(), nonce()))

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("alephfs: create temp file: %w", err)
	}
	defer os.Remove(tmp) // no-op once the rename below succeeds

	if _, err := f.Write(data); err != nil {
		f.Close()
		if errors.Is(err, syscall.ENOSPC) {
			return fmt.Errorf("alephfs: write temp file: %w", alepherr.ErrDiskFull)
		}
		return fmt.Errorf("alephfs: write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		if errors.Is(err, syscall.ENOSPC) {
			return fmt.Errorf("alephfs: fsync temp file: %w", alepherr.ErrDiskFull)
		}
		return fmt.Errorf("alephfs: fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("alephfs: close temp file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		if errors.Is(err, syscall.EXDEV) {
			return ErrCrossDevice
		}
		return fmt.Errorf("alephfs: rename temp file into place: %w", err)
	}
	return nil
}

// AtomicWriteRetry is AtomicWrite wrapped in the bounded-backoff retry the
// spec's error taxonomy calls for on transient I/O (disk full, momentary
// lock contention from a concurrent writer touching the same directory).
// It never retries ErrCrossDevice, which is a configuration error, not a
// transient one.
func AtomicWriteRetry(ctx context.Context, path string, data []byte, perm os.FileMode) error {
	op := func() (struct{}, error) {
		err := AtomicWrite(path, data, perm)
		if err == nil {
			return struct{}{}, nil
		}
		if errors.Is(err, ErrCrossDevice) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}
	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3),
	)
	return err
}

func nonce() string {
	return uuid.New().String()[:8]
}
