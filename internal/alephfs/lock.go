package alephfs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// lockPollInterval is how often flock's context-aware lock loop retries the
// underlying syscall while waiting. Short enough that a timeout of a few
// hundred milliseconds still gets a couple of attempts in.
const lockPollInterval = 25 * time.Millisecond

// Lock is an advisory whole-file lock (flock-style). It is released when
// Unlock is called or, regardless of state, when the owning process exits —
// both properties come directly from the kernel flock() semantics gofrs/flock
// wraps, which is exactly the contract §4.1 asks for.
type Lock struct {
	fl   *flock.Flock
	path string
}

// NewLock returns a Lock bound to path+".lock". The lock file itself is
// never read for content; its only purpose is to be flock()'d.
func NewLock(path string) *Lock {
	return &Lock{fl: flock.New(path + ".lock"), path: path}
}

// Exclusive blocks until the lock is acquired or timeout elapses. On
// timeout it returns ErrLockContended. The lock directory is created on
// demand so first-use doesn't require a separate mkdir step by the caller.
func (l *Lock) Exclusive(ctx context.Context, timeout time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(l.fl.Path()), 0o755); err != nil {
		return fmt.Errorf("alephfs: mkdir lock dir: %w", err)
	}

	lctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ok, err := l.fl.TryLockContext(lctx, lockPollInterval)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrLockContended
		}
		return fmt.Errorf("alephfs: acquire lock %s: %w", l.path, err)
	}
	if !ok {
		return ErrLockContended
	}
	return nil
}

// Shared acquires a shared (read) lock, for callers that want paranoid
// protection against a torn read even though the atomic-write contract
// already prevents one in practice (spec §4.7).
func (l *Lock) Shared(ctx context.Context, timeout time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(l.fl.Path()), 0o755); err != nil {
		return fmt.Errorf("alephfs: mkdir lock dir: %w", err)
	}

	lctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ok, err := l.fl.TryRLockContext(lctx, lockPollInterval)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrLockContended
		}
		return fmt.Errorf("alephfs: acquire shared lock %s: %w", l.path, err)
	}
	if !ok {
		return ErrLockContended
	}
	return nil
}

// Unlock releases the lock. Safe to call even if the lock was never
// acquired.
func (l *Lock) Unlock() error {
	return l.fl.Unlock()
}
