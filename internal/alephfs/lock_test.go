package alephfs

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLockExclusiveContention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")

	l1 := NewLock(path)
	require.NoError(t, l1.Exclusive(context.Background(), time.Second))
	defer l1.Unlock()

	l2 := NewLock(path)
	err := l2.Exclusive(context.Background(), 100*time.Millisecond)
	require.ErrorIs(t, err, ErrLockContended)
}

func TestLockReleaseAllowsReacquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")

	l1 := NewLock(path)
	require.NoError(t, l1.Exclusive(context.Background(), time.Second))
	require.NoError(t, l1.Unlock())

	l2 := NewLock(path)
	require.NoError(t, l2.Exclusive(context.Background(), time.Second))
	require.NoError(t, l2.Unlock())
}

func TestLockSharedAllowsMultipleReaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")

	l1 := NewLock(path)
	require.NoError(t, l1.Shared(context.Background(), time.Second))
	defer l1.Unlock()

	l2 := NewLock(path)
	require.NoError(t, l2.Shared(context.Background(), time.Second))
	defer l2.Unlock()
}
