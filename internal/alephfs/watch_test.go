package alephfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatchDeliversCreateEvent(t *testing.T) {
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := Watch(ctx, dir, nil)
	require.NoError(t, err)

	path := filepath.Join(dir, "new.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Path == path {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for create event (poll reconciliation should still have fired at least once)")
		}
	}
}

func TestWatchClosesOnContextCancel(t *testing.T) {
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	events, err := Watch(ctx, dir, nil)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-events:
		if ok {
			// drain until closed
			for range events {
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch channel did not close after context cancel")
	}
}
