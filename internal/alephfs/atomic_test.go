package alephfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAtomicWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "msg.yaml")

	require.NoError(t, AtomicWrite(path, []byte("hello"), 0o644))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file must not survive a successful write")
}

func TestAtomicWriteOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "msg.yaml")

	require.NoError(t, AtomicWrite(path, []byte("first"), 0o644))
	require.NoError(t, AtomicWrite(path, []byte("second"), 0o644))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "second", string(got))
}

func TestAtomicWriteRetrySucceeds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "msg.yaml")

	err := AtomicWriteRetry(context.Background(), path, []byte("hi"), 0o644)
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hi", string(got))
}
