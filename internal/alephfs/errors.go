// Package alephfs provides the filesystem primitives every other Aleph
// component is built on: atomic writes, advisory locking, directory
// watching, and monotonic ID generation. Nothing above this package should
// touch os.Rename or os.OpenFile directly.
package alephfs

import "errors"

// ErrCrossDevice is returned by AtomicWrite when the temp file and the
// target live on different filesystems, so the final rename cannot be
// atomic. Callers should fall back to a non-atomic copy+remove themselves
// if that's acceptable, or surface the error.
var ErrCrossDevice = errors.New("alephfs: cross-device rename, atomic write not possible")

// ErrLockContended is returned by Lock when the timeout elapses before the
// advisory lock is acquired.
var ErrLockContended = errors.New("alephfs: lock contended")
