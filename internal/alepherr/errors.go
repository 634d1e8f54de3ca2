// Package alepherr collects the small set of sentinel errors shared
// across components that don't otherwise carry their own typed error
// (taskboard and registry's ErrDepthExceeded are the exceptions — see
// DESIGN.md for why those two do carry structured data). Everything here
// follows the teacher's own style: plain sentinels wrapped with
// fmt.Errorf("...: %w", err) at the call site, not a custom error-code
// type.
package alepherr

import "errors"

// ErrDirMissing marks an inbox/channel directory that doesn't exist yet.
// Per spec §4.2, this is not fatal — callers create it on demand.
var ErrDirMissing = errors.New("aleph: directory does not exist")

// ErrDiskFull surfaces an ENOSPC-class write failure to the caller after
// the bounded retry in §7 is exhausted.
var ErrDiskFull = errors.New("aleph: disk full")

// ErrRuntimeDisconnected marks a lost connection to the wrapped agent
// runtime subprocess, after the single reconnect attempt §7 allows has
// also failed.
var ErrRuntimeDisconnected = errors.New("aleph: agent runtime subprocess disconnected")

// ErrInvalidState marks a programmer error per §7's taxonomy: an invalid
// state transition or a missing required field that should never occur
// at runtime after tests pass. Call sites should fail fast on this, not
// attempt recovery.
var ErrInvalidState = errors.New("aleph: invalid state")
