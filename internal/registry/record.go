// Package registry implements the agent registry and spawner: a
// file-per-agent directory of AgentRecords, heartbeat-driven staleness GC,
// depth-enforced spawning into a terminal-multiplexer session or a
// fallback in-process PTY.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kaselby/aleph/internal/alephfs"
)

// DefaultMaxDepth matches the spec's default subagent nesting bound.
const DefaultMaxDepth = 3

// staleAfter is how long a dead PID's record survives before GC: the PID
// must be dead AND the heartbeat older than this.
const staleAfter = 5 * time.Minute

// heartbeatInterval is how often a live agent is expected to touch its
// own record.
const heartbeatInterval = 30 * time.Second

// Mode mirrors permission.Mode's string values without importing that
// package, since AgentRecord only needs to carry the value through, not
// interpret it.
type Mode string

// Record is the registry row for one live (or recently-live) agent.
type Record struct {
	AgentID       string    `json:"agent_id"`
	PID           int       `json:"pid"`
	ParentID      string    `json:"parent_id,omitempty"`
	Depth         int       `json:"depth"`
	ProjectPath   string    `json:"project_path"`
	Mode          Mode      `json:"mode"`
	Ephemeral     bool      `json:"ephemeral"`
	StartedAt     time.Time `json:"started_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

func recordPath(root, agentID string) string {
	return filepath.Join(root, agentID+".json")
}

func writeRecord(root string, r Record) error {
	raw, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("registry: marshal record: %w", err)
	}
	return alephfs.AtomicWrite(recordPath(root, r.AgentID), raw, 0o644)
}

func readRecord(root, agentID string) (Record, error) {
	raw, err := os.ReadFile(recordPath(root, agentID))
	if err != nil {
		return Record{}, err
	}
	var r Record
	if err := json.Unmarshal(raw, &r); err != nil {
		return Record{}, fmt.Errorf("registry: corrupt record %s: %w", agentID, err)
	}
	return r, nil
}

// pidAlive reports whether pid refers to a running process. On POSIX
// systems signal 0 checks existence without actually signalling.
func pidAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
