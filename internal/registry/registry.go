package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Registry is the file-per-agent tree rooted at root (typically
// $ALEPH_HOME/registry). The registry file for an AgentID is owned
// exclusively by that agent's own process; every other reader is
// lock-free, per §3's ownership rules.
type Registry struct {
	root string
}

// New returns a Registry rooted at root.
func New(root string) *Registry {
	return &Registry{root: root}
}

// Write persists r as its own process's record. Only the owning process
// should call this.
func (reg *Registry) Write(r Record) error {
	if err := os.MkdirAll(reg.root, 0o755); err != nil {
		return fmt.Errorf("registry: mkdir: %w", err)
	}
	return writeRecord(reg.root, r)
}

// Heartbeat updates agentID's LastHeartbeat in place. Called every
// heartbeatInterval by the owning process.
func (reg *Registry) Heartbeat(agentID string) error {
	r, err := readRecord(reg.root, agentID)
	if err != nil {
		return fmt.Errorf("registry: heartbeat: %w", err)
	}
	r.LastHeartbeat = time.Now().UTC()
	return writeRecord(reg.root, r)
}

// Remove deletes agentID's record on clean shutdown.
func (reg *Registry) Remove(agentID string) error {
	err := os.Remove(recordPath(reg.root, agentID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("registry: remove %s: %w", agentID, err)
	}
	return nil
}

// ListAlive scans the registry, reconciling each record against its PID
// and heartbeat recency: a record whose PID is dead AND whose heartbeat
// is older than staleAfter is pruned (deleted) rather than returned.
func (reg *Registry) ListAlive() ([]Record, error) {
	entries, err := os.ReadDir(reg.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("registry: list: %w", err)
	}

	var alive []Record
	now := time.Now().UTC()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		agentID := strings.TrimSuffix(e.Name(), ".json")
		r, err := readRecord(reg.root, agentID)
		if err != nil {
			continue // corrupt record; skip rather than abort the scan
		}

		if !pidAlive(r.PID) && now.Sub(r.LastHeartbeat) > staleAfter {
			os.Remove(filepath.Join(reg.root, e.Name()))
			continue
		}
		alive = append(alive, r)
	}
	return alive, nil
}

// ChildCount counts live records whose ParentID is parentID, for
// depth/fan-out enforcement at spawn time.
func (reg *Registry) ChildCount(parentID string) (int, error) {
	alive, err := reg.ListAlive()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range alive {
		if r.ParentID == parentID {
			n++
		}
	}
	return n, nil
}
