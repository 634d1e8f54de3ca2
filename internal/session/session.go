// Package session implements per-agent session lifecycle: handoff
// injection at startup, session-end summary requests, and the
// best-effort stub fallback when a summary turn fails.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kaselby/aleph/internal/alephfs"
)

// Memory is the memory/ directory tree under an agent's home: handoff.md,
// context.md, and sessions/<date>-<id>.md.
type Memory struct {
	mu   sync.Mutex
	root string
}

// New returns a Memory rooted at root (typically $ALEPH_HOME/memory).
func New(root string) *Memory {
	return &Memory{root: root}
}

func (m *Memory) handoffPath() string {
	return filepath.Join(m.root, "handoff.md")
}

func (m *Memory) contextPath() string {
	return filepath.Join(m.root, "context.md")
}

func (m *Memory) sessionLogPath(agentID string, at time.Time) string {
	return filepath.Join(m.root, "sessions", fmt.Sprintf("%s-%s.md", at.Format("2006-01-02"), agentID))
}

// ReadHandoff reads and deletes memory/handoff.md if present, returning
// its contents for injection as prepended system context on the first
// turn. Single-writer (the ending agent), single-reader (the starting
// agent) — the reader deleting after consuming is the ownership handoff
// itself.
func (m *Memory) ReadHandoff() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := os.ReadFile(m.handoffPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("session: read handoff: %w", err)
	}
	if err := os.Remove(m.handoffPath()); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("session: remove handoff after read: %w", err)
	}
	return string(raw), nil
}

// WriteHandoff writes memory/handoff.md for the next session to consume.
// Called by the ending agent only.
func (m *Memory) WriteHandoff(content string) error {
	return alephfs.AtomicWrite(m.handoffPath(), []byte(content), 0o644)
}

// ReadContext reads memory/context.md (persistent system context), or ""
// if absent.
func (m *Memory) ReadContext() (string, error) {
	raw, err := os.ReadFile(m.contextPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("session: read context: %w", err)
	}
	return string(raw), nil
}

// WriteSessionSummary writes the end-of-session summary to
// memory/sessions/<date>-<id>.md.
func (m *Memory) WriteSessionSummary(agentID string, at time.Time, content string) error {
	return alephfs.AtomicWrite(m.sessionLogPath(agentID, at), []byte(content), 0o644)
}

// ReadLatestSessionSummary returns the content of the most recently
// written file under memory/sessions/, or "" if none exist yet. Per spec
// §4.9, startup injects this recap alongside handoff and context.md —
// distinct from both: handoff is single-writer/single-reader and deleted
// on read, context.md is hand-maintained persistent instructions, and this
// is the agent's own prior-session narrative.
func (m *Memory) ReadLatestSessionSummary() (string, error) {
	dir := filepath.Join(m.root, "sessions")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("session: list session summaries: %w", err)
	}

	var (
		latestPath string
		latestMod  time.Time
	)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestMod) {
			latestMod = info.ModTime()
			latestPath = filepath.Join(dir, entry.Name())
		}
	}
	if latestPath == "" {
		return "", nil
	}

	raw, err := os.ReadFile(latestPath)
	if err != nil {
		return "", fmt.Errorf("session: read latest session summary: %w", err)
	}
	return string(raw), nil
}

// StubSummary is the fallback summary written when the real
// summary-writing turn fails (e.g. context overflow): it is built from
// registry metadata alone rather than the agent's own words.
func StubSummary(agentID, projectPath string, startedAt, endedAt time.Time) string {
	return fmt.Sprintf(
		"# Session summary (auto-generated stub)\n\nAgent: %s\nProject: %s\nStarted: %s\nEnded: %s\n\nNo summary was produced by the agent before its session ended.\n",
		agentID, projectPath, startedAt.Format(time.RFC3339), endedAt.Format(time.RFC3339),
	)
}
