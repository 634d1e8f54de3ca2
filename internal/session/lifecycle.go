package session

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

// summaryTimeout is the deadline on the context EndSession passes to
// RequestSessionSummary.
const summaryTimeout = 5 * time.Second

// SummaryRequester asks the agent's own runtime to write a session
// summary as a final synthetic user-turn. Implemented by the runtime
// client; kept as a narrow interface here so this package has no
// dependency on the runtime's full surface.
type SummaryRequester interface {
	RequestSessionSummary(ctx context.Context, agentID string) error
}

// EndSession runs the non-ephemeral session-end sequence: ask the agent
// to write its own summary (the request's context carries summaryTimeout),
// write a stub summary from registry metadata if that request returns an
// error, then auto-commit any changes under home without pushing. It does
// not wait for the summary turn itself to finish.
func EndSession(ctx context.Context, mem *Memory, rt SummaryRequester, agentID, projectPath, home string, startedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, summaryTimeout)
	defer cancel()

	if err := rt.RequestSessionSummary(ctx, agentID); err != nil {
		stub := StubSummary(agentID, projectPath, startedAt, time.Now().UTC())
		if writeErr := mem.WriteSessionSummary(agentID, time.Now().UTC(), stub); writeErr != nil {
			return fmt.Errorf("session: write stub summary after failed summary turn (%v): %w", err, writeErr)
		}
	}

	return autoCommit(home)
}

// autoCommit stages and commits any changes under home to its local git
// repository, never pushing. A missing repository or a no-op commit
// (nothing changed) is not an error — most sessions touch at least one
// file under home, but an ephemeral session or a pure read session may
// not.
func autoCommit(home string) error {
	if _, err := exec.LookPath("git"); err != nil {
		return nil // no git available; nothing to do
	}
	if err := exec.Command("git", "-C", home, "rev-parse", "--git-dir").Run(); err != nil {
		return nil // home is not a git repository; nothing to commit into
	}

	addCmd := exec.Command("git", "-C", home, "add", "-A")
	if err := addCmd.Run(); err != nil {
		return fmt.Errorf("session: git add: %w", err)
	}

	commitCmd := exec.Command("git", "-C", home, "commit", "-m", "aleph: auto-commit session changes")
	if err := commitCmd.Run(); err != nil {
		// "nothing to commit" is the expected outcome on most sessions.
		return nil
	}
	return nil
}
