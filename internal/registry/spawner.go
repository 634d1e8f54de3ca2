package registry

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/aymanbagabas/go-pty"
)

// ErrDepthExceeded is returned by Spawn when depth >= maxDepth.
type ErrDepthExceeded struct {
	Depth    int
	MaxDepth int
}

func (e *ErrDepthExceeded) Error() string {
	return fmt.Sprintf("registry: spawn depth %d exceeds max depth %d", e.Depth, e.MaxDepth)
}

// SpawnRequest describes a new agent process to launch.
type SpawnRequest struct {
	ParentID    string
	AgentID     string // allocated by Spawn if empty
	Prompt      string
	Project     string
	Mode        Mode
	Ephemeral   bool
	Depth       int
	MaxDepth    int
	HarnessPath string // path to the aleph binary
}

// Spawner launches new agent processes and tracks them in a Registry.
type Spawner struct {
	registry *Registry
}

// NewSpawner returns a Spawner writing records into reg.
func NewSpawner(reg *Registry) *Spawner {
	return &Spawner{registry: reg}
}

// Spawn validates depth, allocates an id if unset, launches the harness
// binary into a terminal-multiplexer window (or a fallback PTY session if
// no multiplexer is available), writes a registry record, and returns the
// new agent's id without waiting for readiness — the launched process
// delivers prompt as its own first user-turn.
func (s *Spawner) Spawn(ctx context.Context, req SpawnRequest) (string, error) {
	if req.MaxDepth <= 0 {
		req.MaxDepth = DefaultMaxDepth
	}
	if req.Depth >= req.MaxDepth {
		return "", &ErrDepthExceeded{Depth: req.Depth, MaxDepth: req.MaxDepth}
	}

	agentID := req.AgentID
	if agentID == "" {
		var b [4]byte
		if _, err := rand.Read(b[:]); err != nil {
			return "", fmt.Errorf("registry: generate agent id: %w", err)
		}
		agentID = "aleph-" + hex.EncodeToString(b[:])
	}

	args := []string{
		"--id", agentID,
		"--prompt", req.Prompt,
		"--project", req.Project,
		"--parent", req.ParentID,
		"--depth", fmt.Sprintf("%d", req.Depth+1),
		"--mode", string(req.Mode),
	}
	if req.Ephemeral {
		args = append(args, "--ephemeral")
	}

	pid, err := launch(req.HarnessPath, agentID, args)
	if err != nil {
		return "", fmt.Errorf("registry: spawn %s: %w", agentID, err)
	}

	now := time.Now().UTC()
	rec := Record{
		AgentID:       agentID,
		PID:           pid,
		ParentID:      req.ParentID,
		Depth:         req.Depth + 1,
		ProjectPath:   req.Project,
		Mode:          req.Mode,
		Ephemeral:     req.Ephemeral,
		StartedAt:     now,
		LastHeartbeat: now,
	}
	if err := s.registry.Write(rec); err != nil {
		return "", fmt.Errorf("registry: spawn %s: %w", agentID, err)
	}

	return agentID, nil
}

// launch starts harnessPath with args inside a tmux window named
// sessionName when the tmux binary is on PATH (a new window in the current
// tmux session when TMUX is set, otherwise a new detached session of that
// name), falling back to an in-process PTY session
// (created with go-pty, which works without a system terminal
// multiplexer installed — useful under CI or containers) otherwise. It
// returns the PID of the launched process.
func launch(harnessPath, sessionName string, args []string) (int, error) {
	if tmuxPath, err := exec.LookPath("tmux"); err == nil {
		return launchInTmux(tmuxPath, harnessPath, sessionName, args)
	}
	return launchInPTY(harnessPath, args)
}

func launchInTmux(tmuxPath, harnessPath, sessionName string, args []string) (int, error) {
	if os.Getenv("TMUX") != "" {
		// Already inside tmux: open a window in the current session and have
		// tmux print the new pane's PID.
		winArgs := append([]string{"new-window", "-d", "-n", sessionName, "-P", "-F", "#{pane_pid}", harnessPath}, args...)
		out, err := exec.Command(tmuxPath, winArgs...).Output()
		if err != nil {
			return 0, fmt.Errorf("launch tmux window %s: %w", sessionName, err)
		}
		var pid int
		if _, err := fmt.Sscanf(string(out), "%d", &pid); err != nil {
			return 0, fmt.Errorf("parse tmux pane pid: %w", err)
		}
		return pid, nil
	}
	tmuxArgs := append([]string{"new-session", "-d", "-s", sessionName, harnessPath}, args...)
	cmd := exec.Command(tmuxPath, tmuxArgs...)
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("launch tmux session %s: %w", sessionName, err)
	}
	go cmd.Wait() // reap the short-lived "tmux new-session" launcher process
	return resolveTmuxPanePID(tmuxPath, sessionName)
}

// resolveTmuxPanePID asks tmux for the PID of the pane it just created,
// since the launcher process we Start()ed above is not the long-running
// agent process itself.
func resolveTmuxPanePID(tmuxPath, sessionName string) (int, error) {
	out, err := exec.Command(tmuxPath, "list-panes", "-t", sessionName, "-F", "#{pane_pid}").Output()
	if err != nil {
		return 0, fmt.Errorf("resolve tmux pane pid for %s: %w", sessionName, err)
	}
	var pid int
	if _, err := fmt.Sscanf(string(out), "%d", &pid); err != nil {
		return 0, fmt.Errorf("parse tmux pane pid: %w", err)
	}
	return pid, nil
}

func launchInPTY(harnessPath string, args []string) (int, error) {
	p, err := pty.New()
	if err != nil {
		return 0, fmt.Errorf("open pty: %w", err)
	}

	cmd := p.Command(harnessPath, args...)
	if err := cmd.Start(); err != nil {
		p.Close()
		return 0, fmt.Errorf("start harness in pty: %w", err)
	}

	go func() {
		cmd.Wait()
		p.Close()
	}()

	return cmd.Process.Pid, nil
}

// Kill sends the terminate signal to agentID's PID. The inbox is left
// untouched; ownership across restarts is ambiguous, so cleanup is left
// to prune policy, not kill.
func (s *Spawner) Kill(agentID string) error {
	r, err := readRecord(s.registry.root, agentID)
	if err != nil {
		return fmt.Errorf("registry: kill %s: %w", agentID, err)
	}
	proc, err := os.FindProcess(r.PID)
	if err != nil {
		return fmt.Errorf("registry: kill %s: %w", agentID, err)
	}
	return proc.Signal(syscall.SIGTERM)
}
