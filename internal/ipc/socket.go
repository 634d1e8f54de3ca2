// Package ipc is the pair of control sockets a running Aleph agent
// process listens on so the wrapped runtime can invoke hooks and agent-
// facing tools as short-lived external commands (the `aleph hook <event>`
// and `aleph tool <name>` CLI surfaces, see tools.go) while the in-process
// Bus, permission Arbiter, stores, and per-agent serialization lock all
// continue to live in the one long-running process that owns them.
// Grounded on the unix-socket listener shape in the pack's
// leapmux-leapmux/hub server (net.Listen("unix", ...) + 0600 perms +
// stale-socket cleanup), collapsed from an HTTP server to a tiny
// line-delimited JSON request/response protocol since there is no
// routing or multiplexing need here — one event in, one decision out.
package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"

	"github.com/kaselby/aleph/internal/hooks"
)

// SocketPath is where agentID's control socket lives: a fixed location
// under the registry directory so the CLI side can derive it purely from
// $ALEPH_HOME and $ALEPH_AGENT_ID without any other coordination.
func SocketPath(home, agentID string) string {
	return filepath.Join(home, "registry", agentID+".sock")
}

// removeStaleSocket clears a leftover socket file from an unclean
// shutdown so the listener's bind doesn't fail with "address already in
// use" against a file nothing is listening on anymore.
func removeStaleSocket(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if _, err := net.Dial("unix", path); err == nil {
		return fmt.Errorf("ipc: socket %s already has a live listener", path)
	}
	return os.Remove(path)
}

// Server accepts one connection per hook dispatch: read one Event as
// JSON, run it through bus.Dispatch, write back the aggregated Decision
// as JSON, close.
type Server struct {
	ln     net.Listener
	bus    *hooks.Bus
	logger *slog.Logger
}

// Listen binds the control socket for agentID under home and returns a
// ready-to-Serve Server.
func Listen(home, agentID string, bus *hooks.Bus, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	path := SocketPath(home, agentID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ipc: mkdir socket dir: %w", err)
	}
	if err := removeStaleSocket(path); err != nil {
		return nil, fmt.Errorf("ipc: remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("ipc: listen %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("ipc: chmod socket: %w", err)
	}

	return &Server{ln: ln, bus: bus, logger: logger}, nil
}

// Serve accepts connections until ctx is cancelled or the listener
// errors. Each connection is handled synchronously on its own goroutine;
// hooks.Bus itself still serializes per-agent dispatch, so concurrent
// connections for the same agent are safe but queue behind the bus's own
// lock.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return fmt.Errorf("ipc: accept: %w", err)
		}
		go s.handle(ctx, conn)
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	var ev hooks.Event
	if err := json.NewDecoder(conn).Decode(&ev); err != nil {
		s.logger.Warn("ipc: malformed hook request", "error", err)
		return
	}

	decision := s.bus.Dispatch(ctx, ev)

	enc := json.NewEncoder(conn)
	if err := enc.Encode(decision); err != nil {
		s.logger.Warn("ipc: failed to write hook response", "error", err)
	}
}

// Close releases the listener (and its socket file).
func (s *Server) Close() error {
	return s.ln.Close()
}

// Dispatch is the client side: connect to agentID's control socket under
// home, send ev as JSON, and decode the returned Decision. Used by the
// `aleph hook` CLI command, which runs as a separate short-lived process
// invoked by the wrapped runtime.
func Dispatch(home, agentID string, ev hooks.Event) (hooks.Decision, error) {
	path := SocketPath(home, agentID)
	conn, err := net.Dial("unix", path)
	if err != nil {
		return hooks.Decision{}, fmt.Errorf("ipc: dial %s: %w", path, err)
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(ev); err != nil {
		return hooks.Decision{}, fmt.Errorf("ipc: send event: %w", err)
	}

	var decision hooks.Decision
	if err := json.NewDecoder(bufio.NewReader(conn)).Decode(&decision); err != nil {
		return hooks.Decision{}, fmt.Errorf("ipc: read decision: %w", err)
	}
	return decision, nil
}
