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

	"github.com/kaselby/aleph/internal/toolrpc"
)

// ToolSocketPath is where agentID's tool-RPC socket lives, alongside its
// hook socket under the same registry directory.
func ToolSocketPath(home, agentID string) string {
	return filepath.Join(home, "registry", agentID+".tools.sock")
}

// ToolServer accepts one connection per tool invocation from the tools/
// wrapper scripts (spec §5), symmetric to Server but dispatching through a
// toolrpc.Router instead of a hooks.Bus.
type ToolServer struct {
	ln      net.Listener
	router  *toolrpc.Router
	agentID string
	logger  *slog.Logger
}

// ListenTools binds the tool-RPC socket for agentID under home.
func ListenTools(home, agentID string, router *toolrpc.Router, logger *slog.Logger) (*ToolServer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	path := ToolSocketPath(home, agentID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ipc: mkdir tool socket dir: %w", err)
	}
	if err := removeStaleSocket(path); err != nil {
		return nil, fmt.Errorf("ipc: remove stale tool socket: %w", err)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("ipc: listen %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("ipc: chmod tool socket: %w", err)
	}

	return &ToolServer{ln: ln, router: router, agentID: agentID, logger: logger}, nil
}

// Serve accepts tool-RPC connections until ctx is cancelled.
func (s *ToolServer) Serve(ctx context.Context) error {
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
			return fmt.Errorf("ipc: tool accept: %w", err)
		}
		go s.handle(ctx, conn)
	}
}

func (s *ToolServer) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	var req toolrpc.Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		s.logger.Warn("ipc: malformed tool request", "error", err)
		return
	}

	resp := s.router.Handle(ctx, s.agentID, req)

	enc := json.NewEncoder(conn)
	if err := enc.Encode(resp); err != nil {
		s.logger.Warn("ipc: failed to write tool response", "error", err)
	}
}

// Close releases the listener (and its socket file).
func (s *ToolServer) Close() error {
	return s.ln.Close()
}

// DispatchTool is the client side used by the `aleph tool <name>` CLI
// command the tools/ wrapper scripts invoke.
func DispatchTool(home, agentID string, req toolrpc.Request) (toolrpc.Response, error) {
	path := ToolSocketPath(home, agentID)
	conn, err := net.Dial("unix", path)
	if err != nil {
		return toolrpc.Response{}, fmt.Errorf("ipc: dial %s: %w", path, err)
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return toolrpc.Response{}, fmt.Errorf("ipc: send tool request: %w", err)
	}

	var resp toolrpc.Response
	if err := json.NewDecoder(bufio.NewReader(conn)).Decode(&resp); err != nil {
		return toolrpc.Response{}, fmt.Errorf("ipc: read tool response: %w", err)
	}
	return resp, nil
}
