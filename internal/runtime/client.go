package runtime

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/kaselby/aleph/internal/alepherr"
)

// Client owns the subprocess of the wrapped agent runtime: it starts the
// child process, decodes its newline-delimited JSON event stream off
// stdout into typed Events, and writes control messages (new user-turns,
// session-summary requests) to its stdin. The runtime's tool schemas and
// token-streaming protocol internals are opaque past this point — this
// package only speaks the envelope, matching the teacher's own
// provider-adapter transport shape (bufio scanning + json.Unmarshal) minus
// the HTTP client, since there's no HTTP call here at all.
type Client struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Scanner
	logger *slog.Logger

	mu          sync.Mutex
	reconnected bool
}

// controlMessage is what the core writes to the child's stdin: either a
// new user-turn (synthetic wake-up, session-end summary request) or
// nothing else — the runtime's own tool-call protocol is handled
// entirely on its side of the pipe.
type controlMessage struct {
	Kind string `json:"kind"`
	Text string `json:"text,omitempty"`
}

// Start launches command (the runtime subprocess binary plus args) and
// wires its stdin/stdout.
func Start(ctx context.Context, command string, args []string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cmd := exec.CommandContext(ctx, command, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("runtime: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("runtime: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("runtime: start %s: %w", command, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	return &Client{cmd: cmd, stdin: stdin, stdout: scanner, logger: logger}, nil
}

// Next blocks until the next Event is available on the child's stdout, ctx
// is cancelled, or the stream ends. io.EOF is returned verbatim so callers
// can distinguish clean subprocess exit from a decode failure.
func (c *Client) Next(ctx context.Context) (Event, error) {
	type result struct {
		ev  Event
		err error
	}
	done := make(chan result, 1)

	go func() {
		if !c.stdout.Scan() {
			if err := c.stdout.Err(); err != nil {
				done <- result{err: fmt.Errorf("runtime: read event stream: %w", err)}
				return
			}
			done <- result{err: io.EOF}
			return
		}
		var ev Event
		if err := json.Unmarshal(c.stdout.Bytes(), &ev); err != nil {
			done <- result{err: fmt.Errorf("runtime: decode event: %w", err)}
			return
		}
		done <- result{ev: ev}
	}()

	select {
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case r := <-done:
		return r.ev, r.err
	}
}

// InjectUserTurn writes a synthetic user-turn to the child's stdin,
// implementing dispatch.Runtime for idle-mode wake-ups.
func (c *Client) InjectUserTurn(ctx context.Context, agentID string, text string) error {
	return c.writeControl(controlMessage{Kind: "user_turn", Text: text})
}

// RequestSessionSummary asks the agent to write its own session summary
// as a final synthetic user-turn, implementing session.SummaryRequester.
// It returns once the request is written; neither this method nor
// session.EndSession waits for the corresponding TurnEnd event.
func (c *Client) RequestSessionSummary(ctx context.Context, agentID string) error {
	return c.writeControl(controlMessage{
		Kind: "user_turn",
		Text: fmt.Sprintf("Write a session summary to memory/sessions/%s-%s.md before ending.", time.Now().UTC().Format("2006-01-02"), agentID),
	})
}

func (c *Client) writeControl(msg controlMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("runtime: marshal control message: %w", err)
	}
	raw = append(raw, '\n')
	if _, err := c.stdin.Write(raw); err != nil {
		return fmt.Errorf("runtime: write control message: %w", err)
	}
	return nil
}

// Reconnect attempts exactly one restart of the subprocess after a
// connection loss, per §7's runtime-failure policy: one reconnect, and on
// a second failure the caller should write an emergency handoff and exit
// non-zero rather than loop here.
func (c *Client) Reconnect(ctx context.Context, command string, args []string) error {
	c.mu.Lock()
	already := c.reconnected
	c.mu.Unlock()
	if already {
		return alepherr.ErrRuntimeDisconnected
	}

	fresh, err := Start(ctx, command, args, c.logger)
	if err != nil {
		return fmt.Errorf("runtime: reconnect: %w", alepherr.ErrRuntimeDisconnected)
	}

	c.mu.Lock()
	c.cmd = fresh.cmd
	c.stdin = fresh.stdin
	c.stdout = fresh.stdout
	c.reconnected = true
	c.mu.Unlock()
	return nil
}

// Close terminates the subprocess and releases its pipes.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stdin.Close()
	if c.cmd.Process != nil {
		return c.cmd.Process.Kill()
	}
	return nil
}
