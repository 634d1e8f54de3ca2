// Package toolrpc is the handler side of the tool scripts under tools/
// (spec §5): send_message, broadcast, list_unread, claim_task, and the
// rest of the agent-facing operations are thin wrapper scripts with YAML
// frontmatter (see pkg/protocol.ToolFrontmatter) that the wrapped runtime
// invokes like any other shell tool. Each script's actual work is just a
// dial of the per-agent tool-RPC socket internal/ipc exposes beside the
// hook socket (ipc.ToolSocketPath), carrying a Request instead of a
// hooks.Event — two listeners, one per request shape.
package toolrpc

import (
	"context"
	"fmt"

	"github.com/kaselby/aleph/internal/channels"
	"github.com/kaselby/aleph/internal/inbox"
	"github.com/kaselby/aleph/internal/taskboard"
)

// Request is one tool invocation: the tool name plus its string-keyed
// arguments, exactly as parsed from the wrapper script's key=value
// command-line arguments. Arguments are strings because that is what a shell wrapper can
// hand back without its own JSON encoding step.
type Request struct {
	Tool string            `json:"tool"`
	Args map[string]string `json:"args"`
}

// Response is the JSON a tool script prints to stdout for the runtime to
// read back as the tool's result.
type Response struct {
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Router dispatches a Request to the store it names. Constructed once per
// running agent process alongside the ipc.ToolServer that accepts connections
// for it.
type Router struct {
	inbox    *inbox.Store
	channels *channels.Registry
	tasks    *taskboard.Store
}

// NewRouter wires the three agent-facing stores into one dispatch table.
func NewRouter(ibx *inbox.Store, chReg *channels.Registry, board *taskboard.Store) *Router {
	return &Router{inbox: ibx, channels: chReg, tasks: board}
}

// Handle runs req on behalf of agentID, the socket's authenticated caller
// (the control socket path already encodes which agent owns it).
func (r *Router) Handle(ctx context.Context, agentID string, req Request) Response {
	out, err := r.dispatch(ctx, agentID, req)
	if err != nil {
		return Response{Error: err.Error()}
	}
	return Response{Output: out}
}

func (r *Router) dispatch(ctx context.Context, agentID string, req Request) (string, error) {
	switch req.Tool {
	case "send_message":
		to := req.Args["to"]
		if to == "" {
			return "", fmt.Errorf("toolrpc: send_message requires to=<agent>")
		}
		id, err := r.inbox.Deliver(to, inbox.Header{
			From:     agentID,
			To:       to,
			Summary:  req.Args["summary"],
			Priority: priorityOrDefault(req.Args["priority"]),
		}, req.Args["body"])
		if err != nil {
			return "", fmt.Errorf("toolrpc: send_message: %w", err)
		}
		return id, nil

	case "broadcast":
		channel := req.Args["channel"]
		if channel == "" {
			return "", fmt.Errorf("toolrpc: broadcast requires channel=<name>")
		}
		result, err := r.channels.Broadcast(ctx, agentID, channel, req.Args["summary"], req.Args["body"], priorityOrDefault(req.Args["priority"]))
		if err != nil {
			return "", fmt.Errorf("toolrpc: broadcast: %w", err)
		}
		return fmt.Sprintf("delivered to %d, failed for %d", len(result.Delivered), len(result.Failed)), nil

	case "subscribe":
		channel := req.Args["channel"]
		if err := r.channels.Subscribe(ctx, agentID, channel); err != nil {
			return "", fmt.Errorf("toolrpc: subscribe: %w", err)
		}
		return "subscribed to " + channel, nil

	case "unsubscribe":
		channel := req.Args["channel"]
		if err := r.channels.Unsubscribe(ctx, agentID, channel); err != nil {
			return "", fmt.Errorf("toolrpc: unsubscribe: %w", err)
		}
		return "unsubscribed from " + channel, nil

	case "list_unread":
		summaries, err := r.inbox.ListUnread(agentID)
		if err != nil {
			return "", fmt.Errorf("toolrpc: list_unread: %w", err)
		}
		return formatSummaries(summaries), nil

	case "mark_read":
		id := req.Args["message_id"]
		if err := r.inbox.MarkRead(agentID, id); err != nil {
			return "", fmt.Errorf("toolrpc: mark_read: %w", err)
		}
		return "marked " + id + " read", nil

	case "list_tasks":
		board, err := r.tasks.List()
		if err != nil {
			return "", fmt.Errorf("toolrpc: list_tasks: %w", err)
		}
		return formatBoard(board), nil

	case "claim_task":
		id := req.Args["id"]
		if err := r.tasks.Claim(ctx, id, agentID); err != nil {
			return "", fmt.Errorf("toolrpc: claim_task: %w", err)
		}
		return "claimed " + id, nil

	case "release_task":
		id := req.Args["id"]
		if err := r.tasks.Release(ctx, id, agentID); err != nil {
			return "", fmt.Errorf("toolrpc: release_task: %w", err)
		}
		return "released " + id, nil

	case "set_task_status":
		id := req.Args["id"]
		status := taskboard.Status(req.Args["status"])
		if err := r.tasks.SetStatus(ctx, id, status); err != nil {
			return "", fmt.Errorf("toolrpc: set_task_status: %w", err)
		}
		return fmt.Sprintf("%s -> %s", id, status), nil

	default:
		return "", fmt.Errorf("toolrpc: unknown tool %q", req.Tool)
	}
}

func priorityOrDefault(p string) inbox.Priority {
	switch inbox.Priority(p) {
	case inbox.Low, inbox.Normal, inbox.High:
		return inbox.Priority(p)
	default:
		return inbox.Normal
	}
}

func formatSummaries(summaries []inbox.Summary) string {
	out := ""
	for _, s := range summaries {
		out += fmt.Sprintf("%s\t%s\t%s\t%s\n", s.ID, s.From, s.Priority, s.Summary)
	}
	return out
}

func formatBoard(b taskboard.Board) string {
	out := ""
	for _, t := range b.Tasks {
		out += formatTask(t, 0)
	}
	return out
}

func formatTask(t taskboard.Task, depth int) string {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	out := fmt.Sprintf("%s%s [%s] %s (assignee=%s)\n", indent, t.ID, t.Status, t.Description, t.Assignee)
	for _, sub := range t.Subtasks {
		out += formatTask(sub, depth+1)
	}
	return out
}
