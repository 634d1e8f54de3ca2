package toolrpc

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kaselby/aleph/internal/channels"
	"github.com/kaselby/aleph/internal/inbox"
	"github.com/kaselby/aleph/internal/taskboard"
)

func newTestRouter(t *testing.T) *Router {
	ibx := inbox.New(t.TempDir(), nil)
	chReg := channels.New(t.TempDir(), ibx)
	board := taskboard.New(filepath.Join(t.TempDir(), "TODO.yml"))
	return NewRouter(ibx, chReg, board)
}

func TestHandleSendMessageDelivers(t *testing.T) {
	r := newTestRouter(t)
	resp := r.Handle(context.Background(), "alice", Request{
		Tool: "send_message",
		Args: map[string]string{"to": "bob", "summary": "hi", "body": "hello there"},
	})
	require.Empty(t, resp.Error)
	require.NotEmpty(t, resp.Output)

	listResp := r.Handle(context.Background(), "alice", Request{Tool: "list_unread", Args: map[string]string{}})
	require.Empty(t, listResp.Error)
	require.Empty(t, listResp.Output) // alice's own inbox, not bob's

	unreadResp := r.Handle(context.Background(), "bob", Request{Tool: "list_unread"})
	require.Empty(t, unreadResp.Error)
	require.Contains(t, unreadResp.Output, "hi")
}

func TestHandleUnknownToolReturnsError(t *testing.T) {
	r := newTestRouter(t)
	resp := r.Handle(context.Background(), "alice", Request{Tool: "nonexistent"})
	require.NotEmpty(t, resp.Error)
}

func TestHandleClaimAndSetStatus(t *testing.T) {
	dir := t.TempDir()
	boardPath := filepath.Join(dir, "TODO.yml")
	require.NoError(t, os.WriteFile(boardPath, []byte("tasks:\n  - id: \"1\"\n    description: test\n    status: open\n    priority: medium\n"), 0o644))

	ibx := inbox.New(t.TempDir(), nil)
	chReg := channels.New(t.TempDir(), ibx)
	board := taskboard.New(boardPath)
	r := NewRouter(ibx, chReg, board)

	claim := r.Handle(context.Background(), "alice", Request{Tool: "claim_task", Args: map[string]string{"id": "1"}})
	require.Empty(t, claim.Error)

	status := r.Handle(context.Background(), "alice", Request{Tool: "set_task_status", Args: map[string]string{"id": "1", "status": "in-progress"}})
	require.Empty(t, status.Error)

	list := r.Handle(context.Background(), "alice", Request{Tool: "list_tasks"})
	require.Empty(t, list.Error)
	require.Contains(t, list.Output, "in-progress")
}
