package channels

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kaselby/aleph/internal/inbox"
)

func newTestRegistry(t *testing.T) *Registry {
	ibx := inbox.New(t.TempDir(), nil)
	return New(t.TempDir(), ibx)
}

func TestSubscribeIsIdempotent(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Subscribe(ctx, "alice", "general"))
	require.NoError(t, r.Subscribe(ctx, "alice", "general"))

	members, err := r.Members(ctx, "general")
	require.NoError(t, err)
	require.Equal(t, map[string]bool{"alice": true}, members)
}

func TestUnsubscribeRemovesMembership(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Subscribe(ctx, "alice", "general"))
	require.NoError(t, r.Subscribe(ctx, "bob", "general"))
	require.NoError(t, r.Unsubscribe(ctx, "alice", "general"))

	members, err := r.Members(ctx, "general")
	require.NoError(t, err)
	require.Equal(t, map[string]bool{"bob": true}, members)
}

func TestBroadcastDeliversToAllSubscribersExceptSender(t *testing.T) {
	ibx := inbox.New(t.TempDir(), nil)
	r := New(t.TempDir(), ibx)
	ctx := context.Background()

	require.NoError(t, r.Subscribe(ctx, "alice", "general"))
	require.NoError(t, r.Subscribe(ctx, "bob", "general"))
	require.NoError(t, r.Subscribe(ctx, "carol", "general"))

	result, err := r.Broadcast(ctx, "alice", "general", "hi all", "body", inbox.Normal)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"bob", "carol"}, result.Delivered)
	require.Empty(t, result.Failed)

	unread, err := ibx.ListUnread("bob")
	require.NoError(t, err)
	require.Len(t, unread, 1)

	unread, err = ibx.ListUnread("alice")
	require.NoError(t, err)
	require.Empty(t, unread, "sender must not receive its own broadcast")
}

func TestBroadcastAppendsHistory(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Subscribe(ctx, "bob", "general"))
	_, err := r.Broadcast(ctx, "alice", "general", "hi", "body", inbox.Normal)
	require.NoError(t, err)

	history, err := r.History("general")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "alice", history[0].Sender)
}

func TestBroadcastReceivedExactlyOnce(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	ibx := r.inbox

	require.NoError(t, r.Subscribe(ctx, "bob", "general"))
	_, err := r.Broadcast(ctx, "alice", "general", "hi", "body", inbox.Normal)
	require.NoError(t, err)

	unread, err := ibx.ListUnread("bob")
	require.NoError(t, err)
	require.Len(t, unread, 1)
}
