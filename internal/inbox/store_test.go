package inbox

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	return New(t.TempDir(), nil)
}

func TestDeliverThenListUnread(t *testing.T) {
	s := newTestStore(t)

	id, err := s.Deliver("bob", Header{From: "alice", To: "bob", Summary: "hi", Priority: Normal}, "body")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	unread, err := s.ListUnread("bob")
	require.NoError(t, err)
	require.Len(t, unread, 1)
	require.Equal(t, id, unread[0].ID)
	require.Equal(t, "alice", unread[0].From)
}

func TestMarkReadRemovesFromUnread(t *testing.T) {
	s := newTestStore(t)

	id, err := s.Deliver("bob", Header{From: "alice", To: "bob", Summary: "hi", Priority: Normal}, "body")
	require.NoError(t, err)

	require.NoError(t, s.MarkRead("bob", id))
	require.NoError(t, s.MarkRead("bob", id)) // idempotent

	unread, err := s.ListUnread("bob")
	require.NoError(t, err)
	require.Empty(t, unread)
}

func TestListUnreadPriorityOrdering(t *testing.T) {
	s := newTestStore(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	deliverAt := func(recipient string, p Priority, offset time.Duration, summary string) {
		_, err := s.Deliver(recipient, Header{
			From: "alice", To: recipient, Summary: summary, Priority: p, Timestamp: base.Add(offset),
		}, "body")
		require.NoError(t, err)
	}

	deliverAt("bob", Low, 0, "low-old")
	deliverAt("bob", High, time.Second, "high-new")
	deliverAt("bob", Normal, 2*time.Second, "normal")
	deliverAt("bob", High, 0, "high-old")

	unread, err := s.ListUnread("bob")
	require.NoError(t, err)
	require.Len(t, unread, 4)
	require.Equal(t, "high-old", unread[0].Summary)
	require.Equal(t, "high-new", unread[1].Summary)
	require.Equal(t, "normal", unread[2].Summary)
	require.Equal(t, "low-old", unread[3].Summary)
}

func TestConcurrentDeliverYieldsDistinctIDs(t *testing.T) {
	s := newTestStore(t)

	const n = 50
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := s.Deliver("bob", Header{From: "alice", To: "bob", Summary: fmt.Sprintf("msg-%d", i), Priority: Normal}, "body")
			require.NoError(t, err)
			ids <- id
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool, n)
	for id := range ids {
		require.False(t, seen[id], "duplicate message id %s", id)
		seen[id] = true
	}
	require.Len(t, seen, n)
}

func TestBadFrontmatterIsQuarantinedNotFatal(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, os.MkdirAll(s.dir("bob"), 0o755))
	bad := filepath.Join(s.dir("bob"), "01BADBADBADBADBADBADBADBAD.md")
	require.NoError(t, os.WriteFile(bad, []byte("not a valid message file"), 0o644))

	id, err := s.Deliver("bob", Header{From: "alice", To: "bob", Summary: "good", Priority: Normal}, "body")
	require.NoError(t, err)

	unread, err := s.ListUnread("bob")
	require.NoError(t, err)
	require.Len(t, unread, 1)
	require.Equal(t, id, unread[0].ID)

	_, err = os.Stat(filepath.Join(s.quarantineDir("bob"), "01BADBADBADBADBADBADBADBAD.md"))
	require.NoError(t, err, "bad message should have been moved to quarantine")
	_, err = os.Stat(bad)
	require.True(t, os.IsNotExist(err), "bad message should be removed from the live inbox")
}

func TestPruneArchivesReadMessagesPastRetention(t *testing.T) {
	s := newTestStore(t)

	old := time.Now().Add(-48 * time.Hour)
	id, err := s.Deliver("bob", Header{From: "alice", To: "bob", Summary: "old", Priority: Normal, Timestamp: old}, "body text")
	require.NoError(t, err)
	require.NoError(t, s.MarkRead("bob", id))

	n, err := s.Prune("bob", PrunePolicy{OlderThan: 24 * time.Hour})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = os.Stat(filepath.Join(s.dir("bob"), id+".md"))
	require.True(t, os.IsNotExist(err))

	_, err = os.Stat(filepath.Join(s.dir("bob"), "archive.jsonl.zst"))
	require.NoError(t, err)
}

func TestPruneLeavesUnreadMessagesAlone(t *testing.T) {
	s := newTestStore(t)

	old := time.Now().Add(-48 * time.Hour)
	id, err := s.Deliver("bob", Header{From: "alice", To: "bob", Summary: "old", Priority: Normal, Timestamp: old}, "body")
	require.NoError(t, err)

	n, err := s.Prune("bob", PrunePolicy{OlderThan: 24 * time.Hour})
	require.NoError(t, err)
	require.Equal(t, 0, n)

	_, err = os.Stat(filepath.Join(s.dir("bob"), id+".md"))
	require.NoError(t, err)
}
