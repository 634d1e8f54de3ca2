package registry

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteAndListAlive(t *testing.T) {
	reg := New(t.TempDir())

	rec := Record{
		AgentID:       "aleph-aaaaaaaa",
		PID:           os.Getpid(),
		Depth:         0,
		StartedAt:     time.Now().UTC(),
		LastHeartbeat: time.Now().UTC(),
	}
	require.NoError(t, reg.Write(rec))

	alive, err := reg.ListAlive()
	require.NoError(t, err)
	require.Len(t, alive, 1)
	require.Equal(t, "aleph-aaaaaaaa", alive[0].AgentID)
}

func TestListAlivePrunesDeadStaleRecords(t *testing.T) {
	reg := New(t.TempDir())

	rec := Record{
		AgentID:       "aleph-dead0000",
		PID:           999999, // exceedingly unlikely to be a live PID
		StartedAt:     time.Now().UTC().Add(-time.Hour),
		LastHeartbeat: time.Now().UTC().Add(-10 * time.Minute),
	}
	require.NoError(t, reg.Write(rec))

	alive, err := reg.ListAlive()
	require.NoError(t, err)
	require.Empty(t, alive)
}

func TestListAliveKeepsDeadButRecentHeartbeat(t *testing.T) {
	reg := New(t.TempDir())

	rec := Record{
		AgentID:       "aleph-dead0001",
		PID:           999999,
		StartedAt:     time.Now().UTC(),
		LastHeartbeat: time.Now().UTC(), // fresh heartbeat even though PID is dead
	}
	require.NoError(t, reg.Write(rec))

	alive, err := reg.ListAlive()
	require.NoError(t, err)
	require.Len(t, alive, 1, "a dead PID with a recent heartbeat should not be pruned yet")
}

func TestHeartbeatUpdatesTimestamp(t *testing.T) {
	reg := New(t.TempDir())

	old := time.Now().UTC().Add(-time.Minute)
	rec := Record{AgentID: "aleph-bbbbbbbb", PID: os.Getpid(), StartedAt: old, LastHeartbeat: old}
	require.NoError(t, reg.Write(rec))

	require.NoError(t, reg.Heartbeat("aleph-bbbbbbbb"))

	alive, err := reg.ListAlive()
	require.NoError(t, err)
	require.Len(t, alive, 1)
	require.True(t, alive[0].LastHeartbeat.After(old))
}

func TestChildCount(t *testing.T) {
	reg := New(t.TempDir())

	now := time.Now().UTC()
	require.NoError(t, reg.Write(Record{AgentID: "a", ParentID: "p", PID: os.Getpid(), StartedAt: now, LastHeartbeat: now}))
	require.NoError(t, reg.Write(Record{AgentID: "b", ParentID: "p", PID: os.Getpid(), StartedAt: now, LastHeartbeat: now}))
	require.NoError(t, reg.Write(Record{AgentID: "c", ParentID: "other", PID: os.Getpid(), StartedAt: now, LastHeartbeat: now}))

	n, err := reg.ChildCount("p")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestSpawnRejectsDepthExceeded(t *testing.T) {
	reg := New(t.TempDir())
	sp := NewSpawner(reg)

	_, err := sp.Spawn(nil, SpawnRequest{Depth: 3, MaxDepth: 3, HarnessPath: "/bin/true"})
	require.Error(t, err)
	var depthErr *ErrDepthExceeded
	require.ErrorAs(t, err, &depthErr)
}
