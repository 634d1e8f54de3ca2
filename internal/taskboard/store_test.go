package taskboard

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kaselby/aleph/internal/alephfs"
)

func writeBoard(t *testing.T, path string, b Board) {
	raw, err := yaml.Marshal(b)
	require.NoError(t, err)
	require.NoError(t, alephfs.AtomicWrite(path, raw, 0o644))
}

func TestClaimOpenTaskSucceeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "TODO.yml")
	writeBoard(t, path, Board{Tasks: []Task{{ID: "1", Status: Open, Priority: Medium}}})

	s := New(path)
	require.NoError(t, s.Claim(context.Background(), "1", "agent-a"))

	board, err := s.List()
	require.NoError(t, err)
	require.Equal(t, Claimed, board.Tasks[0].Status)
	require.Equal(t, "agent-a", board.Tasks[0].Assignee)
}

func TestClaimAlreadyClaimedFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "TODO.yml")
	writeBoard(t, path, Board{Tasks: []Task{{ID: "1", Status: Claimed, Assignee: "agent-a", Priority: Medium}}})

	s := New(path)
	err := s.Claim(context.Background(), "1", "agent-b")
	require.Error(t, err)

	var already *ErrAlreadyClaimed
	require.True(t, errors.As(err, &already))
	require.Equal(t, "agent-a", already.Holder)
}

func TestClaimNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "TODO.yml")
	writeBoard(t, path, Board{Tasks: []Task{{ID: "1", Status: Open, Priority: Medium}}})

	s := New(path)
	err := s.Claim(context.Background(), "nonexistent", "agent-a")
	var notFound *ErrNotFound
	require.True(t, errors.As(err, &notFound))
}

func TestConcurrentClaimExactlyOneSucceeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "TODO.yml")
	writeBoard(t, path, Board{Tasks: []Task{{ID: "1", Status: Open, Priority: Medium}}})

	s1 := New(path)
	s2 := New(path)

	var wg sync.WaitGroup
	results := make([]error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); results[0] = s1.Claim(context.Background(), "1", "agent-a") }()
	go func() { defer wg.Done(); results[1] = s2.Claim(context.Background(), "1", "agent-b") }()
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
		}
	}
	require.Equal(t, 1, successes)
}

func TestInvalidTransitionLeavesStateUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "TODO.yml")
	writeBoard(t, path, Board{Tasks: []Task{{ID: "1", Status: Open, Priority: Medium}}})

	s := New(path)
	err := s.SetStatus(context.Background(), "1", Done)
	var invalid *ErrInvalidTransition
	require.True(t, errors.As(err, &invalid))

	board, err := s.List()
	require.NoError(t, err)
	require.Equal(t, Open, board.Tasks[0].Status)
}

func TestValidTransitionSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "TODO.yml")
	writeBoard(t, path, Board{Tasks: []Task{{ID: "1", Status: Open, Priority: Medium}}})

	s := New(path)
	require.NoError(t, s.Claim(context.Background(), "1", "agent-a"))
	require.NoError(t, s.SetStatus(context.Background(), "1", InProgress))
	require.NoError(t, s.SetStatus(context.Background(), "1", Done))

	board, err := s.List()
	require.NoError(t, err)
	require.Equal(t, Done, board.Tasks[0].Status)
	require.NotNil(t, board.Tasks[0].CompletedAt)
}

func TestReleaseRequiresCurrentAssignee(t *testing.T) {
	path := filepath.Join(t.TempDir(), "TODO.yml")
	writeBoard(t, path, Board{Tasks: []Task{{ID: "1", Status: Claimed, Assignee: "agent-a", Priority: Medium}}})

	s := New(path)
	err := s.Release(context.Background(), "1", "agent-b")
	var notAssignee *ErrNotAssignee
	require.True(t, errors.As(err, &notAssignee))

	require.NoError(t, s.Release(context.Background(), "1", "agent-a"))
	board, err := s.List()
	require.NoError(t, err)
	require.Equal(t, Open, board.Tasks[0].Status)
	require.Empty(t, board.Tasks[0].Assignee)
}

func TestFindLocatesNestedSubtask(t *testing.T) {
	tasks := []Task{
		{ID: "1", Subtasks: []Task{{ID: "1.1", Status: Open}}},
	}
	got := find(tasks, "1.1")
	require.NotNil(t, got)
	require.Equal(t, "1.1", got.ID)
}
