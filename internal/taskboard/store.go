package taskboard

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kaselby/aleph/internal/alephfs"
)

const lockTimeout = 5 * time.Second

// Store is the task board backed by a single YAML file (typically
// <project>/TODO.yml).
type Store struct {
	path string
	lock *alephfs.Lock
}

// New returns a Store for the board file at path. The file need not exist
// yet; the first write creates it.
func New(path string) *Store {
	return &Store{path: path, lock: alephfs.NewLock(path)}
}

func (s *Store) readUnlocked() (Board, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Board{}, nil
		}
		return Board{}, fmt.Errorf("taskboard: read %s: %w", s.path, err)
	}
	var b Board
	if err := yaml.Unmarshal(raw, &b); err != nil {
		return Board{}, fmt.Errorf("taskboard: parse %s: %w", s.path, err)
	}
	return b, nil
}

func (s *Store) writeUnlocked(b Board) error {
	raw, err := yaml.Marshal(b)
	if err != nil {
		return fmt.Errorf("taskboard: marshal board: %w", err)
	}
	return alephfs.AtomicWrite(s.path, raw, 0o644)
}

// List returns an in-memory snapshot of the full board. No lock is taken:
// the atomic-write contract on every writer prevents torn reads in
// practice, so a reader may observe a slightly stale-but-never-corrupt
// view.
func (s *Store) List() (Board, error) {
	return s.readUnlocked()
}

// Claim assigns task_id to agent_id if it is currently open. Returns
// *ErrNotFound if the task doesn't exist, *ErrAlreadyClaimed if it is not
// open.
func (s *Store) Claim(ctx context.Context, taskID, agentID string) error {
	if err := s.lock.Exclusive(ctx, lockTimeout); err != nil {
		return fmt.Errorf("taskboard: claim: %w", err)
	}
	defer s.lock.Unlock()

	board, err := s.readUnlocked()
	if err != nil {
		return err
	}

	t := find(board.Tasks, taskID)
	if t == nil {
		return &ErrNotFound{TaskID: taskID}
	}
	if t.Status != Open {
		return &ErrAlreadyClaimed{TaskID: taskID, Holder: t.Assignee}
	}

	t.Status = Claimed
	t.Assignee = agentID

	return s.writeUnlocked(board)
}

// SetStatus transitions task_id to newStatus if the transition is
// permitted by the status graph. Records CompletedAt when transitioning
// to Done.
func (s *Store) SetStatus(ctx context.Context, taskID string, newStatus Status) error {
	if err := s.lock.Exclusive(ctx, lockTimeout); err != nil {
		return fmt.Errorf("taskboard: status: %w", err)
	}
	defer s.lock.Unlock()

	board, err := s.readUnlocked()
	if err != nil {
		return err
	}

	t := find(board.Tasks, taskID)
	if t == nil {
		return &ErrNotFound{TaskID: taskID}
	}
	if !canTransition(t.Status, newStatus) {
		return &ErrInvalidTransition{TaskID: taskID, From: t.Status, To: newStatus}
	}

	t.Status = newStatus
	if newStatus == Done {
		now := time.Now().UTC()
		t.CompletedAt = &now
	}

	return s.writeUnlocked(board)
}

// Release resets task_id to open/unassigned. Only the current assignee
// may release; any other caller gets *ErrNotAssignee, and a task that is
// not claimed gets *ErrInvalidTransition; in both cases state is left
// unchanged.
func (s *Store) Release(ctx context.Context, taskID, agentID string) error {
	if err := s.lock.Exclusive(ctx, lockTimeout); err != nil {
		return fmt.Errorf("taskboard: release: %w", err)
	}
	defer s.lock.Unlock()

	board, err := s.readUnlocked()
	if err != nil {
		return err
	}

	t := find(board.Tasks, taskID)
	if t == nil {
		return &ErrNotFound{TaskID: taskID}
	}
	if t.Assignee != agentID {
		return &ErrNotAssignee{TaskID: taskID, Assignee: t.Assignee, Caller: agentID}
	}
	if !canTransition(t.Status, Open) {
		return &ErrInvalidTransition{TaskID: taskID, From: t.Status, To: Open}
	}

	t.Status = Open
	t.Assignee = ""

	return s.writeUnlocked(board)
}
