// Package taskboard implements the shared project task board: a single
// YAML file guarded by an exclusive advisory lock per operation, with
// at-most-one-claim guarantees over the open/claimed/in-progress/{done,
// blocked} status graph.
package taskboard

import "time"

// Status is one of the task board's status graph nodes.
type Status string

const (
	Open       Status = "open"
	Claimed    Status = "claimed"
	InProgress Status = "in-progress"
	Done       Status = "done"
	Blocked    Status = "blocked"
)

// Priority mirrors the board file's priority field.
type Priority string

const (
	Low    Priority = "low"
	Medium Priority = "medium"
	High   Priority = "high"
)

// Task is one node in the board, possibly with subtasks. Hierarchical IDs
// like "2.1" are plain strings; the board does not interpret the dotted
// structure, and tasks keep the order they have in the file.
type Task struct {
	ID          string   `yaml:"id"`
	Description string   `yaml:"description"`
	Status      Status   `yaml:"status"`
	Assignee    string   `yaml:"assignee,omitempty"`
	Priority    Priority `yaml:"priority"`
	Subtasks    []Task   `yaml:"subtasks,omitempty"`

	CompletedAt *time.Time `yaml:"completed_at,omitempty"`
}

// Board is the root document shape of TODO.yml.
type Board struct {
	Tasks []Task `yaml:"tasks"`
}

// allowedTransitions encodes the status graph from §3: open → claimed →
// in-progress → {done, blocked}; blocked → in-progress; claimed → open
// (release).
var allowedTransitions = map[Status]map[Status]bool{
	Open:       {Claimed: true},
	Claimed:    {InProgress: true, Open: true},
	InProgress: {Done: true, Blocked: true},
	Blocked:    {InProgress: true},
	Done:       {},
}

func canTransition(from, to Status) bool {
	return allowedTransitions[from][to]
}

// find locates a task by ID anywhere in the tree, returning a pointer into
// the tree for in-place mutation.
func find(tasks []Task, id string) *Task {
	for i := range tasks {
		if tasks[i].ID == id {
			return &tasks[i]
		}
		if found := find(tasks[i].Subtasks, id); found != nil {
			return found
		}
	}
	return nil
}
