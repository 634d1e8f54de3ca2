// Package channels implements named shared topics: append-only
// subscribe/unsubscribe logs folded to current membership, and broadcast
// fan-out through the inbox store.
package channels

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kaselby/aleph/internal/alephfs"
	"github.com/kaselby/aleph/internal/inbox"
)

// Registry is the channel tree rooted at root (typically
// $ALEPH_HOME/channels).
type Registry struct {
	root  string
	inbox *inbox.Store
}

// New returns a Registry rooted at root, delivering broadcasts through ibx.
func New(root string, ibx *inbox.Store) *Registry {
	return &Registry{root: root, inbox: ibx}
}

func (r *Registry) dir(channel string) string {
	return filepath.Join(r.root, channel)
}

func (r *Registry) subscribersPath(channel string) string {
	return filepath.Join(r.dir(channel), "subscribers")
}

func (r *Registry) historyPath(channel string) string {
	return filepath.Join(r.dir(channel), "history.jsonl")
}

const lockTimeout = 5 * time.Second

type subEvent struct {
	agentID string
	sub     bool
}

// Subscribe appends a subscribe event for agentID to channel's subscriber
// log under an exclusive lock. Idempotent: subscribing twice just appends
// twice, which folds to the same membership state.
func (r *Registry) Subscribe(ctx context.Context, agentID, channel string) error {
	return r.appendEvent(ctx, channel, subEvent{agentID: agentID, sub: true})
}

// Unsubscribe appends an unsubscribe event. It takes effect at the next
// fan-out read, not immediately for any in-flight broadcast.
func (r *Registry) Unsubscribe(ctx context.Context, agentID, channel string) error {
	return r.appendEvent(ctx, channel, subEvent{agentID: agentID, sub: false})
}

func (r *Registry) appendEvent(ctx context.Context, channel string, ev subEvent) error {
	if err := os.MkdirAll(r.dir(channel), 0o755); err != nil {
		return fmt.Errorf("channels: mkdir %s: %w", channel, err)
	}

	lock := alephfs.NewLock(r.subscribersPath(channel))
	if err := lock.Exclusive(ctx, lockTimeout); err != nil {
		return fmt.Errorf("channels: subscribe lock %s: %w", channel, err)
	}
	defer lock.Unlock()

	f, err := os.OpenFile(r.subscribersPath(channel), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("channels: open subscribers log: %w", err)
	}
	defer f.Close()

	kind := "subscribe"
	if !ev.sub {
		kind = "unsubscribe"
	}
	line := fmt.Sprintf("%s %s %s\n", time.Now().UTC().Format(time.RFC3339Nano), kind, ev.agentID)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("channels: append subscriber event: %w", err)
	}
	return f.Sync()
}

// Members folds the subscriber log into its current membership set, under
// a shared (read) lock so a concurrent append is observed consistently.
func (r *Registry) Members(ctx context.Context, channel string) (map[string]bool, error) {
	lock := alephfs.NewLock(r.subscribersPath(channel))
	if err := lock.Shared(ctx, lockTimeout); err != nil {
		return nil, fmt.Errorf("channels: members lock %s: %w", channel, err)
	}
	defer lock.Unlock()

	f, err := os.Open(r.subscribersPath(channel))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]bool{}, nil
		}
		return nil, fmt.Errorf("channels: open subscribers log: %w", err)
	}
	defer f.Close()

	members := map[string]bool{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 3 {
			continue // malformed line; ignore rather than abort the whole fold
		}
		kind, agentID := fields[1], fields[2]
		switch kind {
		case "subscribe":
			members[agentID] = true
		case "unsubscribe":
			delete(members, agentID)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("channels: scan subscribers log: %w", err)
	}
	return members, nil
}
