package channels

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kaselby/aleph/internal/alephfs"
	"github.com/kaselby/aleph/internal/inbox"
)

// historyRetention is the default number of broadcasts history.jsonl keeps
// for late-joiner catch-up, per §4.3.
const historyRetention = 500

// BroadcastResult reports per-recipient delivery outcomes. Partial failure
// never prevents delivery to the other recipients.
type BroadcastResult struct {
	MessageID  string
	Delivered  []string
	Failed     map[string]error
}

// historyEntry is one line of history.jsonl.
type historyEntry struct {
	MessageID string         `json:"message_id"`
	Sender    string         `json:"sender"`
	Summary   string         `json:"summary"`
	Body      string         `json:"body"`
	Priority  inbox.Priority `json:"priority"`
	Timestamp time.Time      `json:"timestamp"`
}

// Broadcast folds the subscriber log to current membership, then delivers
// to every subscriber except sender concurrently via inbox.Deliver. One
// recipient's failure never blocks delivery to the others (errgroup here
// is used purely for fan-out, not for cancellation-on-first-error).
func (r *Registry) Broadcast(ctx context.Context, sender, channel, summary, body string, priority inbox.Priority) (BroadcastResult, error) {
	members, err := r.Members(ctx, channel)
	if err != nil {
		return BroadcastResult{}, err
	}

	var recipients []string
	for agentID := range members {
		if agentID != sender {
			recipients = append(recipients, agentID)
		}
	}

	var (
		g           errgroup.Group
		result      = BroadcastResult{Failed: map[string]error{}}
		deliveredCh = make(chan string, len(recipients))
		failedCh    = make(chan failedDelivery, len(recipients))
	)

	// The broadcast's own id identifies this history.jsonl entry; it does
	// not correspond to any single recipient's inbox filename, since
	// inbox.Deliver mints its own fresh id per recipient.
	messageID := alephfs.NewULID()

	now := time.Now().UTC()
	for _, recipient := range recipients {
		recipient := recipient
		g.Go(func() error {
			_, err := r.inbox.Deliver(recipient, inbox.Header{
				From:      sender,
				Channel:   channel,
				Summary:   summary,
				Priority:  priority,
				Timestamp: now,
			}, body)
			if err != nil {
				failedCh <- failedDelivery{recipient: recipient, err: err}
				return nil // never abort sibling deliveries
			}
			deliveredCh <- recipient
			return nil
		})
	}
	g.Wait()
	close(deliveredCh)
	close(failedCh)

	for recipient := range deliveredCh {
		result.Delivered = append(result.Delivered, recipient)
	}
	for f := range failedCh {
		result.Failed[f.recipient] = f.err
	}
	result.MessageID = messageID

	if err := r.appendHistory(channel, historyEntry{
		MessageID: result.MessageID,
		Sender:    sender,
		Summary:   summary,
		Body:      body,
		Priority:  priority,
		Timestamp: now,
	}); err != nil {
		return result, fmt.Errorf("channels: broadcast: append history: %w", err)
	}

	return result, nil
}

type failedDelivery struct {
	recipient string
	err       error
}

func (r *Registry) appendHistory(channel string, entry historyEntry) error {
	if err := os.MkdirAll(r.dir(channel), 0o755); err != nil {
		return err
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	lock := alephfs.NewLock(r.historyPath(channel))
	if err := lock.Exclusive(context.Background(), lockTimeout); err != nil {
		return err
	}
	defer lock.Unlock()

	f, err := os.OpenFile(r.historyPath(channel), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return r.trimHistory(channel)
}

// trimHistory keeps at most historyRetention trailing lines, rewriting the
// file atomically when it grows past that bound.
func (r *Registry) trimHistory(channel string) error {
	f, err := os.Open(r.historyPath(channel))
	if err != nil {
		return err
	}
	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	f.Close()
	if err := scanner.Err(); err != nil {
		return err
	}

	if len(lines) <= historyRetention {
		return nil
	}

	lines = lines[len(lines)-historyRetention:]
	var buf []byte
	for _, l := range lines {
		buf = append(buf, l...)
		buf = append(buf, '\n')
	}
	return alephfs.AtomicWrite(r.historyPath(channel), buf, 0o644)
}

// History returns the channel's retained broadcast history, oldest first,
// for a late-joining subscriber to catch up on explicit request.
func (r *Registry) History(channel string) ([]historyEntry, error) {
	f, err := os.Open(r.historyPath(channel))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []historyEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry historyEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		out = append(out, entry)
	}
	return out, scanner.Err()
}
