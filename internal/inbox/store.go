package inbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/kaselby/aleph/internal/alephfs"
)

// Store is the inbox directory tree rooted at root (typically
// $ALEPH_HOME/inbox). It has no in-memory index; every operation reads the
// filesystem directly, which is what lets concurrent deliveries from other
// processes show up without any coordination beyond the filesystem itself.
type Store struct {
	root   string
	gen    *alephfs.IDGenerator
	logger *slog.Logger
}

// New returns a Store rooted at root. root is created on first delivery if
// missing, not here.
func New(root string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{root: root, gen: alephfs.NewIDGenerator(), logger: logger}
}

// Root returns the directory this Store is rooted at, for callers (like
// the dispatcher) that need to watch it directly.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) dir(recipient string) string {
	return filepath.Join(s.root, recipient)
}

// quarantineDir places quarantined files under
// <aleph-home>/quarantine/inbox/<recipient>, matching the fixed
// quarantine layout used across every component's protocol-error path
// rather than nesting it inside the live inbox directory itself.
func (s *Store) quarantineDir(recipient string) string {
	return filepath.Join(filepath.Dir(s.root), "quarantine", "inbox", recipient)
}

// Deliver writes message into recipient's inbox and returns its allocated
// message ID. No lock is needed: the ULID makes the filename unique, so
// concurrent deliveries never collide (invariants 1 and 7).
func (s *Store) Deliver(recipient string, hdr Header, body string) (string, error) {
	hdr.MessageID = s.gen.NewString()
	if hdr.Timestamp.IsZero() {
		hdr.Timestamp = time.Now().UTC()
	}
	if err := validateHeader(hdr); err != nil {
		return "", fmt.Errorf("inbox: deliver: %w", err)
	}

	msg := Message{Header: hdr, Body: body}
	raw, err := msg.Encode()
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir(recipient), hdr.MessageID+".md")
	if err := alephfs.AtomicWrite(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("inbox: deliver: %w", err)
	}
	return hdr.MessageID, nil
}

// Summary is the projection list_unread returns — enough to decide whether
// a message is worth reading without opening its body.
type Summary struct {
	ID        string
	From      string
	Summary   string
	Priority  Priority
	Timestamp time.Time
}

// ListUnread returns every message in recipient's inbox that has no
// ".read" sidecar, sorted by priority descending then timestamp ascending
// (invariant 5). Files that fail to parse are quarantined and skipped
// rather than aborting the whole listing (protocol-error handling, §7).
func (s *Store) ListUnread(recipient string) ([]Summary, error) {
	entries, err := os.ReadDir(s.dir(recipient))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("inbox: list_unread: %w", err)
	}

	var out []Summary
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".md") {
			continue
		}
		id := strings.TrimSuffix(name, ".md")
		if s.isRead(recipient, id) {
			continue
		}

		path := filepath.Join(s.dir(recipient), name)
		raw, err := os.ReadFile(path)
		if err != nil {
			continue // vanished between ReadDir and ReadFile; not our problem
		}
		msg, err := Decode(path, raw)
		if err != nil {
			s.quarantine(recipient, name, raw, err)
			continue
		}

		out = append(out, Summary{
			ID:        msg.MessageID,
			From:      msg.From,
			Summary:   msg.Summary,
			Priority:  msg.Priority,
			Timestamp: msg.Timestamp,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if priorityRank[out[i].Priority] != priorityRank[out[j].Priority] {
			return priorityRank[out[i].Priority] > priorityRank[out[j].Priority]
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (s *Store) isRead(recipient, id string) bool {
	_, err := os.Stat(filepath.Join(s.dir(recipient), id+".read"))
	return err == nil
}

// MarkRead creates the ".read" sidecar for messageID. Idempotent: creating
// a sidecar that already exists is not an error.
func (s *Store) MarkRead(recipient, messageID string) error {
	path := filepath.Join(s.dir(recipient), messageID+".read")
	if err := alephfs.AtomicWrite(path, []byte(time.Now().UTC().Format(time.RFC3339)), 0o644); err != nil {
		return fmt.Errorf("inbox: mark_read: %w", err)
	}
	return nil
}

// PrunePolicy bounds what Prune deletes.
type PrunePolicy struct {
	OlderThan time.Duration // zero means no age bound
	MaxCount  int           // zero means no count bound; otherwise keep at most this many read messages
}

// Prune deletes read messages under root matching policy, archiving each
// one into a rolling inbox/<recipient>/archive.jsonl.zst before removing
// its source file so the forensic trail survives even though the small
// file is gone. Prune takes recipient's inbox lock; Deliver does not, so a
// delivery racing a prune is simply eventually consistent — exactly the
// contract the spec calls for.
func (s *Store) Prune(recipient string, policy PrunePolicy) (int, error) {
	lock := alephfs.NewLock(filepath.Join(s.dir(recipient), ".prune"))
	if err := lock.Exclusive(context.Background(), 5*time.Second); err != nil {
		return 0, fmt.Errorf("inbox: prune: %w", err)
	}
	defer lock.Unlock()

	entries, err := os.ReadDir(s.dir(recipient))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("inbox: prune: %w", err)
	}

	var read []pruneCandidate
	now := time.Now()

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".md") {
			continue
		}
		id := strings.TrimSuffix(name, ".md")
		if !s.isRead(recipient, id) {
			continue
		}
		path := filepath.Join(s.dir(recipient), name)
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		msg, err := Decode(path, raw)
		if err != nil {
			continue
		}
		read = append(read, pruneCandidate{id: id, raw: raw, msg: msg})
	}

	sort.Slice(read, func(i, j int) bool { return read[i].msg.Timestamp.Before(read[j].msg.Timestamp) })

	var toDelete []pruneCandidate
	for _, c := range read {
		if policy.OlderThan > 0 && now.Sub(c.msg.Timestamp) >= policy.OlderThan {
			toDelete = append(toDelete, c)
		}
	}
	if policy.MaxCount > 0 && len(read) > policy.MaxCount {
		excess := len(read) - policy.MaxCount
		seen := make(map[string]bool, len(toDelete))
		for _, c := range toDelete {
			seen[c.id] = true
		}
		for _, c := range read[:excess] {
			if !seen[c.id] {
				toDelete = append(toDelete, c)
				seen[c.id] = true
			}
		}
	}

	if len(toDelete) == 0 {
		return 0, nil
	}

	if err := s.archive(recipient, toDelete); err != nil {
		return 0, fmt.Errorf("inbox: prune: archive: %w", err)
	}

	for _, c := range toDelete {
		os.Remove(filepath.Join(s.dir(recipient), c.id+".md"))
		os.Remove(filepath.Join(s.dir(recipient), c.id+".read"))
	}
	return len(toDelete), nil
}

type pruneCandidate struct {
	id  string
	raw []byte
	msg Message
}

type archiveRecord struct {
	Header  Header `json:"header"`
	Body    string `json:"body"`
	Removed string `json:"removed_at"`
}

func (s *Store) archive(recipient string, pruned []pruneCandidate) error {
	path := filepath.Join(s.dir(recipient), "archive.jsonl.zst")

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	var plain bytes.Buffer
	if len(existing) > 0 {
		dec, err := zstd.NewReader(bytes.NewReader(existing))
		if err != nil {
			return err
		}
		if _, err := plain.ReadFrom(dec); err != nil {
			dec.Close()
			return err
		}
		dec.Close()
	}

	for _, c := range pruned {
		rec := archiveRecord{Header: c.msg.Header, Body: c.msg.Body, Removed: time.Now().UTC().Format(time.RFC3339)}
		line, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		plain.Write(line)
		plain.WriteByte('\n')
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return err
	}
	defer enc.Close()
	compressed := enc.EncodeAll(plain.Bytes(), nil)

	return alephfs.AtomicWrite(path, compressed, 0o644)
}

func (s *Store) quarantine(recipient, name string, raw []byte, cause error) {
	qdir := s.quarantineDir(recipient)
	if err := os.MkdirAll(qdir, 0o755); err != nil {
		s.logger.Error("inbox: cannot create quarantine dir", "recipient", recipient, "error", err)
		return
	}
	dst := filepath.Join(qdir, name)
	if err := alephfs.AtomicWrite(dst, raw, 0o644); err != nil {
		s.logger.Error("inbox: failed to quarantine message", "recipient", recipient, "file", name, "error", err)
		return
	}
	os.Remove(filepath.Join(s.dir(recipient), name))
	s.logger.Warn("inbox: quarantined unparseable message", "recipient", recipient, "file", name, "cause", cause)
}
