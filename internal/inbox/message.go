// Package inbox implements the per-agent mail directories: delivery,
// unread listing, read-marking, and pruning. Every message is a single
// YAML-frontmatter + markdown file living under inbox/<recipient>/, so the
// directory listing itself is always the ground truth — there is no
// separate index to fall out of sync with it.
package inbox

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Priority is one of low/normal/high. Zero value is "" and must never be
// used directly — Header.Priority should always be set explicitly by the
// sender.
type Priority string

const (
	Low    Priority = "low"
	Normal Priority = "normal"
	High   Priority = "high"
)

// priorityRank orders priorities for list_unread's high-before-normal-
// before-low sort; higher rank sorts first.
var priorityRank = map[Priority]int{High: 2, Normal: 1, Low: 0}

// Header is a message's frontmatter. Exactly one of To/Channel must be set.
type Header struct {
	From      string    `yaml:"from"`
	To        string    `yaml:"to,omitempty"`
	Channel   string    `yaml:"channel,omitempty"`
	Summary   string    `yaml:"summary"`
	Priority  Priority  `yaml:"priority"`
	Timestamp time.Time `yaml:"timestamp"`
	MessageID string    `yaml:"message_id"`
}

// Message is a full inbox entry: header plus markdown body.
type Message struct {
	Header
	Body string
}

const frontmatterDelim = "---\n"

// Encode renders a Message as its on-disk representation: a YAML
// frontmatter block delimited by "---" lines, followed by the markdown
// body verbatim.
func (m Message) Encode() ([]byte, error) {
	fm, err := yaml.Marshal(m.Header)
	if err != nil {
		return nil, fmt.Errorf("inbox: marshal frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(frontmatterDelim)
	buf.Write(fm)
	buf.WriteString(frontmatterDelim)
	buf.WriteString(m.Body)
	return buf.Bytes(), nil
}

// ErrBadFrontmatter marks a parse failure as a protocol error (per the
// spec's error taxonomy): callers should quarantine the file and move on
// rather than treat it as fatal.
type ErrBadFrontmatter struct {
	Path   string
	Reason string
}

func (e *ErrBadFrontmatter) Error() string {
	return fmt.Sprintf("inbox: bad frontmatter in %s: %s", e.Path, e.Reason)
}

// Decode parses a message file's raw bytes. Returns *ErrBadFrontmatter for
// any structurally invalid input (missing delimiters, unparsable YAML,
// missing required field, both/neither of To and Channel set).
func Decode(path string, raw []byte) (Message, error) {
	s := string(raw)
	if !strings.HasPrefix(s, frontmatterDelim) {
		return Message{}, &ErrBadFrontmatter{Path: path, Reason: "missing opening delimiter"}
	}
	rest := s[len(frontmatterDelim):]
	end := strings.Index(rest, frontmatterDelim)
	if end < 0 {
		return Message{}, &ErrBadFrontmatter{Path: path, Reason: "missing closing delimiter"}
	}

	var hdr Header
	if err := yaml.Unmarshal([]byte(rest[:end]), &hdr); err != nil {
		return Message{}, &ErrBadFrontmatter{Path: path, Reason: err.Error()}
	}

	if err := validateHeader(hdr); err != nil {
		return Message{}, &ErrBadFrontmatter{Path: path, Reason: err.Error()}
	}

	body := rest[end+len(frontmatterDelim):]
	body = strings.TrimPrefix(body, "\n")

	return Message{Header: hdr, Body: body}, nil
}

func validateHeader(h Header) error {
	if h.From == "" {
		return fmt.Errorf("missing from")
	}
	if h.MessageID == "" {
		return fmt.Errorf("missing message_id")
	}
	if (h.To == "") == (h.Channel == "") {
		return fmt.Errorf("exactly one of to/channel must be set")
	}
	switch h.Priority {
	case Low, Normal, High:
	default:
		return fmt.Errorf("invalid priority %q", h.Priority)
	}
	return nil
}
