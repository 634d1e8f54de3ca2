// Package protocol defines the wire types shared with any external UI
// process: the terminal UI subscribes to permission requests and
// resolves them, and reads the tools/ directory's frontmatter to render
// a tool picker. Nothing in this package touches the filesystem beyond
// parsing bytes already read by the caller — the UI's rendering/styling
// engine itself is explicitly out of scope (spec §1).
package protocol

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProtocolVersion identifies the wire contract version an external UI
// process should negotiate against, mirroring the teacher's own
// pkg/protocol.ProtocolVersion constant.
const ProtocolVersion = 1

// ToolFrontmatter is the YAML header every file under tools/ carries
// (spec §6: "each with a YAML frontmatter block (fields: name,
// description, arguments)").
type ToolFrontmatter struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Arguments   []ToolArgument `yaml:"arguments,omitempty"`
}

// ToolArgument describes one named argument a user tool script accepts.
type ToolArgument struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Required    bool   `yaml:"required,omitempty"`
}

const toolFrontmatterDelim = "---\n"

// ParseToolFrontmatter extracts and parses the YAML frontmatter block
// from a tools/ script file's raw contents. Returns an error if the
// delimiters are missing or the YAML fails to parse — callers in the
// core skip the offending file rather than treat this as fatal,
// per §7's protocol-error handling.
func ParseToolFrontmatter(raw []byte) (ToolFrontmatter, error) {
	s := string(raw)
	if !strings.HasPrefix(s, toolFrontmatterDelim) {
		return ToolFrontmatter{}, fmt.Errorf("protocol: tool script missing frontmatter delimiter")
	}
	rest := s[len(toolFrontmatterDelim):]
	end := strings.Index(rest, toolFrontmatterDelim)
	if end < 0 {
		return ToolFrontmatter{}, fmt.Errorf("protocol: tool script missing closing delimiter")
	}

	var fm ToolFrontmatter
	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		return ToolFrontmatter{}, fmt.Errorf("protocol: parse tool frontmatter: %w", err)
	}
	if fm.Name == "" {
		return ToolFrontmatter{}, fmt.Errorf("protocol: tool frontmatter missing name")
	}
	return fm, nil
}
