package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kaselby/aleph/pkg/protocol"
)

// toolDescriptionsMarker is the placeholder ALEPH.md carries for the
// rendered tools/ listing (spec §6).
const toolDescriptionsMarker = "{{TOOL_DESCRIPTIONS}}"

// BuildSystemPrompt reads ALEPH.md and substitutes toolDescriptionsMarker
// with a rendering of every parseable frontmatter block under tools/, in
// name order. A tools/ script that fails to parse is skipped rather than
// failing the whole prompt — the same tolerant-of-one-bad-file posture the
// inbox and channel stores take toward their own on-disk records.
func BuildSystemPrompt(c *Config) (string, error) {
	raw, err := os.ReadFile(c.SystemPromptPath())
	if err != nil {
		return "", fmt.Errorf("config: read system prompt: %w", err)
	}

	tools, err := listToolFrontmatter(c.Tools())
	if err != nil {
		return "", fmt.Errorf("config: list tool descriptions: %w", err)
	}

	return strings.Replace(string(raw), toolDescriptionsMarker, renderToolDescriptions(tools), 1), nil
}

func listToolFrontmatter(dir string) ([]protocol.ToolFrontmatter, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []protocol.ToolFrontmatter
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		fm, err := protocol.ParseToolFrontmatter(raw)
		if err != nil {
			continue // malformed tool script frontmatter; skip rather than fail the prompt
		}
		out = append(out, fm)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func renderToolDescriptions(tools []protocol.ToolFrontmatter) string {
	if len(tools) == 0 {
		return "(no tools installed)"
	}
	var b strings.Builder
	for _, t := range tools {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
		for _, arg := range t.Arguments {
			req := ""
			if arg.Required {
				req = ", required"
			}
			fmt.Fprintf(&b, "    %s%s: %s\n", arg.Name, req, arg.Description)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
