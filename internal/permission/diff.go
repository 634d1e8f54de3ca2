package permission

import (
	"fmt"
	"strings"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
	"github.com/mattn/go-runewidth"
)

// maxDiffLineWidth is the terminal column budget a single diff or
// bash-command line is elided to before it's attached to a
// PermissionRequest, since the UI consuming it renders in a fixed-width
// terminal.
const maxDiffLineWidth = 120

// UnifiedDiff computes a unified diff between before and after's contents
// for path, for attaching to an edit PermissionRequest.
func UnifiedDiff(path, before, after string) string {
	edits := myers.ComputeEdits(span.URIFromPath(path), before, after)
	unified := gotextdiff.ToUnified(path, path, before, edits)
	return elideLines(fmt.Sprint(unified))
}

// elideLines truncates each line of s to maxDiffLineWidth display columns
// (accounting for wide runes), appending an ellipsis marker to any line
// that was cut.
func elideLines(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if runewidth.StringWidth(line) > maxDiffLineWidth {
			lines[i] = runewidth.Truncate(line, maxDiffLineWidth-1, "…")
		}
	}
	return strings.Join(lines, "\n")
}

// FormatBashCommand elides a long shell command to the same terminal
// width budget as diff lines.
func FormatBashCommand(cmd string) string {
	return elideLines(cmd)
}
