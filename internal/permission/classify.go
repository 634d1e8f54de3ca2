// Package permission implements the PreToolUse arbiter: classifying tool
// calls, consulting the active mode, synthesising diffs for edits, and
// routing approval requests through a single-slot sync point to the UI.
package permission

import "strings"

// Classification is the tool-name bucket a PreToolUse event falls into.
type Classification string

const (
	Read  Classification = "read"
	Edit  Classification = "edit"
	Bash  Classification = "bash"
	Web   Classification = "web"
	Other Classification = "other"
)

// readTools, editTools, bashTools and webTools enumerate the harness's
// built-in tool names per bucket. An unrecognised tool name classifies as
// Other, which every mode treats the same as Edit (requires approval
// outside yolo) since an unknown tool's blast radius is unknown.
var (
	readTools = map[string]bool{
		"read_file": true, "list_dir": true, "glob": true, "grep": true, "stat": true,
	}
	editTools = map[string]bool{
		"write_file": true, "edit_file": true, "delete_file": true, "move_file": true,
	}
	bashTools = map[string]bool{
		"bash": true, "shell": true, "run_command": true,
	}
	webTools = map[string]bool{
		"web_fetch": true, "http_request": true, "web_search": true,
	}
)

// Classify buckets toolName per the fixed tool-name tables above.
func Classify(toolName string) Classification {
	name := strings.ToLower(toolName)
	switch {
	case readTools[name]:
		return Read
	case editTools[name]:
		return Edit
	case bashTools[name]:
		return Bash
	case webTools[name]:
		return Web
	default:
		return Other
	}
}
