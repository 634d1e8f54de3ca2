package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kaselby/aleph/internal/config"
	"github.com/kaselby/aleph/internal/hooks"
	"github.com/kaselby/aleph/internal/ipc"
	"github.com/kaselby/aleph/pkg/protocol"
)

// hookInput is what the wrapped runtime writes to stdin for a single hook
// invocation: whatever tool fields apply to it. The event name is not
// part of it; it comes from the command-line argument.
type hookInput struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	Result    string         `json:"result"`
}

// hookCmd implements `aleph hook <event>`, the short-lived external
// command the wrapped runtime shells out to for PreToolUse, PostToolUse,
// SessionStart and Stop (spec §6). It reads the event's tool fields as
// JSON from stdin, dials the running agent's control socket, and prints
// the hook output protocol's JSON envelope to stdout.
func hookCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "hook <event>",
		Short:     "Invoke a lifecycle hook against the running agent's control socket",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"PreToolUse", "PostToolUse", "SessionStart", "Stop"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHook(cmd, hooks.EventName(args[0]))
		},
	}
}

func runHook(cmd *cobra.Command, name hooks.EventName) error {
	switch name {
	case hooks.PreToolUse, hooks.PostToolUse, hooks.SessionStart, hooks.Stop:
	default:
		return newUserError("unknown hook event %q", name)
	}

	agentID := os.Getenv("ALEPH_AGENT_ID")
	if agentID == "" {
		return newUserError("ALEPH_AGENT_ID is not set; hook must run as a child of an aleph session")
	}
	home := config.ResolveHome()

	var in hookInput
	raw, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("hook: read stdin: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &in); err != nil {
			return fmt.Errorf("hook: parse stdin: %w", err)
		}
	}

	decision, err := ipc.Dispatch(home, agentID, hooks.Event{
		Name:      name,
		AgentID:   agentID,
		ToolName:  in.ToolName,
		Arguments: in.Arguments,
		Result:    in.Result,
	})
	if err != nil {
		return fmt.Errorf("hook: dispatch: %w", err)
	}

	return writeHookEnvelope(cmd.OutOrStdout(), name, decision)
}

// writeHookEnvelope renders d as the JSON shape spec §6 names: an empty
// object when a handler has nothing to say, hookSpecificOutput carrying
// additional context for the next turn, and permissionDecision/reason
// when a PreToolUse handler has an opinion. protocol.HookOutputEnvelope
// is the same shape an external UI process (or a future non-Go harness
// variant) would decode, so the CLI and that wire contract never drift
// apart.
func writeHookEnvelope(w io.Writer, name hooks.EventName, d hooks.Decision) error {
	var env protocol.HookOutputEnvelope

	if d.AdditionalContext != "" {
		env.HookSpecificOutput = &protocol.HookSpecificOutput{
			HookEventName:     string(name),
			AdditionalContext: d.AdditionalContext,
		}
	}
	if name == hooks.PreToolUse && d.Permission != "" {
		env.PermissionDecision = string(d.Permission)
		env.Reason = d.Message
	}
	if name == hooks.Stop && d.ForceContinue {
		env.Decision = "block"
		env.Reason = d.AdditionalContext
	}

	enc := json.NewEncoder(w)
	return enc.Encode(env)
}
