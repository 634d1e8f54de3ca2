package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kaselby/aleph/internal/config"
	"github.com/kaselby/aleph/internal/ipc"
	"github.com/kaselby/aleph/internal/toolrpc"
)

// toolCmd implements `aleph tool <name> [key=value ...]`, the body of
// every generated wrapper script under tools/ (spec §5): parse its own
// frontmatter-declared arguments into key=value pairs, dial the running
// agent's tool-RPC socket, and print the result as JSON.
func toolCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tool <name> [key=value ...]",
		Short: "Invoke an agent-facing tool (send_message, broadcast, claim_task, ...) against the running agent",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTool(cmd, args[0], args[1:])
		},
	}
}

func runTool(cmd *cobra.Command, name string, kvArgs []string) error {
	agentID := os.Getenv("ALEPH_AGENT_ID")
	if agentID == "" {
		return newUserError("ALEPH_AGENT_ID is not set; tool must run as a child of an aleph session")
	}
	home := config.ResolveHome()

	parsed := map[string]string{}
	for _, kv := range kvArgs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return newUserError("malformed tool argument %q, want key=value", kv)
		}
		parsed[k] = v
	}

	resp, err := ipc.DispatchTool(home, agentID, toolrpc.Request{Tool: name, Args: parsed})
	if err != nil {
		return fmt.Errorf("tool: dispatch: %w", err)
	}
	if resp.Error != "" {
		return fmt.Errorf("tool: %s", resp.Error)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	return enc.Encode(resp)
}
