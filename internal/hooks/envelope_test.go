package hooks

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildPostToolUseEnvelopeEmptyWhenNoContext(t *testing.T) {
	env := BuildPostToolUseEnvelope(Decision{})
	require.Nil(t, env.HookSpecificOutput)
}

func TestBuildPostToolUseEnvelopeWrapsContext(t *testing.T) {
	env := BuildPostToolUseEnvelope(Decision{AdditionalContext: "[Message from bob]: hi"})
	require.NotNil(t, env.HookSpecificOutput)
	require.Equal(t, PostToolUse, env.HookSpecificOutput.HookEventName)
	require.Equal(t, "[Message from bob]: hi", env.HookSpecificOutput.AdditionalContext)
}

func TestBuildPreToolUseEnvelope(t *testing.T) {
	env := BuildPreToolUseEnvelope(Decision{Permission: Deny, Message: "blocked"})
	require.Equal(t, Deny, env.PermissionDecision)
	require.Equal(t, "blocked", env.Reason)
}
