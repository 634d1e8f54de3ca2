package hooks

// PostToolUseEnvelope is the JSON-compatible shape returned to the
// runtime after a PostToolUse dispatch: an empty object when no handler
// contributed anything, or a nested hookSpecificOutput carrying the
// concatenated additional context.
type PostToolUseEnvelope struct {
	HookSpecificOutput *hookSpecificOutput `json:"hookSpecificOutput,omitempty"`
}

type hookSpecificOutput struct {
	HookEventName     EventName `json:"hookEventName"`
	AdditionalContext string    `json:"additionalContext,omitempty"`
}

// BuildPostToolUseEnvelope converts an aggregated Decision into the wire
// envelope. Returns the zero-value (empty) envelope when the decision
// contributed nothing.
func BuildPostToolUseEnvelope(d Decision) PostToolUseEnvelope {
	if d.AdditionalContext == "" {
		return PostToolUseEnvelope{}
	}
	return PostToolUseEnvelope{
		HookSpecificOutput: &hookSpecificOutput{
			HookEventName:     PostToolUse,
			AdditionalContext: d.AdditionalContext,
		},
	}
}

// PreToolUseEnvelope is the wire shape for a PreToolUse response: a
// permission decision plus an optional reason, and any additional context
// a handler wants echoed back.
type PreToolUseEnvelope struct {
	PermissionDecision PermissionDecision `json:"permissionDecision,omitempty"`
	Reason             string             `json:"reason,omitempty"`
	AdditionalContext  string             `json:"additionalContext,omitempty"`
}

// BuildPreToolUseEnvelope converts an aggregated Decision into the wire
// envelope for a PreToolUse response.
func BuildPreToolUseEnvelope(d Decision) PreToolUseEnvelope {
	return PreToolUseEnvelope{
		PermissionDecision: d.Permission,
		Reason:             d.Message,
		AdditionalContext:  d.AdditionalContext,
	}
}
