package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateTrackerStartsIdle(t *testing.T) {
	tr := NewStateTracker()
	require.Equal(t, Idle, tr.Mode("a"))
}

func TestToolCallStartedEntersBusy(t *testing.T) {
	tr := NewStateTracker()
	tr.BeginUserTurn("a")
	tr.ToolCallStarted("a")
	require.Equal(t, Busy, tr.Mode("a"))
}

func TestTurnCompleteReturnsIdleOnlyWhenNoInFlightCalls(t *testing.T) {
	tr := NewStateTracker()
	tr.BeginUserTurn("a")
	tr.ToolCallStarted("a")
	tr.ToolCallStarted("a")
	tr.ToolCallCompleted("a")

	tr.TurnComplete("a")
	require.Equal(t, Busy, tr.Mode("a"), "one tool call still in flight, must stay busy")

	tr.ToolCallCompleted("a")
	tr.TurnComplete("a")
	require.Equal(t, Idle, tr.Mode("a"))
}
