package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kaselby/aleph/internal/dispatch"
	"github.com/kaselby/aleph/internal/registry"
	"github.com/kaselby/aleph/internal/runtime"
)

func TestOrchestratorTracksBusyIdleFromEventStream(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	script := `printf '{"kind":"tool-use-start","tool_name":"bash"}\n{"kind":"tool-use-complete","tool_name":"bash"}\n{"kind":"turn-end","pending_tool_calls":0}\n'`
	rt, err := runtime.Start(ctx, "/bin/sh", []string{"-c", script}, nil)
	require.NoError(t, err)
	defer rt.Close()

	state := dispatch.NewStateTracker()
	reg := registry.New(t.TempDir())
	o := NewOrchestrator("aleph-aaaaaaaa", rt, state, nil, reg, nil)

	err = o.Run(ctx)
	require.Error(t, err) // EOF once the script's output is exhausted

	require.Equal(t, dispatch.Idle, state.Mode("aleph-aaaaaaaa"))
}
