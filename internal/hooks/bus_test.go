package hooks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDispatchConcatenatesContexts(t *testing.T) {
	b := NewBus(nil)
	b.Register(PostToolUse, func(ctx context.Context, ev Event) (Decision, error) {
		return Decision{AdditionalContext: "first"}, nil
	})
	b.Register(PostToolUse, func(ctx context.Context, ev Event) (Decision, error) {
		return Decision{AdditionalContext: "second"}, nil
	})

	d := b.Dispatch(context.Background(), Event{Name: PostToolUse, AgentID: "a"})
	require.Equal(t, "first\n\nsecond", d.AdditionalContext)
}

func TestDispatchFirstNonDeferPermissionWins(t *testing.T) {
	b := NewBus(nil)
	b.Register(PreToolUse, func(ctx context.Context, ev Event) (Decision, error) {
		return Decision{Permission: Defer}, nil
	})
	b.Register(PreToolUse, func(ctx context.Context, ev Event) (Decision, error) {
		return Decision{Permission: Deny, Message: "no"}, nil
	})
	b.Register(PreToolUse, func(ctx context.Context, ev Event) (Decision, error) {
		return Decision{Permission: Allow}, nil
	})

	d := b.Dispatch(context.Background(), Event{Name: PreToolUse, AgentID: "a"})
	require.Equal(t, Deny, d.Permission)
	require.Equal(t, "no", d.Message)
}

func TestDispatchLaterHandlersStillRunAfterPermissionDecided(t *testing.T) {
	b := NewBus(nil)
	ran := false
	b.Register(PreToolUse, func(ctx context.Context, ev Event) (Decision, error) {
		return Decision{Permission: Allow}, nil
	})
	b.Register(PreToolUse, func(ctx context.Context, ev Event) (Decision, error) {
		ran = true
		return Decision{AdditionalContext: "side effect context"}, nil
	})

	d := b.Dispatch(context.Background(), Event{Name: PreToolUse, AgentID: "a"})
	require.True(t, ran)
	require.Equal(t, "side effect context", d.AdditionalContext)
}

func TestDispatchAbortsChainOnHandlerError(t *testing.T) {
	b := NewBus(nil)
	secondRan := false
	b.Register(PostToolUse, func(ctx context.Context, ev Event) (Decision, error) {
		return Decision{AdditionalContext: "ok"}, nil
	})
	b.Register(PostToolUse, func(ctx context.Context, ev Event) (Decision, error) {
		return Decision{}, errors.New("boom")
	})
	b.Register(PostToolUse, func(ctx context.Context, ev Event) (Decision, error) {
		secondRan = true
		return Decision{}, nil
	})

	d := b.Dispatch(context.Background(), Event{Name: PostToolUse, AgentID: "a"})
	require.Equal(t, "ok", d.AdditionalContext)
	require.False(t, secondRan, "chain must abort after a handler error")
}

func TestDispatchSerializesPerAgent(t *testing.T) {
	b := NewBus(nil)
	var mu sync.Mutex
	inFlight := 0
	maxConcurrent := 0

	b.Register(PostToolUse, func(ctx context.Context, ev Event) (Decision, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxConcurrent {
			maxConcurrent = inFlight
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return Decision{}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Dispatch(context.Background(), Event{Name: PostToolUse, AgentID: "same-agent"})
		}()
	}
	wg.Wait()

	require.Equal(t, 1, maxConcurrent, "handlers for the same agent must never run concurrently")
}

func TestDispatchDifferentAgentsRunIndependently(t *testing.T) {
	b := NewBus(nil)
	release := make(chan struct{})
	started := make(chan struct{}, 2)

	b.Register(PostToolUse, func(ctx context.Context, ev Event) (Decision, error) {
		started <- struct{}{}
		<-release
		return Decision{}, nil
	})

	go b.Dispatch(context.Background(), Event{Name: PostToolUse, AgentID: "a"})
	go b.Dispatch(context.Background(), Event{Name: PostToolUse, AgentID: "b"})

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first handler never started")
	}
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("second agent's handler was blocked by the first agent's in-flight handler")
	}
	close(release)
}
