package cmd

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/kaselby/aleph/internal/channels"
	"github.com/kaselby/aleph/internal/config"
	"github.com/kaselby/aleph/internal/dispatch"
	"github.com/kaselby/aleph/internal/hooks"
	"github.com/kaselby/aleph/internal/inbox"
	"github.com/kaselby/aleph/internal/ipc"
	"github.com/kaselby/aleph/internal/permission"
	"github.com/kaselby/aleph/internal/registry"
	"github.com/kaselby/aleph/internal/runtime"
	"github.com/kaselby/aleph/internal/session"
	"github.com/kaselby/aleph/internal/taskboard"
	"github.com/kaselby/aleph/internal/toolrpc"
	"github.com/kaselby/aleph/internal/tracing"
)

// runtimeCommandEnv names the environment variable that overrides the
// wrapped agent runtime binary (default "aleph-runtime"). The real binary
// is an opaque, separately-installed dependency (spec §1 non-goals); the
// harness only needs its name and args, overridable for testing or an
// alternate runtime build.
const runtimeCommandEnv = "ALEPH_RUNTIME_CMD"

func defaultRuntimeCommand() string {
	if v := os.Getenv(runtimeCommandEnv); v != "" {
		return v
	}
	return "aleph-runtime"
}

// runSession is the body of the root command: it resolves configuration,
// allocates or accepts an AgentID, wires every component named in spec
// §2's table around that one agent, and runs until interrupted.
func runSession(ctx context.Context) error {
	mode := permission.Mode(flagMode)
	switch mode {
	case permission.Safe, permission.Default, permission.Yolo:
	default:
		return newUserError("invalid --mode %q: must be safe, default, or yolo", flagMode)
	}

	cfg := config.Default()
	logger := newLogger(cfg)

	agentID := flagID
	if agentID == "" {
		var b [4]byte
		if _, err := rand.Read(b[:]); err != nil {
			return fmt.Errorf("generate agent id: %w", err)
		}
		agentID = "aleph-" + hex.EncodeToString(b[:])
	}
	os.Setenv("ALEPH_AGENT_ID", agentID)

	projectPath, err := filepath.Abs(flagProject)
	if err != nil {
		return newUserError("resolve --project %q: %v", flagProject, err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	shutdownTracing, err := tracing.Setup(ctx, cfg.TracingEndpoint)
	if err != nil {
		return fmt.Errorf("start tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("session: tracing shutdown failed", "error", err)
		}
	}()

	bus := hooks.NewBus(logger)
	ibx := inbox.New(cfg.Inbox(), logger)
	chReg := channels.New(cfg.Channels(), ibx)
	reg := registry.New(cfg.Registry())
	mem := session.New(cfg.Memory())
	board := taskboard.New(filepath.Join(projectPath, "TODO.yml"))

	arbiter := permission.NewArbiter(mode)
	bus.Register(hooks.PreToolUse, func(_ context.Context, ev hooks.Event) (hooks.Decision, error) {
		allowed, reason, err := arbiter.Evaluate(ctx, ev.AgentID, ev.ToolName, ev.Arguments, "")
		if err != nil {
			return hooks.Decision{}, err
		}
		if allowed {
			return hooks.Decision{Permission: hooks.Allow}, nil
		}
		return hooks.Decision{Permission: hooks.Deny, Message: reason}, nil
	})
	bus.Register(hooks.Stop, func(_ context.Context, ev hooks.Event) (hooks.Decision, error) {
		unread, err := ibx.ListUnread(ev.AgentID)
		if err != nil {
			return hooks.Decision{}, fmt.Errorf("stop handler: list unread: %w", err)
		}
		if len(unread) == 0 {
			return hooks.Decision{}, nil
		}
		return hooks.Decision{
			ForceContinue:     true,
			AdditionalContext: fmt.Sprintf("%d unread message(s) waiting in your inbox; check them before ending your turn.", len(unread)),
		}, nil
	})
	if cfg.ReminderCron != "" {
		reminder, err := hooks.NewReminderHandler(cfg.ReminderCron, cfg.ReminderText)
		if err != nil {
			logger.Warn("session: reminder hook disabled", "error", err)
		} else {
			bus.Register(hooks.Stop, reminder.Handle)
		}
	}

	stateTracker := dispatch.NewStateTracker()

	startedAt := time.Now().UTC()
	rec := registry.Record{
		AgentID:       agentID,
		PID:           os.Getpid(),
		ParentID:      flagParent,
		Depth:         flagDepth,
		ProjectPath:   projectPath,
		Mode:          registry.Mode(mode),
		Ephemeral:     flagEphemeral,
		StartedAt:     startedAt,
		LastHeartbeat: startedAt,
	}
	if err := reg.Write(rec); err != nil {
		return fmt.Errorf("write registry record: %w", err)
	}
	defer reg.Remove(agentID)

	ipcServer, err := ipc.Listen(cfg.Home, agentID, bus, logger)
	if err != nil {
		return fmt.Errorf("start control socket: %w", err)
	}
	defer ipcServer.Close()
	go func() {
		if err := ipcServer.Serve(ctx); err != nil {
			logger.Error("ipc: serve failed", "error", err)
		}
	}()

	toolRouter := toolrpc.NewRouter(ibx, chReg, board)
	toolServer, err := ipc.ListenTools(cfg.Home, agentID, toolRouter, logger)
	if err != nil {
		return fmt.Errorf("start tool socket: %w", err)
	}
	defer toolServer.Close()
	go func() {
		if err := toolServer.Serve(ctx); err != nil {
			logger.Error("ipc: tool serve failed", "error", err)
		}
	}()

	// Spec §4.9 startup injects three distinct things: the handoff left by
	// the ending agent, a recap of the most recent session summary, and
	// the hand-maintained persistent context in memory/context.md.
	handoff, err := mem.ReadHandoff()
	if err != nil {
		logger.Warn("session: failed to read handoff", "error", err)
	}
	summaryRecap, err := mem.ReadLatestSessionSummary()
	if err != nil {
		logger.Warn("session: failed to read latest session summary", "error", err)
	}
	persistentContext, err := mem.ReadContext()
	if err != nil {
		logger.Warn("session: failed to read context", "error", err)
	}
	systemPrompt, err := config.BuildSystemPrompt(cfg)
	if err != nil {
		logger.Warn("session: failed to build system prompt", "error", err)
	}
	systemContext := joinNonEmpty(systemPrompt, persistentContext)

	rt, err := runtime.Start(ctx, defaultRuntimeCommand(), runtimeArgs(flagPrompt, handoff, systemContext, summaryRecap), logger)
	if err != nil {
		return fmt.Errorf("start wrapped runtime: %w", err)
	}
	defer rt.Close()

	dispatcher := dispatch.New(ibx, bus, stateTracker, rt, logger)
	go dispatcher.WatchInbox(ctx, agentID)
	go session.HeartbeatLoop(ctx, reg, agentID, cfg.HeartbeatInterval)

	orch := session.NewOrchestrator(agentID, rt, stateTracker, dispatcher, reg, logger)
	runErr := orch.Run(ctx)

	if !flagEphemeral {
		if err := session.EndSession(context.Background(), mem, rt, agentID, projectPath, cfg.Home, startedAt); err != nil {
			logger.Error("session: end-of-session handling failed", "error", err)
		}
	}
	arbiter.Interrupt()

	if runErr != nil && ctx.Err() == nil {
		// the stream ended for a reason other than our own shutdown
		return fmt.Errorf("runtime event stream ended: %w", runErr)
	}
	return nil
}

func runtimeArgs(prompt, handoff, systemContext, recap string) []string {
	args := []string{"--prompt", prompt}
	if ctx := joinNonEmpty(handoff, systemContext); ctx != "" {
		args = append(args, "--system-context", ctx)
	}
	if recap != "" {
		args = append(args, "--recap", recap)
	}
	return args
}

// joinNonEmpty concatenates its non-empty arguments with a blank line,
// so a missing handoff/context/system-prompt piece doesn't leave stray
// separators in the assembled text.
func joinNonEmpty(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}

func newLogger(cfg *config.Config) *slog.Logger {
	if err := os.MkdirAll(cfg.Logs(), 0o755); err != nil {
		return slog.Default()
	}
	f, err := os.OpenFile(filepath.Join(cfg.Logs(), "aleph.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return slog.Default()
	}
	return slog.New(slog.NewJSONHandler(f, nil))
}
