// Package cmd is the aleph binary's cobra CLI surface: the single
// interactive-session entrypoint plus the `hook` subcommand the wrapped
// runtime invokes as an external command for PreToolUse/PostToolUse/
// SessionStart/Stop. Trimmed from the teacher's dozen subcommands
// (onboarding wizard, Postgres migration, multi-tenant gateway) to the
// surface spec §6 actually names.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kaselby/aleph/internal/permission"
)

// Exit codes per spec §6: 0 clean, 1 user error, 2 internal error.
const (
	ExitClean     = 0
	ExitUserError = 1
	ExitInternal  = 2
)

var (
	flagID        string
	flagPrompt    string
	flagProject   string
	flagParent    string
	flagDepth     int
	flagMode      string
	flagEphemeral bool
	flagDetach    bool
)

var rootCmd = &cobra.Command{
	Use:   "aleph",
	Short: "Aleph — a persistent, multi-agent coordination harness",
	Long: `Aleph wraps a third-party conversational-agent runtime to provide a
persistent, multi-agent personal-assistant substrate: per-recipient
inboxes, channel pub/sub, a permission arbiter, a shared task board, and
subagent spawning over a common filesystem home directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&flagID, "id", "", "agent id (default: generated aleph-<8-hex>)")
	rootCmd.Flags().StringVar(&flagPrompt, "prompt", "", "initial prompt delivered as the first user-turn")
	rootCmd.Flags().StringVar(&flagProject, "project", ".", "project root (where TODO.yml lives)")
	rootCmd.Flags().StringVar(&flagParent, "parent", "", "parent agent id, set by the spawner for subagents")
	rootCmd.Flags().IntVar(&flagDepth, "depth", 0, "subagent nesting depth, set by the spawner")
	rootCmd.Flags().StringVar(&flagMode, "mode", string(permission.Default), "permission mode: safe|default|yolo")
	rootCmd.Flags().BoolVar(&flagEphemeral, "ephemeral", false, "skip session summary and persistent memory writes")
	rootCmd.Flags().BoolVar(&flagDetach, "detach", false, "accepted for compatibility; the session command does not read it")

	rootCmd.AddCommand(hookCmd())
	rootCmd.AddCommand(toolCmd())
	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("aleph dev")
		},
	}
}

// Execute runs the root cobra command, translating errors into the exit
// codes spec §6 names: a flag parse error from cobra, or a *userError
// returned from RunE, is a user error (1); any other error, including
// cobra's positional-argument checks, is an internal error (2).
func Execute() int {
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &userError{msg: err.Error()}
	})
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "aleph:", err)
		if isUserError(err) {
			return ExitUserError
		}
		return ExitInternal
	}
	return ExitClean
}

func isUserError(err error) bool {
	_, ok := err.(*userError)
	return ok
}

// userError marks an error that should exit 1 rather than 2 — invalid
// flags, an unknown mode string, a missing project path — as opposed to
// a failure inside the coordination fabric itself.
type userError struct{ msg string }

func (e *userError) Error() string { return e.msg }

func newUserError(format string, args ...any) error {
	return &userError{msg: fmt.Sprintf(format, args...)}
}
