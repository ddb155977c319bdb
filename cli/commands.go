package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yllada/claw-manager/common"
	"github.com/yllada/claw-manager/history"
)

// =============================================================================
// Lifecycle Commands
// =============================================================================

func buildTrayCmd(a *app) *cobra.Command {
	var stopOnExit bool
	cmd := &cobra.Command{
		Use:   "tray",
		Short: "Run the system tray (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTray(cmd.Context(), stopOnExit)
		},
	}
	cmd.Flags().BoolVar(&stopOnExit, "stop-on-exit", false,
		"Stop a running gateway when the tray quits")
	return cmd
}

func buildStartCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the gateway and wait until it is healthy",
		Long: `Start the gateway unless it already answers on its health endpoint.

The gateway is launched in its own process group and keeps running after
this command exits. Its output goes to gateway.log in the log directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runLifecycle(cmd.Context(), cmd.OutOrStdout(), opStart)
		},
	}
}

func buildStopCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the gateway, including one started elsewhere",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runLifecycle(cmd.Context(), cmd.OutOrStdout(), opStop)
		},
	}
}

func buildRestartCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Stop the gateway, re-read its config and start it again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runLifecycle(cmd.Context(), cmd.OutOrStdout(), opRestart)
		},
	}
}

func buildStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Probe the gateway and show its state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStatus(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func buildWatchCmd(a *app) *cobra.Command {
	var poll time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Open the terminal dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runWatch(cmd.Context(), poll)
		},
	}
	cmd.Flags().DurationVar(&poll, "poll", 30*time.Second, "Status check interval (0 disables)")
	return cmd
}

// =============================================================================
// Agent Command
// =============================================================================

func buildAgentCmd(a *app) *cobra.Command {
	var (
		session    string
		newSession bool
		timeout    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "agent MESSAGE...",
		Short: "Send one message to the gateway's agent",
		Example: `  claw-manager agent "summarize today's inbox"
  claw-manager agent --new-session "start fresh"
  claw-manager agent --session session-1234 "and then?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if newSession && cmd.Flags().Changed("session") {
				return fmt.Errorf("--session and --new-session are mutually exclusive")
			}
			return a.runAgent(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(),
				strings.Join(args, " "), session, newSession, timeout)
		},
	}
	cmd.Flags().StringVar(&session, "session", common.DefaultSessionID, "Session id to continue")
	cmd.Flags().BoolVar(&newSession, "new-session", false, "Start a new session")
	cmd.Flags().DurationVar(&timeout, "timeout", common.AgentTimeout, "Give up after this long")
	return cmd
}

// =============================================================================
// Logs Command
// =============================================================================

func buildLogsCmd(a *app) *cobra.Command {
	var (
		filter      history.Filter
		gatewayLogs bool
		since       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recorded gateway events",
		Long: `Show supervisor events recorded in the history database.

With --gateway the gateway's own log files (~/.openclaw/logs) are merged in.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}
			return a.runLogs(cmd.Context(), cmd.OutOrStdout(), filter, gatewayLogs)
		},
	}
	cmd.Flags().StringVar(&filter.Level, "level", "", "Only show DEBUG, INFO, WARN or ERROR")
	cmd.Flags().StringVar(&filter.Search, "search", "", "Only show entries containing this text")
	cmd.Flags().IntVar(&filter.Limit, "limit", common.HistoryDefaultLimit, "Maximum entries to show")
	cmd.Flags().DurationVar(&since, "since", 0, "Only show entries newer than this")
	cmd.Flags().BoolVar(&gatewayLogs, "gateway", false, "Include the gateway's own log files")
	return cmd
}

// =============================================================================
// Config Commands
// =============================================================================

func buildConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the gateway settings",
	}
	cmd.AddCommand(buildConfigShowCmd(a), buildConfigSetPortCmd(a), buildConfigSetTokenCmd(a))
	return cmd
}

func buildConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective gateway settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConfigShow(cmd.OutOrStdout())
		},
	}
}

func buildConfigSetPortCmd(a *app) *cobra.Command {
	var restart bool
	cmd := &cobra.Command{
		Use:   "set-port PORT",
		Short: "Change gateway.port in openclaw.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("%w: %q", common.ErrInvalidPort, args[0])
			}
			return a.runSetPort(cmd.Context(), cmd.OutOrStdout(), port, restart)
		},
	}
	cmd.Flags().BoolVar(&restart, "restart", false, "Restart the gateway to apply the change")
	return cmd
}

func buildConfigSetTokenCmd(a *app) *cobra.Command {
	var restart, clearToken bool
	cmd := &cobra.Command{
		Use:   "set-token",
		Short: "Change gateway.auth.token, prompting without echo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSetToken(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), clearToken, restart)
		},
	}
	cmd.Flags().BoolVar(&restart, "restart", false, "Restart the gateway to apply the change")
	cmd.Flags().BoolVar(&clearToken, "clear", false, "Remove the token")
	return cmd
}

// =============================================================================
// Misc Commands
// =============================================================================

func buildOpenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "open web|config",
		Short:     "Open the gateway web UI or its config file",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"web", "config"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runOpen(cmd.OutOrStdout(), args[0])
		},
	}
}

func buildModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "models",
		Aliases: []string{"overview"},
		Short:   "Show configured models and what local providers offer",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runModels(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func buildSessionsCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List saved agent sessions",
		Long: `List the newest agent sessions saved under ~/.openclaw/sessions.

The session the agent command talks to by default is always listed first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSessions(cmd.OutOrStdout(), limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultSessionLimit, "Number of saved sessions to show")
	cmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Delete a saved session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDeleteSession(cmd.OutOrStdout(), args[0])
		},
	})
	return cmd
}
