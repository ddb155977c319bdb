// Package cli provides the command-line interface for Claw Manager.
// Without a subcommand it runs the tray; every lifecycle operation is also
// available from the terminal for scripting.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yllada/claw-manager/common"
	"github.com/yllada/claw-manager/config"
)

// BuildInfo is injected by main from ldflags.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// app carries global flags and the lazily built runtime.
type app struct {
	info       BuildInfo
	configPath string
	verbose    bool

	rt *Runtime
}

// runtime loads settings, initializes logging and wires the supervisor.
// quiet keeps log lines off stdout unless --verbose was given. Callers
// defer close.
func (a *app) runtime(quiet bool) (*Runtime, error) {
	if a.rt != nil {
		return a.rt, nil
	}

	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.LoadFrom(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		if cfg == nil {
			return nil, fmt.Errorf("%w: %v", common.ErrConfigLoad, err)
		}
		// Defaults could not be written back; keep going with them.
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	level := common.ParseLogLevel(cfg.LogLevel)
	if a.verbose {
		level = common.LevelDebug
	}
	if err := common.InitLogger(common.LogConfig{
		Level:      level,
		EnableFile: true,
		Quiet:      quiet && !a.verbose,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not initialize file logging: %v\n", err)
	}

	a.rt = newRuntime(cfg, runtimeOptions{})
	return a.rt, nil
}

func (a *app) close() {
	if a.rt != nil {
		if err := a.rt.Close(); err != nil {
			common.LogDebug("Closing runtime: %v", err)
		}
		a.rt = nil
	}
	common.CloseLogger()
}

// BuildRootCmd creates the root command with all subcommands attached.
func BuildRootCmd(info BuildInfo) *cobra.Command {
	a := &app{info: info}

	rootCmd := &cobra.Command{
		Use:   "claw-manager",
		Short: "Claw Manager - supervise the OpenClaw gateway",
		Long: `Claw Manager starts, stops and watches a local OpenClaw gateway.

Run without a subcommand to open the system tray. The lifecycle commands
(start, stop, restart, status) work the same from a terminal.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", info.Version, info.Commit, info.Date),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTray(cmd.Context(), false)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "",
		"Path to the manager settings file (default ~/.config/claw-manager/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false,
		"Enable verbose logging")

	rootCmd.AddCommand(
		buildTrayCmd(a),
		buildStartCmd(a),
		buildStopCmd(a),
		buildRestartCmd(a),
		buildStatusCmd(a),
		buildWatchCmd(a),
		buildAgentCmd(a),
		buildLogsCmd(a),
		buildConfigCmd(a),
		buildOpenCmd(a),
		buildModelsCmd(a),
		buildSessionsCmd(a),
	)
	return rootCmd
}

// Execute runs the command tree and returns the process exit code.
// SIGINT and SIGTERM cancel the command context.
func Execute(info BuildInfo) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := BuildRootCmd(info).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
