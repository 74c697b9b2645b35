package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelsub/internal/appctx"
	"reelsub/internal/config"
	"reelsub/internal/daemonctl"
	"reelsub/internal/daemonrun"
	"reelsub/internal/deps"
	"reelsub/internal/preflight"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon in the foreground (workers, sweeper, HTTP API)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in logs")
	return cmd
}

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startLogLevel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the reelsub daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(ctx.configValue(), exe, daemonctl.LaunchOptions{
				ConfigPath: ctx.configPath(),
				LogLevel:   startLogLevel,
			}, 10*time.Second)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			switch result.State {
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", result.PID)
			default:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			}
			return nil
		},
	}
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "", "Override logging.level for the daemon")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the reelsub daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			stopped, err := daemonctl.Stop(ctx.configValue(), 15*time.Second)
			if err != nil {
				return err
			}
			if !stopped {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			printSection(stdout, "System Status", systemStatusLines(cmd.Context(), cfg, colorize), colorize)
			printSection(stdout, "Dependencies", dependencyLines(preflight.CheckSystemDeps(cmd.Context(), cfg), colorize), colorize)

			for _, line := range renderSectionHeader("Queue Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			return ctx.withServices(cmd, func(svc *appctx.Services) error {
				stats, err := svc.Queue.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := buildQueueStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(stdout, "Queue is empty")
					return nil
				}
				fmt.Fprint(stdout, renderTable([]string{"State", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

func systemStatusLines(ctx context.Context, cfg *config.Config, colorize bool) []string {
	lines := []string{daemonStatusLine(ctx, cfg, colorize)}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	api := preflight.CheckTranscriptionAPI(checkCtx, cfg.Transcription.BaseURL, cfg.Transcription.APIKey)
	kind := statusOK
	if !api.Passed {
		kind = statusWarn
	}
	lines = append(lines, renderStatusLine(api.Name, kind, api.Detail, colorize))

	for _, result := range preflight.RunAll(ctx, cfg) {
		kind := statusOK
		if !result.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}
	return lines
}

func daemonStatusLine(ctx context.Context, cfg *config.Config, colorize bool) string {
	running, pid, err := daemonctl.ProcessInfo(cfg)
	if err != nil {
		return renderStatusLine("Daemon", statusError, err.Error(), colorize)
	}
	if !running {
		return renderStatusLine("Daemon", statusInfo, "Not running", colorize)
	}
	statusCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	status, err := daemonctl.NewClient(cfg).Status(statusCtx)
	if err != nil {
		return renderStatusLine("Daemon", statusWarn, fmt.Sprintf("pid %d, API unreachable: %v", pid, err), colorize)
	}
	workflow := status.Workflow
	detail := fmt.Sprintf("pid %d, %d/%d workers busy", status.PID, workflow.BusyWorkers, workflow.Workers)
	if workflow.LastError != "" {
		return renderStatusLine("Daemon", statusWarn, detail+", last error: "+workflow.LastError, colorize)
	}
	return renderStatusLine("Daemon", statusOK, detail, colorize)
}

func dependencyLines(statuses []deps.Status, colorize bool) []string {
	lines := make([]string, 0, len(statuses)+1)
	missing := make([]string, 0)
	for _, dep := range statuses {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		if !dep.Optional {
			missing = append(missing, dep.Name)
		}
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing", statusWarn, strings.Join(missing, ", "), colorize))
	}
	return lines
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}
