package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"reelsub/internal/api"
	"reelsub/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var component string
	var projectID string
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			client, err := logs.NewStreamClient(cfg.Paths.APIBind, cfg.Paths.APIToken)
			if err != nil {
				return fmt.Errorf("log api: %w", err)
			}
			query := logs.StreamQuery{Limit: lines, Tail: true, Component: component, ProjectID: projectID}
			batch, err := client.Fetch(cmd.Context(), query)
			if logs.IsAPIUnavailable(err) {
				if follow {
					return errors.New("daemon is not running; follow mode needs the daemon API")
				}
				return printLogFile(out, logs.CurrentLogPath(cfg.Paths.LogDir), lines)
			}
			if err != nil {
				return err
			}
			printLogEvents(out, batch.Events)
			if !follow {
				return nil
			}

			query = logs.StreamQuery{Since: batch.Next, Follow: true, Component: component, ProjectID: projectID}
			for {
				batch, err := client.Fetch(cmd.Context(), query)
				if err != nil {
					if errors.Is(err, context.Canceled) || cmd.Context().Err() != nil {
						return nil
					}
					return err
				}
				printLogEvents(out, batch.Events)
				query.Since = batch.Next
			}
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of recent entries to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new entries")
	cmd.Flags().StringVar(&component, "component", "", "Only show entries from this component")
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "Only show entries for this project")
	return cmd
}

func printLogFile(out io.Writer, path string, limit int) error {
	entries, err := logs.Tail(path, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintf(out, "No log entries at %s\n", path)
		return nil
	}
	for _, line := range entries {
		fmt.Fprintln(out, line)
	}
	return nil
}

func printLogEvents(out io.Writer, events []api.LogEvent) {
	for _, evt := range events {
		fmt.Fprintln(out, formatLogEvent(evt))
	}
}

func formatLogEvent(evt api.LogEvent) string {
	var b strings.Builder
	b.WriteString(evt.Timestamp)
	b.WriteByte(' ')
	b.WriteString(strings.ToUpper(evt.Level))
	if evt.Component != "" {
		fmt.Fprintf(&b, " [%s]", evt.Component)
	}
	b.WriteByte(' ')
	b.WriteString(evt.Message)
	if evt.ProjectID != "" {
		fmt.Fprintf(&b, " project=%s", evt.ProjectID)
	}
	if evt.JobID != "" {
		fmt.Fprintf(&b, " job=%s", evt.JobID)
	}
	keys := make([]string, 0, len(evt.Fields))
	for k := range evt.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, evt.Fields[k])
	}
	return b.String()
}
