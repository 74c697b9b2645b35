package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelsub/internal/api"
	"reelsub/internal/appctx"
	"reelsub/internal/queue"
)

var queueStateOrder = []queue.State{
	queue.StateQueued,
	queue.StateRunning,
	queue.StateCompleted,
	queue.StateFailed,
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and maintain the job queue",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsClearCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var states []string
	var projectID string
	var limit int
	var jsonOut bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := buildJobFilter(states, projectID, limit)
			if err != nil {
				return err
			}
			return ctx.withServices(cmd, func(svc *appctx.Services) error {
				jobs, err := svc.Queue.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.FromJobs(jobs))
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Kind", "Project", "State", "Attempt", "Updated", "Error"},
					buildJobRows(jobs),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&states, "state", "s", nil, "Filter by state (queued, running, completed, failed)")
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "Filter by project id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum jobs to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func buildJobFilter(states []string, projectID string, limit int) (queue.ListFilter, error) {
	if limit < 0 {
		return queue.ListFilter{}, errors.New("limit must be zero or positive")
	}
	filter := queue.ListFilter{ProjectID: strings.TrimSpace(projectID), Limit: limit}
	for _, raw := range states {
		state := queue.State(strings.ToLower(strings.TrimSpace(raw)))
		if !knownState(state) {
			return queue.ListFilter{}, fmt.Errorf("unknown job state %q", raw)
		}
		filter.States = append(filter.States, state)
	}
	return filter, nil
}

func knownState(state queue.State) bool {
	for _, s := range queueStateOrder {
		if s == state {
			return true
		}
	}
	return false
}

func buildJobRows(jobs []*queue.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		attempt := strconv.Itoa(job.Attempt)
		if job.MaxAttempts > 0 {
			attempt = fmt.Sprintf("%d/%d", job.Attempt, job.MaxAttempts)
		}
		rows = append(rows, []string{
			job.ID,
			string(job.Kind),
			job.ProjectID,
			string(job.State),
			attempt,
			formatLocalTime(job.UpdatedAt),
			truncate(job.ErrorMessage, 48),
		})
	}
	return rows
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show job details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *appctx.Services) error {
				job, err := svc.Queue.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.FromJob(job))
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Job:       %s\n", job.ID)
				fmt.Fprintf(out, "Kind:      %s\n", job.Kind)
				fmt.Fprintf(out, "Project:   %s\n", job.ProjectID)
				fmt.Fprintf(out, "State:     %s\n", job.State)
				fmt.Fprintf(out, "Attempt:   %d of %d\n", job.Attempt, job.MaxAttempts)
				if job.State == queue.StateQueued && job.NotBefore.After(time.Now()) {
					fmt.Fprintf(out, "Retry at:  %s (after %s)\n", formatLocalTime(job.NotBefore), job.LastDelay)
				}
				if job.ErrorMessage != "" {
					fmt.Fprintf(out, "Error:     %s", job.ErrorMessage)
					if job.ErrorKind != "" {
						fmt.Fprintf(out, " [%s]", job.ErrorKind)
					}
					fmt.Fprintln(out)
				}
				if r := job.Result; r != nil {
					fmt.Fprintf(out, "Result:    %s\n", r.Status)
					if r.SegmentsCount > 0 {
						fmt.Fprintf(out, "Segments:  %d (%.1fs)\n", r.SegmentsCount, r.Duration)
					}
					if r.ArtifactURL != "" {
						fmt.Fprintf(out, "Download:  %s\n", r.ArtifactURL)
					}
				}
				fmt.Fprintf(out, "Created:   %s\n", formatLocalTime(job.CreatedAt))
				fmt.Fprintf(out, "Updated:   %s\n", formatLocalTime(job.UpdatedAt))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newJobsClearCommand(ctx *commandContext) *cobra.Command {
	var finished bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove jobs from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !finished {
				return errors.New("nothing to clear; pass --finished to remove completed and failed jobs")
			}
			return ctx.withServices(cmd, func(svc *appctx.Services) error {
				removed, err := svc.Queue.ClearFinished(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d finished job(s)\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&finished, "finished", false, "Remove completed and failed jobs")
	return cmd
}

func buildQueueStatusRows(stats queue.Stats) [][]string {
	rows := make([][]string, 0, len(queueStateOrder))
	for _, state := range queueStateOrder {
		if count := stats[state]; count > 0 {
			rows = append(rows, []string{string(state), strconv.Itoa(count)})
		}
	}
	return rows
}

func truncate(value string, limit int) string {
	value = strings.Join(strings.Fields(value), " ")
	runes := []rune(value)
	if limit <= 0 || len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
