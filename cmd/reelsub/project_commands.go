package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelsub/internal/api"
	"reelsub/internal/appctx"
	"reelsub/internal/config"
	"reelsub/internal/dispatch"
	"reelsub/internal/queue"
)

func newProjectCommand(ctx *commandContext) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Register and inspect projects",
	}
	projectCmd.AddCommand(newProjectAddCommand(ctx))
	projectCmd.AddCommand(newProjectListCommand(ctx))
	projectCmd.AddCommand(newProjectShowCommand(ctx))
	projectCmd.AddCommand(newProjectRemoveCommand(ctx))
	return projectCmd
}

func newProjectAddCommand(ctx *commandContext) *cobra.Command {
	var owner string
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "add <video>",
		Short: "Validate a local video and register it as a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			return ctx.withServices(cmd, func(svc *appctx.Services) error {
				project, err := svc.Intake.Register(cmd.Context(), dispatch.Upload{
					Owner:    owner,
					Filename: filepath.Base(path),
					Path:     path,
				})
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.FromProject(project))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered project %s (%s)\n", project.ID, project.MediaFilename)
				fmt.Fprintf(cmd.OutOrStdout(), "Run `reelsub transcribe %s` to generate subtitles\n", project.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Owner the project belongs to")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newProjectListCommand(ctx *commandContext) *cobra.Command {
	var owner string
	var jsonOut bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *appctx.Services) error {
				projects, err := svc.Catalog.ListProjects(cmd.Context(), owner)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.FromProjects(projects))
				}
				out := cmd.OutOrStdout()
				if len(projects) == 0 {
					fmt.Fprintln(out, "No projects")
					return nil
				}
				rows := make([][]string, 0, len(projects))
				for _, p := range projects {
					rows = append(rows, []string{p.ID, p.Owner, string(p.Status), p.MediaFilename, formatLocalTime(p.UpdatedAt)})
				}
				fmt.Fprint(out, renderTable([]string{"ID", "Owner", "Status", "File", "Updated"}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Only list projects for this owner")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newProjectShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show project details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *appctx.Services) error {
				project, err := svc.Catalog.GetProject(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.FromProject(project))
				}
				hasSubtitle, err := svc.Catalog.HasSubtitle(cmd.Context(), project.ID)
				if err != nil {
					return err
				}
				active, err := svc.Queue.ActiveForProject(cmd.Context(), project.ID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Project:   %s\n", project.ID)
				fmt.Fprintf(out, "Owner:     %s\n", project.Owner)
				fmt.Fprintf(out, "Status:    %s\n", project.Status)
				fmt.Fprintf(out, "File:      %s\n", project.MediaFilename)
				fmt.Fprintf(out, "Media:     %s\n", project.MediaPath)
				fmt.Fprintf(out, "Subtitles: %s\n", yesNo(hasSubtitle))
				if project.ExportRef != "" {
					fmt.Fprintf(out, "Export:    %s\n", project.ExportRef)
				}
				if active != nil {
					fmt.Fprintf(out, "Active:    %s job %s (%s)\n", active.Kind, active.ID, active.State)
				}
				fmt.Fprintf(out, "Created:   %s\n", formatLocalTime(project.CreatedAt))
				fmt.Fprintf(out, "Updated:   %s\n", formatLocalTime(project.UpdatedAt))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newProjectRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <project-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a project, its subtitles, and its stored media",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *appctx.Services) error {
				return removeProject(cmd, svc, args[0])
			})
		},
	}
}

func removeProject(cmd *cobra.Command, svc *appctx.Services, projectID string) error {
	project, err := svc.Catalog.GetProject(cmd.Context(), projectID)
	if err != nil {
		return err
	}
	active, err := svc.Queue.ActiveForProject(cmd.Context(), project.ID)
	if err != nil {
		return err
	}
	if active != nil {
		return fmt.Errorf("%w: project %s has %s job %s", queue.ErrProjectBusy, project.ID, active.State, active.ID)
	}

	var blobErrs []error
	for _, ref := range []string{project.MediaPath, project.ExportRef} {
		if strings.TrimSpace(ref) == "" {
			continue
		}
		if _, err := svc.Blobs.Delete(cmd.Context(), ref); err != nil {
			blobErrs = append(blobErrs, err)
		}
	}
	if err := svc.Catalog.DeleteProject(cmd.Context(), project.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed project %s\n", project.ID)
	if err := errors.Join(blobErrs...); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warn: some stored files were not removed: %v\n", err)
	}
	return nil
}

func formatLocalTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
