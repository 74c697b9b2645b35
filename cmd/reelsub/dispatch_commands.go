package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"reelsub/internal/api"
	"reelsub/internal/appctx"
	"reelsub/internal/config"
	"reelsub/internal/queue"
)

type enqueueFunc func(ctx context.Context, svc *appctx.Services, projectID string) (*queue.Job, error)

func newDispatchCommands(ctx *commandContext) []*cobra.Command {
	var transcribeLang string
	transcribeCmd := newEnqueueCommand(ctx, "transcribe <project-id>", "Queue subtitle generation for a project",
		func(c context.Context, svc *appctx.Services, id string) (*queue.Job, error) {
			return svc.Dispatcher.Transcribe(c, id, transcribeLang)
		})
	transcribeCmd.Flags().StringVarP(&transcribeLang, "language", "l", "", "Language hint (auto-detect when empty)")

	var regenerateLang string
	regenerateCmd := newEnqueueCommand(ctx, "regenerate <project-id>", "Discard existing subtitles and transcribe again",
		func(c context.Context, svc *appctx.Services, id string) (*queue.Job, error) {
			return svc.Dispatcher.Regenerate(c, id, regenerateLang)
		})
	regenerateCmd.Flags().StringVarP(&regenerateLang, "language", "l", "", "Language hint (auto-detect when empty)")

	var optionsJSON, optionsFile string
	exportCmd := newEnqueueCommand(ctx, "export <project-id>", "Queue a video render with burned-in captions",
		func(c context.Context, svc *appctx.Services, id string) (*queue.Job, error) {
			raw, err := readExportOptions(optionsJSON, optionsFile)
			if err != nil {
				return nil, err
			}
			return svc.Dispatcher.Export(c, id, raw)
		})
	exportCmd.Flags().StringVar(&optionsJSON, "options", "", "Export options as JSON (e.g. '{\"font_size\":32}')")
	exportCmd.Flags().StringVar(&optionsFile, "options-file", "", "Read export options JSON from a file")

	return []*cobra.Command{transcribeCmd, regenerateCmd, exportCmd}
}

func newEnqueueCommand(ctx *commandContext, use, short string, enqueue enqueueFunc) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svc *appctx.Services) error {
				job, err := enqueue(cmd.Context(), svc, args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.FromJob(job))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s job %s for project %s\n", job.Kind, job.ID, job.ProjectID)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output the queued job as JSON")
	return cmd
}

func readExportOptions(inline, file string) ([]byte, error) {
	inline = strings.TrimSpace(inline)
	file = strings.TrimSpace(file)
	switch {
	case inline != "" && file != "":
		return nil, errors.New("use either --options or --options-file, not both")
	case inline != "":
		return []byte(inline), nil
	case file != "":
		path, err := config.ExpandPath(file)
		if err != nil {
			return nil, fmt.Errorf("resolve options file: %w", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read options file: %w", err)
		}
		return data, nil
	default:
		return nil, nil
	}
}
