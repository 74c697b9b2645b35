package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reelsub/internal/appctx"
	"reelsub/internal/config"
	"reelsub/internal/subtitles"
)

func newSubtitlesCommand(ctx *commandContext) *cobra.Command {
	subtitlesCmd := &cobra.Command{
		Use:     "subtitles",
		Aliases: []string{"subs"},
		Short:   "Download and edit project subtitles",
	}
	subtitlesCmd.AddCommand(newSubtitlesGetCommand(ctx))
	subtitlesCmd.AddCommand(newSubtitlesEditCommand(ctx))
	return subtitlesCmd
}

func newSubtitlesGetCommand(ctx *commandContext) *cobra.Command {
	var formatFlag string
	var outputPath string
	cmd := &cobra.Command{
		Use:   "get <project-id>",
		Short: "Print or save a project's subtitles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := subtitles.ParseFormat(formatFlag)
			if err != nil {
				return err
			}
			return ctx.withServices(cmd, func(svc *appctx.Services) error {
				sub, err := svc.Catalog.GetSubtitle(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				body := sub.SRTText
				if format == subtitles.FormatJSON {
					body = sub.JSONPayload
				}

				target := strings.TrimSpace(outputPath)
				if target == "" {
					fmt.Fprint(cmd.OutOrStdout(), body)
					return nil
				}
				if target == "." {
					target = format.Filename(sub.ProjectID)
				}
				target, err = config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve output path: %w", err)
				}
				if err := os.WriteFile(target, []byte(body), 0o644); err != nil {
					return fmt.Errorf("write subtitles: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", target)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&formatFlag, "format", "f", "srt", "Output format (srt or json)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write to a file instead of stdout ('.' uses subtitles_<project>.<format>)")
	return cmd
}

func newSubtitlesEditCommand(ctx *commandContext) *cobra.Command {
	var segmentEdits []string
	cmd := &cobra.Command{
		Use:   "edit <project-id> --segment INDEX=TEXT...",
		Short: "Replace the text of individual segments, keeping their timings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			edits, err := parseSegmentEdits(segmentEdits)
			if err != nil {
				return err
			}
			return ctx.withServices(cmd, func(svc *appctx.Services) error {
				sub, err := svc.Catalog.EditSubtitleText(cmd.Context(), args[0], edits)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %d segment(s) for project %s\n", len(edits), sub.ProjectID)
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVarP(&segmentEdits, "segment", "s", nil, "Segment edit as INDEX=TEXT (zero-based, repeatable)")
	_ = cmd.MarkFlagRequired("segment")
	return cmd
}

func parseSegmentEdits(values []string) (map[int]string, error) {
	edits := make(map[int]string, len(values))
	for _, value := range values {
		rawIndex, text, ok := strings.Cut(value, "=")
		if !ok {
			return nil, fmt.Errorf("segment edit %q must look like INDEX=TEXT", value)
		}
		idx, err := strconv.Atoi(strings.TrimSpace(rawIndex))
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("segment edit %q has an invalid index", value)
		}
		if _, dup := edits[idx]; dup {
			return nil, fmt.Errorf("segment %d edited more than once", idx)
		}
		edits[idx] = strings.ReplaceAll(text, `\n`, "\n")
	}
	return edits, nil
}
