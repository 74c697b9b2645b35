package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"reelsub/internal/staging"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var listOnly bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove stale temporary artifacts now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if listOnly {
				entries, err := staging.ListEntries(cfg.Paths.TempDir, cfg.Cleanup.Prefix)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintf(out, "No %s* entries in %s\n", cfg.Cleanup.Prefix, cfg.Paths.TempDir)
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					age := "-"
					if !e.ModTime.IsZero() {
						age = time.Since(e.ModTime).Truncate(time.Second).String()
					}
					rows = append(rows, []string{e.Name, strconv.FormatInt(e.Size, 10), age})
				}
				fmt.Fprint(out, renderTable([]string{"Entry", "Bytes", "Age"}, rows,
					[]columnAlignment{alignLeft, alignRight, alignRight}))
				return nil
			}

			result := staging.NewSweeper(cfg, ctx.cliLogger(cmd)).SweepOnce(cmd.Context())
			for _, path := range result.Removed {
				fmt.Fprintf(out, "Removed %s\n", path)
			}
			for _, failure := range result.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "Failed to remove %s: %v\n", failure.Path, failure.Error)
			}
			fmt.Fprintf(out, "Sweep finished: %d removed, %d failed\n", len(result.Removed), len(result.Errors))
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d entries could not be removed", len(result.Errors))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&listOnly, "list", false, "List temporary entries without removing anything")
	return cmd
}
