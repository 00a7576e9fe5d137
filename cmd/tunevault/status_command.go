package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tunevault/internal/api"
	"tunevault/internal/daemonctl"
	"tunevault/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(store *queue.Store, _ *api.QueueService) error {
				status, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.configValue(), store)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, status)
				}

				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)
				sections := []struct {
					title string
					lines []string
				}{
					{"System Status", daemonLines(status, colorize)},
					{"Dependencies", dependencyLines(status.Dependencies, colorize)},
					{"Library", pathLines(status, colorize)},
				}
				for _, section := range sections {
					for _, line := range renderSectionHeader(section.title, colorize) {
						fmt.Fprintln(stdout, line)
					}
					for _, line := range section.lines {
						fmt.Fprintln(stdout, line)
					}
					fmt.Fprintln(stdout)
				}

				for _, line := range renderSectionHeader("Queue Status", colorize) {
					fmt.Fprintln(stdout, line)
				}
				rows := buildQueueStatusRows(status.Workflow.QueueStats)
				if len(rows) == 0 {
					fmt.Fprintln(stdout, "Queue is empty")
					return nil
				}
				fmt.Fprint(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}
