package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tunevault/internal/daemonctl"
)

func newTaskCommand(ctx *commandContext) *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Inspect in-flight tasks on the daemon",
	}
	taskCmd.AddCommand(newTaskShowCommand(ctx))
	return taskCmd
}

func newTaskShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show progress of one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := daemonctl.NewClient(ctx.configValue())
			if err != nil {
				return err
			}
			task, err := client.Task(cmd.Context(), args[0])
			switch {
			case errors.Is(err, daemonctl.ErrDaemonNotRunning):
				return errors.New("daemon is not running; task progress is only kept in memory while it runs")
			case errors.Is(err, daemonctl.ErrNotFound):
				return fmt.Errorf("task %s not found", args[0])
			case err != nil:
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, task)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Task %s\n", task.TaskID)
			fmt.Fprintf(out, "URL: %s\n", task.URL)
			fmt.Fprintf(out, "Status: %s (%d%%)\n", task.Status, task.Progress)
			if task.Message != "" {
				fmt.Fprintf(out, "Message: %s\n", task.Message)
			}
			if task.Error != "" {
				fmt.Fprintf(out, "Error: %s\n", task.Error)
			}
			if task.TrackID != 0 {
				fmt.Fprintf(out, "Track: %d\n", task.TrackID)
			}
			fmt.Fprintf(out, "Updated: %s\n", task.UpdatedAt)
			return nil
		},
	}
}
