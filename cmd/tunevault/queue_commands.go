package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tunevault/internal/api"
	"tunevault/internal/daemonctl"
	"tunevault/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the download queue",
	}

	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueuePlaylistCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueSizeCommand(ctx))
	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var (
		source    string
		titles    []string
		inputFile string
	)

	cmd := &cobra.Command{
		Use:   "add [url...]",
		Short: "Queue URLs for download",
		RunE: func(cmd *cobra.Command, args []string) error {
			urls := append([]string(nil), args...)
			if inputFile != "" {
				fromFile, err := readURLFile(inputFile)
				if err != nil {
					return err
				}
				urls = append(urls, fromFile...)
			}
			if len(urls) == 0 {
				return errors.New("no urls given; pass them as arguments or with --file")
			}

			return ctx.withStore(cmd, func(_ *queue.Store, svc *api.QueueService) error {
				results, err := svc.EnqueueMany(cmd.Context(), urls, source, titles)
				if ctx.JSONMode() {
					if jsonErr := writeJSON(cmd, api.EnqueueBatchResponse{Items: results}); jsonErr != nil {
						return jsonErr
					}
					return err
				}
				out := cmd.OutOrStdout()
				for _, result := range results {
					fmt.Fprintln(out, describeEnqueue(result))
				}
				return err
			})
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Source tag (youtube, soundcloud, spotify); detected from the URL when empty")
	cmd.Flags().StringArrayVar(&titles, "title", nil, "Display title, matched to URLs by position (repeatable)")
	cmd.Flags().StringVarP(&inputFile, "file", "f", "", "Read URLs from a file, one per line")
	return cmd
}

func newQueuePlaylistCommand(ctx *commandContext) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "playlist <url>",
		Short: "Queue every track of an album or playlist",
		Long:  "Lists the tracks with yt-dlp --flat-playlist and queues each one under its listed title.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(_ *queue.Store, svc *api.QueueService) error {
				resp, err := svc.EnqueuePlaylist(cmd.Context(), args[0], source)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				for _, result := range resp.Items {
					fmt.Fprintln(out, describeEnqueue(result))
				}
				fmt.Fprintf(out, "%s; %d pending\n", resp.Message, resp.QueueSize)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Source tag (youtube, soundcloud); detected from the URL when empty")
	return cmd
}

func describeEnqueue(result api.EnqueueResult) string {
	switch {
	case result.InLibrary:
		return fmt.Sprintf("Already in library: %s (track %d)", itemLabel(result.QueueItem), result.TrackID)
	case result.Created:
		return fmt.Sprintf("Queued #%d: %s", result.ID, itemLabel(result.QueueItem))
	default:
		return fmt.Sprintf("Already queued #%d (%s): %s", result.ID, result.Status, itemLabel(result.QueueItem))
	}
}

// readURLFile returns the non-blank lines of path, skipping # comments.
func readURLFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open url file: %w", err)
	}
	defer file.Close()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read url file: %w", err)
	}
	return urls, nil
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]queue.Status, 0, len(listStatuses))
			for _, value := range listStatuses {
				status, err := queue.ParseStatus(value)
				if err != nil {
					return err
				}
				statuses = append(statuses, status)
			}

			return ctx.withStore(cmd, func(_ *queue.Store, svc *api.QueueService) error {
				items, err := svc.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, api.QueueListResponse{Items: items})
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Title", "Status", "Progress", "Updated"},
					buildQueueListRows(items),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by status (repeatable)")
	return cmd
}

func buildQueueListRows(items []api.QueueItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			itemLabel(item),
			item.Status,
			fmt.Sprintf("%d%%", item.Progress),
			item.UpdatedAt,
		})
	}
	return rows
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			return ctx.withStore(cmd, func(_ *queue.Store, svc *api.QueueService) error {
				item, err := svc.Describe(cmd.Context(), id)
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("job %d not found", id)
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, item)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Job #%d\n", item.ID)
				fmt.Fprintf(out, "URL: %s\n", item.URL)
				if item.Title != "" {
					fmt.Fprintf(out, "Title: %s\n", item.Title)
				}
				fmt.Fprintf(out, "Status: %s (%d%%)\n", item.Status, item.Progress)
				if item.Message != "" {
					fmt.Fprintf(out, "Message: %s\n", item.Message)
				}
				if item.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", item.Error)
				}
				if item.TaskID != "" {
					fmt.Fprintf(out, "Task: %s\n", item.TaskID)
				}
				if item.TrackID != 0 {
					fmt.Fprintf(out, "Track: %d\n", item.TrackID)
				}
				fmt.Fprintf(out, "Created: %s\n", item.CreatedAt)
				fmt.Fprintf(out, "Updated: %s\n", item.UpdatedAt)
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <url...>",
		Short: "Remove pending jobs by URL",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(_ *queue.Store, svc *api.QueueService) error {
				result, err := api.RemoveURLs(cmd.Context(), svc, args)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				for _, item := range result.Items {
					if item.Outcome == api.RemoveOutcomeRemoved {
						fmt.Fprintf(out, "Removed %s\n", item.URL)
					} else {
						fmt.Fprintf(out, "Kept %s (not pending)\n", item.URL)
					}
				}
				fmt.Fprintf(out, "Removed %d of %d\n", result.RemovedCount, len(result.Items))
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every job regardless of status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return errors.New("queue clear deletes every job including in-flight ones; pass --force to confirm")
			}
			return ctx.withStore(cmd, func(_ *queue.Store, svc *api.QueueService) error {
				removed, err := svc.ClearAll(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, api.ClearResponse{Removed: removed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d jobs\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Confirm deleting every job")
	return cmd
}

func newQueueSizeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "size",
		Short: "Print the number of pending jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(_ *queue.Store, svc *api.QueueService) error {
				size, err := svc.Size(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, api.SizeResponse{Size: size})
				}
				fmt.Fprintln(cmd.OutOrStdout(), size)
				return nil
			})
		},
	}
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show job counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(_ *queue.Store, svc *api.QueueService) error {
				summary, err := svc.StatusSummary(cmd.Context())
				if err != nil {
					return err
				}
				// Only the daemon claims jobs, so ask it.
				if client, clientErr := daemonctl.NewClient(ctx.configValue()); clientErr == nil {
					if status, statusErr := client.Status(cmd.Context()); statusErr == nil {
						summary.IsProcessing = status.Workflow.Running
					}
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, summary)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Processing: %s\n", yesNo(summary.IsProcessing))
				rows := buildQueueStatusRows(map[string]int{
					string(queue.StatusPending):    summary.Pending,
					string(queue.StatusProcessing): summary.Processing,
					string(queue.StatusCompleted):  summary.Completed,
					string(queue.StatusFailed):     summary.Failed,
				})
				if len(rows) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				rows = append(rows, []string{"total", strconv.Itoa(summary.Total)})
				fmt.Fprint(out, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check queue database health (schema, integrity, columns)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(store *queue.Store, _ *api.QueueService) error {
				health, err := store.CheckHealth(cmd.Context())
				if ctx.JSONMode() {
					if jsonErr := writeJSON(cmd, health); jsonErr != nil {
						return jsonErr
					}
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database path: %s\n", health.DBPath)
				fmt.Fprintf(out, "Database exists: %s\n", yesNo(health.DatabaseExists))
				fmt.Fprintf(out, "Readable: %s\n", yesNo(health.DatabaseReadable))
				fmt.Fprintf(out, "Schema version: %d\n", health.SchemaVersion)
				fmt.Fprintf(out, "jobs table present: %s\n", yesNo(health.TableExists))
				if len(health.MissingColumns) > 0 {
					fmt.Fprintf(out, "Missing columns: %s\n", strings.Join(health.MissingColumns, ", "))
				} else {
					fmt.Fprintln(out, "Missing columns: none")
				}
				fmt.Fprintf(out, "Integrity check: %s\n", yesNo(health.IntegrityCheck))
				fmt.Fprintf(out, "Total jobs: %d\n", health.TotalJobs)
				if health.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", health.Error)
				}
				return err
			})
		},
	}
}
