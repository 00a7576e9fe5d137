package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tunevault/internal/api"
	"tunevault/internal/library"
)

func newLibraryCommand(ctx *commandContext) *cobra.Command {
	libraryCmd := &cobra.Command{
		Use:   "library",
		Short: "Browse and prune the catalogued tracks",
	}
	libraryCmd.AddCommand(
		newLibraryListCommand(ctx),
		newLibrarySearchCommand(ctx),
		newLibraryStatsCommand(ctx),
		newLibraryDeleteCommand(ctx),
	)
	return libraryCmd
}

func newLibraryListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List filed tracks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLibrary(cmd, func(svc *api.LibraryService) error {
				resp, err := svc.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				printTracks(cmd, resp.Items, "Library is empty")
				if resp.Total > len(resp.Items) {
					fmt.Fprintf(cmd.OutOrStdout(), "Showing %d of %d tracks\n", len(resp.Items), resp.Total)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "Maximum tracks to list")
	return cmd
}

func newLibrarySearchCommand(ctx *commandContext) *cobra.Command {
	var (
		query library.SearchQuery
		limit int
	)

	cmd := &cobra.Command{
		Use:   "search [text]",
		Short: "Find tracks by artist, album or title",
		Long: "Matches are case-insensitive substrings. The free text is checked against artist, album and title;\n" +
			"a track is listed when it matches any of the given terms.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				query.Query = args[0]
			}
			if query.Empty() {
				return errors.New("give search text or one of --artist, --album, --title")
			}
			return ctx.withLibrary(cmd, func(svc *api.LibraryService) error {
				resp, err := svc.Search(cmd.Context(), query, limit)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				printTracks(cmd, resp.Items, "No matching tracks")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&query.Artist, "artist", "", "Match artist")
	cmd.Flags().StringVar(&query.Album, "album", "", "Match album")
	cmd.Flags().StringVar(&query.Title, "title", "", "Match title")
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "Maximum tracks to list")
	return cmd
}

func newLibraryStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the library",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLibrary(cmd, func(svc *api.LibraryService) error {
				stats, err := svc.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, stats)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Tracks", "Artists", "Albums", "Size"},
					[][]string{{
						strconv.Itoa(stats.TotalTracks),
						strconv.Itoa(stats.TotalArtists),
						strconv.Itoa(stats.TotalAlbums),
						fmt.Sprintf("%.2f GB", stats.TotalSizeGB),
					}},
					[]columnAlignment{alignRight, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}
}

func newLibraryDeleteCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a track and its audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid track id %q", args[0])
			}
			if !force {
				return errors.New("library delete removes the audio file from disk; pass --force to confirm")
			}
			return ctx.withLibrary(cmd, func(svc *api.LibraryService) error {
				resp, err := svc.Delete(cmd.Context(), id)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", resp.Message, resp.Track.FilePath)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Confirm deleting the file")
	return cmd
}

func printTracks(cmd *cobra.Command, items []api.TrackItem, empty string) {
	out := cmd.OutOrStdout()
	if len(items) == 0 {
		fmt.Fprintln(out, empty)
		return
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			item.Artist,
			item.Album,
			item.Title,
			item.FilePath,
		})
	}
	fmt.Fprint(out, renderTable(
		[]string{"ID", "Artist", "Album", "Title", "File"},
		rows,
		[]columnAlignment{alignRight},
	))
}
