package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"downie/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the download archive",
	}
	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCommand(ctx))
	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent downloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				entries, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, historyViews(entries))
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No downloads recorded")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "When", "Platform", "Title", "Size", "Took", "Processed", "File"},
					historyRows(entries, time.Now()),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every recorded download",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				removed, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %s\n", removed, pluralize(removed, "entry", "entries"))
				return nil
			})
		},
	}
}

func historyRows(entries []history.Entry, now time.Time) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			strconv.FormatInt(entry.ID, 10),
			humanize.RelTime(entry.CreatedAt, now, "ago", "from now"),
			entry.Platform,
			entry.Title,
			humanize.IBytes(uint64(entry.FileSize)),
			entry.DownloadTime.Round(time.Millisecond).String(),
			yesNo(entry.Processed),
			filepath.Base(entry.FilePath),
		})
	}
	return rows
}

type historyView struct {
	ID         int64  `json:"id"`
	RequestID  string `json:"request_id,omitempty"`
	URL        string `json:"url"`
	Platform   string `json:"platform,omitempty"`
	Title      string `json:"title,omitempty"`
	FormatID   string `json:"format_id,omitempty"`
	FilePath   string `json:"file_path"`
	FileSize   int64  `json:"file_size"`
	DurationMS int64  `json:"download_ms"`
	Processed  bool   `json:"processed"`
	CreatedAt  string `json:"created_at"`
}

func historyViews(entries []history.Entry) []historyView {
	views := make([]historyView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, historyView{
			ID:         entry.ID,
			RequestID:  entry.RequestID,
			URL:        entry.URL,
			Platform:   entry.Platform,
			Title:      entry.Title,
			FormatID:   entry.FormatID,
			FilePath:   entry.FilePath,
			FileSize:   entry.FileSize,
			DurationMS: entry.DownloadTime.Milliseconds(),
			Processed:  entry.Processed,
			CreatedAt:  entry.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return views
}

func pluralize(n int64, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
