// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/citefetch/internal/ledger"
	"github.com/pdiddy/citefetch/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List titles recorded in the ledger",
	Long: `History prints the latest outcome the ledger holds for every title,
optionally filtered by status (succeeded or failed). With --runs it lists
past runs instead.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().String("status", "", "filter by status: succeeded, failed")
	historyCmd.Flags().Bool("runs", false, "list runs instead of titles")
	historyCmd.Flags().Int("limit", 20, "maximum number of runs to list")
	historyCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	status, _ := cmd.Flags().GetString("status")
	switch types.TitleStatus(status) {
	case "", types.StatusSucceeded, types.StatusFailed:
	default:
		return fmt.Errorf("unsupported status %q: use succeeded or failed", status)
	}

	store, err := ledger.Open(viper.GetString("ledger"))
	if err != nil {
		return err
	}
	defer store.Close()

	jsonOutput, _ := cmd.Flags().GetBool("json")
	w := cmd.OutOrStdout()

	if runs, _ := cmd.Flags().GetBool("runs"); runs {
		limit, _ := cmd.Flags().GetInt("limit")
		list, err := store.Runs(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(w, list)
		}
		return formatRuns(w, list)
	}

	entries, err := store.List(cmd.Context(), types.TitleStatus(status))
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(w, entries)
	}
	return formatEntries(w, entries)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatEntries(w io.Writer, entries []ledger.Entry) error {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No titles recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tATTEMPTS\tUPDATED\tTITLE\tDETAIL")
	for _, e := range entries {
		detail := e.Error
		if e.Record != nil {
			detail = e.Record.Path
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
			e.Status, e.Attempts, e.UpdatedAt.Local().Format("2006-01-02 15:04"), e.Title, detail)
	}
	return tw.Flush()
}

func formatRuns(w io.Writer, runs []ledger.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSUCCEEDED\tSKIPPED\tFAILED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Succeeded, r.Skipped, r.Failed)
	}
	return tw.Flush()
}
