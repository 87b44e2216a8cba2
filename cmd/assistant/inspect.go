package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/grounded-assistant/internal/logging"
)

var (
	inspectLast int
	inspectDB   string
	inspectJSON bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show recent entries of the decision log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		path := inspectDB
		if path == "" {
			path = cfg.Audit.DB
		}
		if path == "" {
			return errors.New("no decision log: set audit.db or pass --db")
		}

		store, err := logging.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.Recent(cmd.Context(), inspectLast)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "no decisions logged")
			return nil
		}

		// Recent returns newest first; print chronologically.
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
		if inspectJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}
		printDecisionTable(out, entries)
		return nil
	},
}

func init() {
	inspectCmd.Flags().IntVar(&inspectLast, "last", 20, "show N most recent decisions")
	inspectCmd.Flags().StringVar(&inspectDB, "db", "", "decision log path (overrides audit.db)")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "output as JSON instead of table")
}

func printDecisionTable(w io.Writer, entries []logging.Entry) {
	fmt.Fprintf(w, "%-12s  %-20s  %5s  %-8s  %-22s  %5s  %-10s  %s\n",
		"Turn", "Intent", "Conf", "Step", "Rule", "Ret", "Pages", "Time")
	fmt.Fprintf(w, "%-12s+-%-20s+-%5s+-%-8s+-%-22s+-%5s+-%-10s+-%s\n",
		"------------", "--------------------", "-----", "--------", "----------------------", "-----", "----------", "--------------------")
	for _, e := range entries {
		intent := e.Intent
		if e.Degraded {
			intent += " (h)"
		}
		pages := "—"
		if len(e.EvidencePages) > 0 {
			ps := make([]string, len(e.EvidencePages))
			for i, p := range e.EvidencePages {
				ps[i] = fmt.Sprint(p)
			}
			pages = strings.Join(ps, ",")
		}
		fmt.Fprintf(w, "%-12s  %-20s  %5.2f  %-8s  %-22s  %5.2f  %-10s  %s\n",
			shortID(e.TurnID), intent, e.Confidence, e.NextStep, e.Rule, e.RetrievalConfidence, pages,
			e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"))
		if len(e.Missing) > 0 {
			fmt.Fprintf(w, "%-12s  missing: %s\n", "", strings.Join(e.Missing, ", "))
		}
	}
	fmt.Fprintln(w, "\n(h) classified by heuristics after an inference failure")
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
