package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/grounded-assistant/internal/replay"
	"github.com/danielpatrickdp/grounded-assistant/internal/vocab"
)

var (
	replayFixture string
	replayJSON    bool
)

// errMismatch makes the command exit non-zero without repeating the table.
var errMismatch = errors.New("replay: decisions diverged from fixture")

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a recorded session through carryover and policy",
	Long: `replay runs every turn of a fixture through continuation resolution and the
decision policy using the fixture's recorded classifier signals. No inference
service or index is needed. The command fails when any turn diverges from its
expectation.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		v := vocab.Default()
		if cfg.Vocabulary != "" {
			if v, err = vocab.Load(cfg.Vocabulary); err != nil {
				return err
			}
		}

		f, err := replay.LoadFixture(replayFixture)
		if err != nil {
			return err
		}
		results, err := replay.Run(cmd.Context(), f, v, logger)
		if err != nil {
			return err
		}
		summary := replay.Summarize(results)

		out := cmd.OutOrStdout()
		if replayJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(struct {
				Results []replay.Result `json:"results"`
				Summary replay.Summary  `json:"summary"`
			}{results, summary}); err != nil {
				return err
			}
		} else {
			printComparison(out, results, summary)
		}
		if summary.Mismatches > 0 {
			return errMismatch
		}
		return nil
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayFixture, "fixture", "", "path to fixture JSON")
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "output as JSON instead of table")
	_ = replayCmd.MarkFlagRequired("fixture")
}

func printComparison(w io.Writer, results []replay.Result, s replay.Summary) {
	fmt.Fprintf(w, "%-6s  %-22s  %-8s  %-22s  %-4s  %s\n", "Turn", "Intent", "Step", "Rule", "OK", "Missing")
	fmt.Fprintf(w, "%-6s+-%-22s+-%-8s+-%-22s+-%-4s+-%s\n", "------", "----------------------", "--------", "----------------------", "----", "--------")
	for _, r := range results {
		ok := "yes"
		if !r.OK() {
			ok = "NO"
		}
		intent := r.Intent
		if r.Adopted {
			intent += "*"
		}
		fmt.Fprintf(w, "%-6s  %-22s  %-8s  %-22s  %-4s  %s\n",
			r.TurnID, intent, r.Decision.NextStep, r.Decision.Rule, ok, strings.Join(r.Decision.Missing, ","))
		for _, m := range r.Mismatches {
			fmt.Fprintf(w, "        ! %s\n", m)
		}
	}
	fmt.Fprintf(w, "\n%d turns: %d answer, %d action, %d clarify, %d escalate, %d mismatched\n",
		s.TotalTurns, s.Answers, s.Actions, s.Clarifies, s.Escalations, s.Mismatches)
	fmt.Fprintln(w, "(* intent adopted from history)")
}
