package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/grounded-assistant/internal/retrieval"
)

var (
	retrieveK       int
	retrieveJSON    bool
	retrieveSection string
)

// retrieveCmd runs the retrieval stage alone, for tuning boosts and checking
// what a question would be grounded on.
var retrieveCmd = &cobra.Command{
	Use:   "retrieve <query>",
	Short: "Print the evidence passages retrieved for a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		query := strings.Join(args, " ")
		k := retrieveK
		if k <= 0 {
			k = cfg.TopK
		}
		evidence, err := a.retriever.RetrieveClauses(cmd.Context(), query, k, nil, retrieveSection)
		if err != nil {
			return err
		}
		conf := retrieval.Confidence(evidence, retrieval.CheckTerms(a.vocab, query, nil))

		out := cmd.OutOrStdout()
		if retrieveJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Query      string               `json:"query"`
				Confidence float64              `json:"confidence"`
				Evidence   []retrieval.Evidence `json:"evidence"`
			}{query, conf, evidence})
		}

		fmt.Fprintf(out, "%-4s  %6s  %4s  %-24s  %s\n", "Rank", "Score", "Page", "Section", "Text")
		fmt.Fprintf(out, "%-4s+-%6s+-%4s+-%-24s+-%s\n", "----", "------", "----", "------------------------", "--------------------")
		for _, ev := range evidence {
			fmt.Fprintf(out, "%-4d  %6.3f  %4d  %-24s  %s\n",
				ev.Rank, ev.Score, ev.Passage.Page, truncate(ev.Passage.Section, 24), truncate(ev.Passage.Text, 80))
		}
		fmt.Fprintf(out, "\nRetrieval confidence: %.2f\n", conf)
		return nil
	},
}

func init() {
	retrieveCmd.Flags().IntVarP(&retrieveK, "top-k", "k", 0, "passages to keep (default top_k)")
	retrieveCmd.Flags().StringVar(&retrieveSection, "section", "", "section hint to boost")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false, "output as JSON instead of table")
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
