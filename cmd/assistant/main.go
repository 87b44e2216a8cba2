// Package main is the entry point for the grounded-assistant CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/danielpatrickdp/grounded-assistant/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "grounded-assistant",
	Short: "Enterprise assistant that answers from a document index or performs actions",
	Long: `grounded-assistant routes each user turn to one of four outcomes: a cited
answer drawn from the indexed annual report, a structured action (ticket,
access request, meeting), a clarifying question, or an escalation.

Intent and slot classification, embeddings, relevance scoring and answer
synthesis are served by the inference service over gRPC. Without one the
assistant runs on keyword heuristics and escalates informational turns.`,
	SilenceUsage: true,
}

var cfgFile string

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./grounded-assistant.yaml or ~/.config/grounded-assistant/config.yaml)")

	rootCmd.AddCommand(askCmd, chatCmd, serveCmd, retrieveCmd, replayCmd, inspectCmd, versionCmd)
}

func initConfig() {
	used, err := config.Init(viper.GetViper(), cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if used != "" {
		fmt.Fprintln(os.Stderr, "Using config file:", used)
	}
}

// loadConfig decodes the merged configuration and builds the process logger.
func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := config.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return config.Config{}, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
