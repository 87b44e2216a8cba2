package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/grounded-assistant/internal/carryover"
	"github.com/danielpatrickdp/grounded-assistant/internal/orchestrator"
	"github.com/danielpatrickdp/grounded-assistant/internal/respond"
	"github.com/danielpatrickdp/grounded-assistant/internal/server"
)

// #region ask

var askJSON bool

var askCmd = &cobra.Command{
	Use:   "ask <text>",
	Short: "Process a single turn and print the response",
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

		resp := a.pipeline.ProcessTurn(cmd.Context(), strings.Join(args, " "), nil)
		return printResponse(cmd.OutOrStdout(), resp, askJSON)
	},
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the structured response instead of markdown")
}

func printResponse(w io.Writer, resp respond.Response, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	_, err := fmt.Fprintln(w, resp.Render())
	return err
}

// #endregion ask

// #region chat

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive session; history is kept in memory until exit",
	Args:  cobra.NoArgs,
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
		if err := a.watch(cmd.Context()); err != nil {
			return err
		}

		fmt.Fprintln(cmd.ErrOrStderr(), "Type a request, or 'exit' to quit.")
		return chatLoop(cmd.Context(), a.pipeline, cmd.InOrStdin(), cmd.OutOrStdout(), cfg.Server.MaxHistory)
	},
}

// chatLoop reads one turn per line until EOF or "exit". History holds the
// user text and the rendered reply of each turn, capped at maxHistory.
func chatLoop(ctx context.Context, p server.TurnProcessor, in io.Reader, out io.Writer, maxHistory int) error {
	var history []orchestrator.Turn
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		text := scanner.Text()
		if cmd := strings.TrimSpace(strings.ToLower(text)); cmd == "exit" || cmd == "quit" {
			return nil
		}

		resp := p.ProcessTurn(ctx, text, history)
		reply := resp.Render()
		fmt.Fprintf(out, "%s\n\n> ", reply)

		history = append(history,
			orchestrator.Turn{Role: carryover.RoleUser, Text: text},
			orchestrator.Turn{Role: carryover.RoleAssistant, Text: reply},
		)
		if maxHistory > 0 && len(history) > maxHistory {
			history = history[len(history)-maxHistory:]
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return scanner.Err()
}

// #endregion chat
