package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/grounded-assistant/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the turn API over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.watch(ctx); err != nil {
			return err
		}

		srv := server.New(a.pipeline, server.Options{
			MaxHistory: cfg.Server.MaxHistory,
			Ready:      a.ready,
		}, logger)
		logger.Info("serving", "addr", cfg.Server.Addr, "backend", cfg.Index.Backend, "inference", cfg.Codec.Addr != "")
		return srv.Run(ctx, cfg.Server.Addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}
