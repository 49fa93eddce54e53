package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"weekcal/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve week files as a read-only JSON API",
	Long:  "Expose /health, /api/weeks and /api/weeks/{week} on the configured listen address, with optional basic auth.",
	RunE:  runServe,
}

var serveListen string

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "HTTP listen address (overrides config if set)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if serveListen != "" {
		cfg.Listen = serveListen
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return web.NewServer(cfg, logger).Run(ctx)
}
