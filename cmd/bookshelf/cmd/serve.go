/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ssargent/bookshelf/pkg/api"
	"github.com/ssargent/bookshelf/pkg/di"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start the bookshelf REST API server.

The collection is loaded from the configured storage backend on startup,
flushed periodically while serving, and flushed once more on shutdown.

Examples:
  bookshelf serve
  bookshelf serve --port 9000 --bind 0.0.0.0
  bookshelf serve --backend snapshot --data-dir ./library`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFromContext(cmd)
		if err != nil {
			return err
		}

		// Override config with command line flags if provided
		if cmd.Flags().Changed("port") {
			cfg.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("bind") {
			cfg.Bind, _ = cmd.Flags().GetString("bind")
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		cmd.SetContext(ctx)

		bookStore, logger, closeStore, err := openStore(cmd)
		if err != nil {
			return err
		}

		logger.Info("starting bookshelf",
			"version", Version,
			"addr", cfg.Address(),
			"backend", cfg.Storage.Backend,
			"books", bookStore.Len(),
		)

		serverConfig := di.ServerConfig(cfg, Version, logger)
		serveErr := api.StartServer(ctx, bookStore, serverConfig, container.Metrics())

		closeErr := closeStore()
		if closeErr != nil {
			logger.Error("final flush failed", "error", closeErr)
		} else {
			logger.Info("bookshelf stopped", "books", bookStore.Len())
		}

		return errors.Join(serveErr, closeErr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().String("bind", "127.0.0.1", "Address to bind to")
}
