/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/bookshelf/pkg/config"
	"github.com/ssargent/bookshelf/pkg/di"
	"github.com/ssargent/bookshelf/pkg/store"
)

// Version is stamped at build time with -ldflags "-X ...cmd.Version=...".
var Version = "dev"

var container *di.Container

type contextKey string

const configKey contextKey = "config"

// SetContainer injects the dependency container
func SetContainer(c *di.Container) {
	container = c
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bookshelf",
	Short: "Bookshelf - a small book collection service",
	Long: `Bookshelf keeps a collection of books and serves it over a JSON REST API
with search, filtering, sorting and pagination.

The collection is held in memory and can be persisted to pebble, a
compressed snapshot file, PostgreSQL, MinIO or DynamoDB.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		// Store in command context
		cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default "+config.GetDefaultConfigPath()+")")
	rootCmd.PersistentFlags().StringP("data-dir", "d", "", "Data directory, overrides the config file")
	rootCmd.PersistentFlags().String("backend", "", "Storage backend, overrides the config file")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table or json)")
}

// resolveConfig loads the config file when one exists and applies the
// persistent flag overrides. Without a file the defaults are used.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	explicit := configPath != ""
	if !explicit {
		configPath = config.GetDefaultConfigPath()
	}

	cfg := config.DefaultConfig()
	if config.ConfigExists(configPath) {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else if explicit && cmd.Name() != "init" {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	if backend, _ := cmd.Flags().GetString("backend"); backend != "" {
		cfg.Storage.Backend = backend
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func configFromContext(cmd *cobra.Command) (*config.Config, error) {
	cfg, ok := cmd.Context().Value(configKey).(*config.Config)
	if !ok {
		return nil, errors.New("configuration not found in context")
	}
	return cfg, nil
}

// openStore opens the configured backend and loads the collection. The
// returned close function flushes pending changes.
func openStore(cmd *cobra.Command) (*store.BookStore, *slog.Logger, func() error, error) {
	if container == nil {
		return nil, nil, nil, errors.New("dependency container not initialized")
	}

	cfg, err := configFromContext(cmd)
	if err != nil {
		return nil, nil, nil, err
	}

	logger := container.Logger(cfg)
	s, err := container.OpenStore(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	closeFn := func() error {
		return s.Close(context.WithoutCancel(cmd.Context()))
	}
	return s, logger, closeFn, nil
}
