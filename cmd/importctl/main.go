// Package main provides importctl, an operator tool that runs the import
// pipeline in-process against the configured database and blob store.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Garzer09/biz-data-guide-sub001/internal/app"
	"github.com/Garzer09/biz-data-guide-sub001/internal/auth"
	"github.com/Garzer09/biz-data-guide-sub001/internal/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version = "dev"

	configDir  string
	outputFlag string

	cfg    config.Config
	logger *zap.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "importctl",
		Short: "Operate FinSight financial data imports",
		Long: `importctl runs, inspects and repairs FinSight import jobs.

Commands act as the system caller and talk directly to Postgres and the
configured storage backend, so they need the same configuration as the server.`,
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configDir)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			logger, err = config.NewLogger(cfg.Log)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "Directory holding config.yaml and .env")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "table", "Output format: table, json, yaml")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newSubmitCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newReconcileCmd())
	rootCmd.AddCommand(newJobsCmd())
	rootCmd.AddCommand(newErrorsCmd())
	rootCmd.AddCommand(newMigrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withApp builds the application for one command and tears it down afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, application *app.App) error) error {
	ctx := auth.ContextWithCaller(cmd.Context(), auth.SystemCaller())
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()
	return fn(ctx, application)
}
