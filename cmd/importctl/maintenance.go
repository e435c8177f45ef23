package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Garzer09/biz-data-guide-sub001/internal/app"
	"github.com/Garzer09/biz-data-guide-sub001/internal/db"

	"github.com/spf13/cobra"
)

func newReconcileCmd() *cobra.Command {
	var staleAfter time.Duration

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Fail import jobs stuck in processing",
		Long: `Mark every job that has been processing without progress for longer than
--stale-after as failed. The server runs the same sweep on a schedule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if staleAfter > 0 {
				cfg.Watchdog.StaleAfter = staleAfter
			}
			return withApp(cmd, func(ctx context.Context, application *app.App) error {
				ids, err := application.Watchdog.Sweep(ctx)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(ids))
				for _, id := range ids {
					rows = append(rows, []string{id.String()})
				}
				return printOutput(cmd.OutOrStdout(), map[string]any{"failed_jobs": ids}, []string{"failed job"}, rows)
			})
		},
	}

	cmd.Flags().DurationVar(&staleAfter, "stale-after", 0, "Override watchdog.stale_after")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := db.RunMigrations(cfg.Database, logger.Named("migrate")); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
