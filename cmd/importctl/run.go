package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/Garzer09/biz-data-guide-sub001/internal/app"
	"github.com/Garzer09/biz-data-guide-sub001/internal/ingestion"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var family, tipo string

	cmd := &cobra.Command{
		Use:   "run JOB_ID",
		Short: "Process a pending import job",
		Long: `Process a pending import job in-process. The job must be pending; its file is
downloaded from the configured storage backend, validated and upserted.

--family and --tipo are optional cross-checks against the job's declared type.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid job id %q: %w", args[0], err)
			}
			return withApp(cmd, func(ctx context.Context, application *app.App) error {
				result, runErr := application.Service.Run(ctx, ingestion.RunRequest{JobID: jobID, Family: family, Tipo: tipo})
				if result.Status != "" {
					if err := printRunResult(cmd.OutOrStdout(), result); err != nil {
						return err
					}
				}
				return runErr
			})
		},
	}

	cmd.Flags().StringVar(&family, "family", "", "Expected family: balance, cashflow, debt, debt-service, ratios")
	cmd.Flags().StringVar(&tipo, "tipo", "", "Expected tipo for balance and cashflow jobs")
	return cmd
}

func printRunResult(w io.Writer, result ingestion.RunResult) error {
	format, err := parseOutputFormat(outputFlag)
	if err != nil {
		return err
	}
	if format == outputTable {
		s := result.Summary
		fmt.Fprintf(w, "job %s: %s (%d rows, %d ok, %d rejected)\n", result.JobID, result.Status, s.TotalRows, s.OKRows, s.ErrorRows)
		if s.Fatal != "" {
			fmt.Fprintf(w, "fatal: %s\n", s.Fatal)
		}
		for _, warning := range s.Warnings {
			fmt.Fprintf(w, "warning: %s\n", warning)
		}
		if len(s.Errors) == 0 {
			return nil
		}
	}

	rows := make([][]string, 0, len(result.Summary.Errors))
	for _, sample := range result.Summary.Errors {
		rows = append(rows, []string{strconv.Itoa(sample.Row), sample.Kind, sample.Column, truncate(sample.Message, 80)})
	}
	return printOutput(w, result, []string{"row", "kind", "column", "message"}, rows)
}
