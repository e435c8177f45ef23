package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Garzer09/biz-data-guide-sub001/internal/app"
	"github.com/Garzer09/biz-data-guide-sub001/internal/domain"
	"github.com/Garzer09/biz-data-guide-sub001/internal/ingestion"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	var (
		recordType string
		company    string
		limit      int
		strict     bool
	)

	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Dry-run a local CSV or Excel file without writing anything",
		Long: `Parse, validate and normalize a local file exactly as an import would,
without creating a job or touching the fact tables. Company codes are
resolved against the live company directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			declared, err := domain.ParseRecordType(recordType)
			if err != nil {
				return err
			}
			var companyID uuid.UUID
			if company != "" {
				if companyID, err = uuid.Parse(company); err != nil {
					return fmt.Errorf("invalid --company %q: %w", company, err)
				}
			}

			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			return withApp(cmd, func(ctx context.Context, application *app.App) error {
				result, err := application.Service.Preview(ctx, ingestion.PreviewRequest{
					RecordType: declared,
					CompanyID:  companyID,
					FileName:   filepath.Base(args[0]),
					Data:       file,
					Limit:      limit,
				})
				if err != nil {
					return err
				}

				format, err := parseOutputFormat(outputFlag)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if format == outputTable {
					fmt.Fprintf(w, "%s (%s): %d rows, %d ok, %d rejected\n", args[0], result.Format, result.TotalRows, result.OKRows, result.ErrorRows)
					for _, warning := range result.Warnings {
						fmt.Fprintf(w, "warning: %s\n", warning)
					}
				}
				rows := make([][]string, 0, len(result.Errors))
				for _, sample := range result.Errors {
					rows = append(rows, []string{strconv.Itoa(sample.Row), sample.Kind, sample.Column, truncate(sample.Message, 80)})
				}
				if format != outputTable || len(rows) > 0 {
					if err := printOutput(w, result, []string{"row", "kind", "column", "message"}, rows); err != nil {
						return err
					}
				}

				if strict && result.ErrorRows > 0 {
					return fmt.Errorf("%d of %d rows would be rejected", result.ErrorRows, result.TotalRows)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&recordType, "type", "", "Record type, e.g. balance-operating")
	cmd.Flags().StringVar(&company, "company", "", "Company id for types keyed by the job's company")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum records and errors to report")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when any row would be rejected")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}
