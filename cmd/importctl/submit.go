package main

import (
	"context"
	"fmt"

	"github.com/Garzer09/biz-data-guide-sub001/internal/app"
	"github.com/Garzer09/biz-data-guide-sub001/internal/domain"
	"github.com/Garzer09/biz-data-guide-sub001/internal/ingestion"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newSubmitCmd() *cobra.Command {
	var (
		company    string
		recordType string
		path       string
		runNow     bool
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Register an uploaded file as a pending import job",
		RunE: func(cmd *cobra.Command, args []string) error {
			companyID, err := uuid.Parse(company)
			if err != nil {
				return fmt.Errorf("invalid --company %q: %w", company, err)
			}
			declared, err := domain.ParseRecordType(recordType)
			if err != nil {
				return err
			}

			return withApp(cmd, func(ctx context.Context, application *app.App) error {
				job, err := application.Service.Submit(ctx, ingestion.SubmitRequest{
					CompanyID:   companyID,
					RecordType:  declared,
					StoragePath: path,
				})
				if err != nil {
					return err
				}
				if !runNow {
					return printOutput(cmd.OutOrStdout(), job, []string{"id", "company", "type", "status", "path"}, [][]string{
						{job.ID.String(), job.CompanyID.String(), string(job.DeclaredType), string(job.Status), job.StoragePath},
					})
				}

				result, runErr := application.Service.Run(ctx, ingestion.RunRequest{JobID: job.ID})
				if result.Status != "" {
					if err := printRunResult(cmd.OutOrStdout(), result); err != nil {
						return err
					}
				}
				return runErr
			})
		},
	}

	cmd.Flags().StringVar(&company, "company", "", "Owning company id")
	cmd.Flags().StringVar(&recordType, "type", "", "Declared record type, e.g. debt-service")
	cmd.Flags().StringVar(&path, "path", "", "Object path in the storage bucket")
	cmd.Flags().BoolVar(&runNow, "run", false, "Process the job immediately")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}
