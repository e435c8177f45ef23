package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Garzer09/biz-data-guide-sub001/internal/app"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newJobsCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "jobs COMPANY_ID",
		Short: "List a company's import jobs, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			companyID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid company id %q: %w", args[0], err)
			}
			return withApp(cmd, func(ctx context.Context, application *app.App) error {
				jobs, err := application.Service.ListCompanyJobs(ctx, companyID, limit, offset)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						job.ID.String(),
						string(job.DeclaredType),
						string(job.Status),
						strconv.Itoa(job.TotalRows),
						strconv.Itoa(job.OKRows),
						strconv.Itoa(job.ErrorRows),
						job.CreatedAt.Format("2006-01-02 15:04"),
					})
				}
				return printOutput(cmd.OutOrStdout(), jobs, []string{"id", "type", "status", "total", "ok", "errors", "created"}, rows)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum jobs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Jobs to skip")
	return cmd
}

func newErrorsCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "errors JOB_ID",
		Short: "List the rows a job rejected",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid job id %q: %w", args[0], err)
			}
			return withApp(cmd, func(ctx context.Context, application *app.App) error {
				entries, err := application.Service.ListJobErrors(ctx, jobID, limit, offset)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					row := "-"
					if entry.RowNumber != nil {
						row = strconv.Itoa(*entry.RowNumber)
					}
					rows = append(rows, []string{row, entry.Kind, entry.Column, truncate(entry.ErrorMessage, 80)})
				}
				return printOutput(cmd.OutOrStdout(), entries, []string{"row", "kind", "column", "message"}, rows)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum entries to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Entries to skip")
	return cmd
}
