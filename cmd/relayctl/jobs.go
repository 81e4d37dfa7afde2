package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/sumire/verdictrelay/internal/config"
	"github.com/sumire/verdictrelay/internal/export"
	"github.com/sumire/verdictrelay/internal/repository"
)

func openJobs(ctx context.Context) (*sqlx.DB, *repository.JobRepository, error) {
	cfg, err := config.LoadOperator()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := repository.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return db, repository.NewJobRepository(db), nil
}

func jobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect a single generation job",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get [item-id]",
		Short: "Print a job as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, jobs, err := openJobs(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			job, err := jobs.FindByID(ctx, args[0])
			if err != nil {
				return fmt.Errorf("job %s: %w", args[0], err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(job)
		},
	})
	return cmd
}

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Work with the job store",
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export recent jobs to an XLSX workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			limit, _ := cmd.Flags().GetInt("limit")

			ctx := cmd.Context()
			db, jobs, err := openJobs(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			raw, err := export.NewService(jobs, nil).ExportJobsXLSX(ctx, limit)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, raw, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", out, len(raw))
			return nil
		},
	}
	exportCmd.Flags().StringP("out", "o", "jobs.xlsx", "Output file")
	exportCmd.Flags().IntP("limit", "n", 1000, "Maximum jobs, newest first")

	cmd.AddCommand(exportCmd)
	return cmd
}
