// Package export renders job records as spreadsheets for operators.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/sumire/verdictrelay/internal/domain"
)

const jobsSheet = "Jobs"

// JobLister lists recent jobs, newest first.
type JobLister interface {
	List(ctx context.Context, limit int) ([]domain.Job, error)
}

// Service produces XLSX bytes for job exports.
type Service struct {
	jobs   JobLister
	logger *slog.Logger
}

func NewService(jobs JobLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobs: jobs, logger: logger}
}

// ExportJobsXLSX returns a workbook with up to limit jobs.
func (s *Service) ExportJobsXLSX(ctx context.Context, limit int) ([]byte, error) {
	start := time.Now()

	jobs, err := s.jobs.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	// rename the default sheet so the workbook has a single named tab
	if err := f.SetSheetName(f.GetSheetName(0), jobsSheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	headers := []string{"Item ID", "Kind", "Status", "Created", "Updated", "Case Details", "Verdict", "Artifact"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(jobsSheet, cell, h)
	}

	for i, j := range jobs {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(jobsSheet, cell, v)
		}
		write(1, j.ID)
		write(2, string(j.Kind))
		write(3, string(j.Status))
		write(4, j.CreatedAt.UTC().Format(time.RFC3339))
		write(5, j.UpdatedAt.UTC().Format(time.RFC3339))
		write(6, truncate(j.CaseDetails, 500))
		write(7, truncate(j.Verdict, 500))
		write(8, j.ArtifactRef())
	}

	_ = f.SetColWidth(jobsSheet, "A", "A", 38)
	_ = f.SetColWidth(jobsSheet, "B", "C", 12)
	_ = f.SetColWidth(jobsSheet, "D", "E", 22)
	_ = f.SetColWidth(jobsSheet, "F", "G", 60)
	_ = f.SetColWidth(jobsSheet, "H", "H", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("jobs exported", "rows", len(jobs), "bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
