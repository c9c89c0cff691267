// Package report writes reconciliation results to files.
package report

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/Veraticus/contaflow/internal/model"
	"github.com/spf13/afero"
	"github.com/xuri/excelize/v2"
)

// Sheet names in workbook order.
const (
	SheetMatched      = "Matched"
	SheetUnmatched    = "Unmatched"
	SheetManualReview = "ManualReview"
	SheetSummary      = "Summary"
	SheetRejected     = "Rejected"
)

// SheetFor returns the sheet name for a reportable bucket.
func SheetFor(b model.Bucket) string {
	switch b {
	case model.BucketMatched:
		return SheetMatched
	case model.BucketUnmatched:
		return SheetUnmatched
	case model.BucketManualReview:
		return SheetManualReview
	}
	return ""
}

// WorkbookWriter writes one workbook per company into a directory.
type WorkbookWriter struct {
	fs  afero.Fs
	dir string
}

// NewWorkbookWriter creates a writer for dir. A nil fs writes to disk.
func NewWorkbookWriter(fs afero.Fs, dir string) *WorkbookWriter {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &WorkbookWriter{fs: fs, dir: dir}
}

// FileName returns the workbook name for a company and period.
func FileName(company string, period model.Period) string {
	return fmt.Sprintf("%s_%s.xlsx", company, period.String())
}

// WriteAll writes a workbook for every complete company and returns the
// paths written. Failed companies get no workbook. A workbook that cannot be
// written is returned as a failure for its company and the rest still run.
func (w *WorkbookWriter) WriteAll(report *model.RunReport) ([]string, []model.Failure) {
	var written []string
	var failures []model.Failure
	for _, c := range report.Companies {
		if c.Failure != nil {
			continue
		}
		path, err := w.Write(c, report.Summary.Period)
		if err != nil {
			slog.Error("Failed to write workbook", "company", c.Company.ID, "error", err)
			failures = append(failures, model.Failure{
				Company: c.Company.ID,
				Kind:    model.FailureOutput,
				Detail:  err.Error(),
			})
			continue
		}
		written = append(written, path)
	}
	return written, failures
}

// Write builds and saves the workbook for one company.
func (w *WorkbookWriter) Write(result model.CompanyResult, period model.Period) (string, error) {
	f, err := Build(result, period)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	if err := w.fs.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(w.dir, FileName(result.Company.ID, period))
	out, err := w.fs.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := f.WriteTo(out); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}

	slog.Info("Wrote workbook", "company", result.Company.ID, "path", path)
	return path, nil
}

// Build creates the in-memory workbook for one company.
func Build(result model.CompanyResult, period model.Period) (*excelize.File, error) {
	f := excelize.NewFile()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, bucket := range model.Buckets {
		name := SheetFor(bucket)
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				_ = f.Close()
				return nil, err
			}
		} else if _, err := f.NewSheet(name); err != nil {
			_ = f.Close()
			return nil, err
		}

		rows := result.Rows(bucket)
		data := make([][]string, 0, len(rows))
		for _, r := range rows {
			data = append(data, r.Cells())
		}
		if err := writeTable(f, name, model.RowHeader, data, header); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	if err := writeSummary(f, result, period, header); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := writeRejected(f, result.Rejections, header); err != nil {
		_ = f.Close()
		return nil, err
	}

	f.SetActiveSheet(0)
	return f, nil
}

func writeSummary(f *excelize.File, result model.CompanyResult, period model.Period, header int) error {
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return err
	}
	s := result.Summary
	data := [][]string{
		{"Company", result.Company.DisplayName()},
		{"Company ID", result.Company.ID},
		{"Activity Code", result.Company.ActivityCode},
		{"Period", period.String()},
		{"Directory", result.Dir},
		{"Status", string(s.Status)},
		{"Loaded", strconv.Itoa(s.Loaded)},
		{"Matched", strconv.Itoa(s.Counts.Matched)},
		{"Matched Pairs", strconv.Itoa(s.MatchedPairs)},
		{"Unmatched", strconv.Itoa(s.Counts.Unmatched)},
		{"Manual Review", strconv.Itoa(s.Counts.ManualReview)},
		{"Out Of Period", strconv.Itoa(s.OutOfPeriod)},
		{"Duplicates", strconv.Itoa(s.Duplicates)},
		{"Rejected", strconv.Itoa(s.Rejected)},
	}
	return writeTable(f, SheetSummary, []string{"Metric", "Value"}, data, header)
}

func writeRejected(f *excelize.File, rejections []model.Rejection, header int) error {
	if _, err := f.NewSheet(SheetRejected); err != nil {
		return err
	}
	data := make([][]string, 0, len(rejections))
	for _, r := range rejections {
		data = append(data, []string{string(r.Origin), r.Position.String(), r.Detail})
	}
	return writeTable(f, SheetRejected, []string{"Origin", "Position", "Detail"}, data, header)
}

func writeTable(f *excelize.File, sheet string, header []string, data [][]string, style int) error {
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}
	for i, row := range data {
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 18); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}
