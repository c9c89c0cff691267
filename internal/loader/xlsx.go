package loader

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Veraticus/contaflow/internal/model"
	"github.com/spf13/afero"
	"github.com/xuri/excelize/v2"
)

// XLSXSource reads spreadsheet claims from an Excel workbook.
type XLSXSource struct {
	fs    afero.Fs
	path  string
	sheet string
}

// NewXLSXSource creates a source for path. An empty sheet means the first sheet.
func NewXLSXSource(fs afero.Fs, path, sheet string) *XLSXSource {
	return &XLSXSource{fs: fs, path: path, sheet: sheet}
}

// Name returns the file name used in record positions.
func (s *XLSXSource) Name() string {
	return filepath.Base(s.path)
}

// Origin implements Source.
func (s *XLSXSource) Origin() model.Origin {
	return model.OriginSpreadsheet
}

// Load reads every non-blank row after the header row.
func (s *XLSXSource) Load(ctx context.Context, company model.CompanyProfile) ([]model.SourceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := s.fs.Open(s.path)
	if err != nil {
		return nil, unreadable(s.path, err)
	}
	defer func() { _ = file.Close() }()

	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, unreadable(s.path, err)
	}
	defer func() { _ = f.Close() }()

	sheet := s.sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if sheet == "" {
		return nil, unreadable(s.path, fmt.Errorf("workbook has no sheets"))
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, unreadable(s.path, err)
	}

	h := headerIndex(rows)
	if h < 0 {
		return nil, nil
	}

	// Sheet rows are 1-based; the first data row sits right below the header.
	return rowRecords(s.Name(), company, rows[h], rows[h+1:], func(i int) int {
		return h + i + 2
	}), nil
}
