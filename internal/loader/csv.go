package loader

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/Veraticus/contaflow/internal/model"
	"github.com/spf13/afero"
)

// CSVSource reads spreadsheet claims from a delimited text export.
// The delimiter is sniffed from the header line: ';' or ','.
type CSVSource struct {
	fs   afero.Fs
	path string
}

// NewCSVSource creates a source for path.
func NewCSVSource(fs afero.Fs, path string) *CSVSource {
	return &CSVSource{fs: fs, path: path}
}

// Name returns the file name used in record positions.
func (s *CSVSource) Name() string {
	return filepath.Base(s.path)
}

// Origin implements Source.
func (s *CSVSource) Origin() model.Origin {
	return model.OriginSpreadsheet
}

// Load reads every non-blank line after the header line.
func (s *CSVSource) Load(ctx context.Context, company model.CompanyProfile) ([]model.SourceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := s.fs.Open(s.path)
	if err != nil {
		return nil, unreadable(s.path, err)
	}
	defer func() { _ = file.Close() }()

	br := bufio.NewReader(file)
	first, _ := br.Peek(4096)

	r := csv.NewReader(br)
	r.Comma = sniffDelimiter(string(first))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	var lines []int
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, unreadable(s.path, err)
		}
		line, _ := r.FieldPos(0)
		rows = append(rows, row)
		lines = append(lines, line)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}

	h := headerIndex(rows)
	if h < 0 {
		return nil, nil
	}

	return rowRecords(s.Name(), company, rows[h], rows[h+1:], func(i int) int {
		return lines[h+1+i]
	}), nil
}

func sniffDelimiter(sample string) rune {
	line, _, _ := strings.Cut(sample, "\n")
	if strings.Count(line, ";") > strings.Count(line, ",") {
		return ';'
	}
	return ','
}
