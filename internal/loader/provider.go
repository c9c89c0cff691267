package loader

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Veraticus/contaflow/internal/model"
	"github.com/Veraticus/contaflow/internal/paths"
	"github.com/spf13/afero"
)

// Provider hands the engine the record sources for one company.
type Provider interface {
	SpreadsheetSources(ctx context.Context, company model.CompanyProfile, period model.Period) ([]Source, error)
	AuthoritativeSources(ctx context.Context, company model.CompanyProfile, dir string) ([]Source, error)
}

// FileProvider finds sources on a filesystem. Spreadsheet sources come from
// the company's own glob templates, or from the shared inputs when the
// company has none.
type FileProvider struct {
	fs     afero.Fs
	inputs []string
}

// NewFileProvider creates a provider over fsys. inputs are shared
// spreadsheet globs used by companies without their own.
func NewFileProvider(fsys afero.Fs, inputs ...string) *FileProvider {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &FileProvider{fs: fsys, inputs: inputs}
}

// SpreadsheetSources expands the company's spreadsheet globs for period.
func (p *FileProvider) SpreadsheetSources(ctx context.Context, company model.CompanyProfile, period model.Period) ([]Source, error) {
	templates := company.SpreadsheetPaths
	if len(templates) == 0 {
		templates = p.inputs
	}

	seen := make(map[string]bool)
	var files []string
	for _, tmpl := range templates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pattern := paths.Expand(tmpl, period)
		matches, err := afero.Glob(p.fs, pattern)
		if err != nil {
			return nil, fmt.Errorf("bad spreadsheet pattern %q: %w", tmpl, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)

	sources := make([]Source, 0, len(files))
	for _, file := range files {
		src := SpreadsheetSourceFor(p.fs, file)
		if src == nil {
			slog.Debug("skipping unsupported spreadsheet", "company", company.ID, "file", file)
			continue
		}
		sources = append(sources, src)
	}
	if len(sources) == 0 {
		slog.Warn("no spreadsheet sources found", "company", company.ID, "patterns", templates)
	}
	return sources, nil
}

// AuthoritativeSources walks dir recursively for XML invoices, sorted by path.
func (p *FileProvider) AuthoritativeSources(ctx context.Context, company model.CompanyProfile, dir string) ([]Source, error) {
	var files []string
	err := afero.Walk(p.fs, dir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !info.IsDir() && strings.EqualFold(filepath.Ext(path), ".xml") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, unreadable(dir, err)
	}
	sort.Strings(files)

	sources := make([]Source, 0, len(files))
	for _, file := range files {
		sources = append(sources, NewXMLSource(p.fs, file))
	}
	slog.Debug("found authoritative sources", "company", company.ID, "dir", dir, "files", len(sources))
	return sources, nil
}

// SpreadsheetSourceFor picks a source by file extension, or nil when the
// extension is not supported.
func SpreadsheetSourceFor(fsys afero.Fs, path string) Source {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return NewXLSXSource(fsys, path, "")
	case ".csv", ".txt":
		return NewCSVSource(fsys, path)
	case ".ofx", ".qfx":
		return NewOFXSource(fsys, path)
	}
	return nil
}
