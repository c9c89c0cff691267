// Package paths resolves the per-company directory holding authoritative
// records for a period.
package paths

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Veraticus/contaflow/internal/common"
	"github.com/Veraticus/contaflow/internal/config"
	"github.com/Veraticus/contaflow/internal/model"
	"github.com/spf13/afero"
)

var errNotDir = errors.New("not a directory")

var placeholders = []string{"{year}", "{month}", "{YYYY}", "{MM}"}

// Build substitutes the period into a base-path template. {year} and
// {YYYY} become the 4-digit year, {month} and {MM} the zero-padded month.
// A template without placeholders gets <year>/<month> appended.
func Build(template string, p model.Period) (string, error) {
	if strings.TrimSpace(template) == "" {
		return "", &common.ConfigurationError{Field: "base_path", Reason: "base-path template is empty"}
	}
	if err := p.Validate(); err != nil {
		return "", err
	}

	year := fmt.Sprintf("%04d", p.Year)
	month := fmt.Sprintf("%02d", p.Month)

	if !HasPlaceholder(template) {
		return filepath.Join(config.ExpandPath(template), year, month), nil
	}

	r := strings.NewReplacer(
		"{year}", year,
		"{YYYY}", year,
		"{month}", month,
		"{MM}", month,
	)
	return filepath.Clean(config.ExpandPath(r.Replace(template))), nil
}

// Expand substitutes the period into a template without appending the
// conventional layout. Used for spreadsheet glob templates.
func Expand(template string, p model.Period) string {
	r := strings.NewReplacer(
		"{year}", fmt.Sprintf("%04d", p.Year),
		"{YYYY}", fmt.Sprintf("%04d", p.Year),
		"{month}", fmt.Sprintf("%02d", p.Month),
		"{MM}", fmt.Sprintf("%02d", p.Month),
	)
	return config.ExpandPath(r.Replace(template))
}

// HasPlaceholder reports whether template references the period.
func HasPlaceholder(template string) bool {
	for _, ph := range placeholders {
		if strings.Contains(template, ph) {
			return true
		}
	}
	return false
}

// Resolver checks built paths against a filesystem.
type Resolver struct {
	fs afero.Fs
}

// NewResolver creates a resolver over fs. A nil fs means the OS filesystem.
func NewResolver(fs afero.Fs) *Resolver {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Resolver{fs: fs}
}

// Resolve returns the directory holding company's records for period.
func (r *Resolver) Resolve(company model.CompanyProfile, period model.Period) (string, error) {
	dir, err := Build(company.BasePathTemplate, period)
	if err != nil {
		var ce *common.ConfigurationError
		if errors.As(err, &ce) && ce.Company == "" {
			ce.Company = company.ID
		}
		return "", err
	}

	info, err := r.fs.Stat(dir)
	if err != nil {
		return "", &common.PathNotFoundError{Company: company.ID, Path: dir, Err: err}
	}
	if !info.IsDir() {
		return "", &common.PathNotFoundError{
			Company: company.ID,
			Path:    dir,
			Err:     errNotDir,
		}
	}

	f, err := r.fs.Open(dir)
	if err != nil {
		return "", &common.PathNotFoundError{Company: company.ID, Path: dir, Err: err}
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Readdirnames(-1); err != nil {
		return "", &common.PathNotFoundError{Company: company.ID, Path: dir, Err: err}
	}

	return dir, nil
}

// Fs exposes the underlying filesystem.
func (r *Resolver) Fs() afero.Fs {
	return r.fs
}
