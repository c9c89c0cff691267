package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/Veraticus/contaflow/internal/model"
	"github.com/spf13/afero"
)

// FailuresFile is the name of the failure list written next to workbooks.
const FailuresFile = "failures.json"

// WriteFailures writes failures as an indented JSON array. An empty run
// writes "[]".
func WriteFailures(w io.Writer, failures []model.Failure) error {
	if failures == nil {
		failures = []model.Failure{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(failures); err != nil {
		return fmt.Errorf("failed to encode failures: %w", err)
	}
	return nil
}

// WriteFailuresFile writes the failure list into dir and returns its path.
func WriteFailuresFile(fs afero.Fs, dir string, failures []model.Failure) (string, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, FailuresFile)
	f, err := fs.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteFailures(f, failures); err != nil {
		_ = f.Close()
		return "", err
	}
	return path, f.Close()
}
