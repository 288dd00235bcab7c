package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
)

// WriteFailuresCSV writes the failure list with a header row
func WriteFailuresCSV(w io.Writer, failures []Failure) error {
	if failures == nil {
		failures = []Failure{}
	}
	csvWriter := csv.NewWriter(w)
	if err := gocsv.MarshalCSV(failures, gocsv.NewSafeCSVWriter(csvWriter)); err != nil {
		return fmt.Errorf("error writing failures CSV: %w", err)
	}
	return nil
}

// ReadFailuresCSV parses a report written by WriteFailuresCSV
func ReadFailuresCSV(r io.Reader) ([]Failure, error) {
	var failures []Failure
	if err := gocsv.Unmarshal(r, &failures); err != nil {
		return nil, fmt.Errorf("error reading failures CSV: %w", err)
	}
	return failures, nil
}

// WriteFiles stores every exported file in dir, creating it if needed,
// and returns the written paths
func WriteFiles(dir string, files []File) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, filepath.Base(f.FileName))
		if err := os.WriteFile(path, f.Content, 0o644); err != nil {
			return paths, fmt.Errorf("failed to write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
