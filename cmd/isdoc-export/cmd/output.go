package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

func outputJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func outputYAML(w io.Writer, v any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	return encoder.Close()
}

// output writes v as json or yaml; table rendering is left to each command
func output(w io.Writer, v any, table func(io.Writer) error) error {
	switch outputFormat {
	case "json":
		return outputJSON(w, v)
	case "yaml":
		return outputYAML(w, v)
	case "table":
		return table(w)
	default:
		return fmt.Errorf("unsupported output format: %s", outputFormat)
	}
}

// collectFiles expands globs and walks directories, keeping files whose
// extension is in exts. A plain file path is taken as given.
func collectFiles(args []string, exts ...string) ([]string, error) {
	var files []string

	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", arg, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("file not found: %s", arg)
		}
		literal := len(matches) == 1 && matches[0] == arg

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil {
				continue
			}

			if info.IsDir() {
				err := filepath.Walk(match, func(path string, info os.FileInfo, err error) error {
					if err != nil {
						return err
					}
					if !info.IsDir() && hasExtension(path, exts) {
						files = append(files, path)
					}
					return nil
				})
				if err != nil {
					return nil, err
				}
				continue
			}

			if literal || hasExtension(match, exts) {
				files = append(files, match)
			}
		}
	}

	return files, nil
}

func hasExtension(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
