package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	validateSchema  bool
	validateTimeout time.Duration
)

var validateCmd = &cobra.Command{
	Use:   "validate [files...]",
	Short: "Validate ISDOC documents",
	Long: `Validate one or more ISDOC documents.

Checks performed:
  - Well-formed XML with a single root element
  - Required elements present (ID, UUID, IssueDate, parties, totals...)
  - Invoice version 6.0.2 and the ISDOC namespace
  - With --schema: element order and content against the published XSD

Examples:
  isdoc-export validate invoice_FV-2024-001.isdoc
  isdoc-export validate out/ --schema
  isdoc-export validate *.isdoc -f table`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateSchema, "schema", false, "Also validate against the published XSD")
	validateCmd.Flags().DurationVar(&validateTimeout, "timeout", 30*time.Second, "Validation timeout per file")
}

// ValidationResult holds the result of validating a single file
type ValidationResult struct {
	File      string   `json:"file" yaml:"file"`
	Valid     bool     `json:"valid" yaml:"valid"`
	Validator string   `json:"validator,omitempty" yaml:"validator,omitempty"`
	Errors    []string `json:"errors" yaml:"errors"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args, ".isdoc", ".xml")
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found to validate")
	}

	v, err := exportValidator(validateSchema || cfg.Validation.Schema)
	if err != nil {
		return err
	}

	results := make([]*ValidationResult, 0, len(files))
	allValid := true
	for _, file := range files {
		printVerbose("Validating: %s\n", file)

		result := &ValidationResult{File: file, Errors: []string{}}
		results = append(results, result)

		data, err := os.ReadFile(file)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to read file: %v", err))
			allValid = false
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), validateTimeout)
		res, err := v.Validate(ctx, data)
		cancel()
		if err != nil {
			// the schema could not be loaded; no point checking the rest
			return err
		}

		result.Valid = res.Valid
		result.Validator = res.Validator
		result.Errors = append(result.Errors, res.Errors...)
		if !res.Valid {
			allValid = false
		}
	}

	if err := output(os.Stdout, results, func(w io.Writer) error {
		for _, r := range results {
			if r.Valid {
				fmt.Fprintf(w, "✓ %s: VALID\n", r.File)
				continue
			}
			fmt.Fprintf(w, "✗ %s: INVALID\n", r.File)
			for _, e := range r.Errors {
				fmt.Fprintf(w, "  - %s\n", e)
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if !allValid {
		return fmt.Errorf("validation failed for some files")
	}
	return nil
}
