package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/isdoc-export/internal/export"
	"github.com/rezonia/isdoc-export/internal/metrics"
	"github.com/rezonia/isdoc-export/internal/model"
	"github.com/rezonia/isdoc-export/internal/schema"
	"github.com/rezonia/isdoc-export/internal/validator"
)

var (
	profileFile  string
	outputDir    string
	failuresFile string
	concurrency  int
	timeout      time.Duration
	withSchema   bool
	dryRun       bool

	profileFlags model.Profile
)

var exportCmd = &cobra.Command{
	Use:   "export [files...]",
	Short: "Export transactions as ISDOC documents",
	Long: `Export one or more transactions as ISDOC 6.0.2 invoice documents.

Input files hold a single transaction object or an array of them.
Directories are searched for .json files.

Every document is validated before it is written. A transaction that
cannot be exported is reported as a failure without stopping the batch.

Examples:
  isdoc-export export tx.json --profile profile.json
  isdoc-export export transactions/ -o out/ --concurrency 4
  isdoc-export export tx.json --business-name "Moje Firma s.r.o." --business-address "Dlouhá 12, Praha"
  isdoc-export export tx.json --profile profile.json --failures failures.csv -f table`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&profileFile, "profile", "p", "", "Business profile JSON file")
	exportCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for generated files (default: export.output_dir)")
	exportCmd.Flags().StringVar(&failuresFile, "failures", "", "Write failures as CSV to this file")
	exportCmd.Flags().IntVar(&concurrency, "concurrency", 0, "Number of export workers (default: export.concurrency)")
	exportCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Timeout for the whole export")
	exportCmd.Flags().BoolVar(&withSchema, "schema", false, "Also validate against the published XSD")
	exportCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate without writing files")

	exportCmd.Flags().StringVar(&profileFlags.BusinessName, "business-name", "", "Supplier name")
	exportCmd.Flags().StringVar(&profileFlags.BusinessAddress, "business-address", "", "Supplier address")
	exportCmd.Flags().StringVar(&profileFlags.BusinessIC, "business-ic", "", "Supplier IČO")
	exportCmd.Flags().StringVar(&profileFlags.BusinessDIC, "business-dic", "", "Supplier DIČ")
	exportCmd.Flags().StringVar(&profileFlags.BankAccount, "bank-account", "", "Supplier bank account")
	exportCmd.Flags().StringVar(&profileFlags.BankCode, "bank-code", "", "Supplier bank code")
}

// ExportReport is the printed outcome of an export run
type ExportReport struct {
	BatchID  string           `json:"batch_id" yaml:"batch_id"`
	Files    []ExportedFile   `json:"files" yaml:"files"`
	Failures []export.Failure `json:"failures" yaml:"failures"`
}

// ExportedFile is one written document
type ExportedFile struct {
	File          string `json:"file" yaml:"file"`
	TransactionID string `json:"transaction_id" yaml:"transaction_id"`
	InvoiceID     string `json:"invoice_id" yaml:"invoice_id"`
}

func runExport(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args, ".json")
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no transaction files found")
	}

	profile, err := loadProfile()
	if err != nil {
		return err
	}

	var txs []*model.Transaction
	for _, file := range files {
		printVerbose("Reading: %s\n", file)
		loaded, err := readTransactions(file)
		if err != nil {
			return err
		}
		txs = append(txs, loaded...)
	}
	printVerbose("Found %d transactions in %d files\n", len(txs), len(files))

	workers := concurrency
	if workers <= 0 {
		workers = cfg.Export.Concurrency
	}

	v, err := exportValidator(withSchema || cfg.Validation.Schema)
	if err != nil {
		return err
	}

	exporter := export.New(
		export.WithValidator(v),
		export.WithConcurrency(workers),
		export.WithMetrics(metrics.New()),
		export.WithLogger(log),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, exportErr := exporter.ExportBatch(ctx, txs, profile)
	if res == nil {
		return exportErr
	}

	report := ExportReport{BatchID: res.BatchID, Files: []ExportedFile{}, Failures: res.Failures}
	if report.Failures == nil {
		report.Failures = []export.Failure{}
	}

	dir := outputDir
	if dir == "" {
		dir = cfg.Export.OutputDir
	}
	paths := make([]string, len(res.Files))
	if !dryRun && len(res.Files) > 0 {
		paths, err = export.WriteFiles(dir, res.Files)
		if err != nil {
			return err
		}
	}
	for i, f := range res.Files {
		path := paths[i]
		if path == "" {
			path = filepath.Join(dir, f.FileName)
		}
		report.Files = append(report.Files, ExportedFile{
			File:          path,
			TransactionID: f.TransactionID,
			InvoiceID:     f.InvoiceID,
		})
	}

	if failuresFile != "" && len(res.Failures) > 0 {
		if err := writeFailures(failuresFile, res.Failures); err != nil {
			return err
		}
	}

	if err := output(os.Stdout, report, report.table); err != nil {
		return err
	}

	if exportErr != nil {
		return exportErr
	}
	return nil
}

func (r ExportReport) table(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TRANSACTION\tINVOICE\tFILE\tSTATUS")
	fmt.Fprintln(tw, "-----------\t-------\t----\t------")

	for _, f := range r.Files {
		fmt.Fprintf(tw, "%s\t%s\t%s\tOK\n", f.TransactionID, f.InvoiceID, f.File)
	}
	for _, f := range r.Failures {
		fmt.Fprintf(tw, "%s\t\t\tERROR: %s\n", f.TransactionID, f.Message)
	}

	return tw.Flush()
}

// loadProfile reads --profile and lets the individual flags override it
func loadProfile() (*model.Profile, error) {
	var profile model.Profile
	if profileFile != "" {
		data, err := os.ReadFile(profileFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read profile: %w", err)
		}
		if err := json.Unmarshal(data, &profile); err != nil {
			return nil, fmt.Errorf("failed to parse profile %s: %w", profileFile, err)
		}
	}

	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&profile.BusinessName, profileFlags.BusinessName)
	override(&profile.BusinessAddress, profileFlags.BusinessAddress)
	override(&profile.BusinessIC, profileFlags.BusinessIC)
	override(&profile.BusinessDIC, profileFlags.BusinessDIC)
	override(&profile.BankAccount, profileFlags.BankAccount)
	override(&profile.BankCode, profileFlags.BankCode)

	if profile == (model.Profile{}) {
		return nil, fmt.Errorf("a business profile is required (--profile or --business-name)")
	}
	return &profile, nil
}

// readTransactions accepts a single transaction object or an array
func readTransactions(path string) ([]*model.Transaction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var txs []*model.Transaction
		if err := json.Unmarshal(data, &txs); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return txs, nil
	}

	var tx model.Transaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return []*model.Transaction{&tx}, nil
}

func writeFailures(path string, failures []export.Failure) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create failures file: %w", err)
	}
	defer f.Close()

	if err := export.WriteFailuresCSV(f, failures); err != nil {
		return err
	}
	printVerbose("Wrote %d failures to %s\n", len(failures), path)
	return nil
}

// exportValidator is the structural check, chained with the XSD check when enabled
func exportValidator(schemaEnabled bool) (validator.Validator, error) {
	structural := validator.NewStructural()
	if !schemaEnabled {
		return structural, nil
	}
	if cfg.Validation.SchemaURL == "" {
		return nil, errors.New("schema validation requires validation.schema_url")
	}

	cache := schema.NewCache(
		schema.NewHTTPFetcher(cfg.Validation.SchemaURL, cfg.Validation.Timeout),
		schema.WithLogger(log),
	)
	return validator.NewChain(structural, validator.NewSchema(cache, validator.WithSchemaLogger(log))), nil
}
