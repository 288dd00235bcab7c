package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rezonia/isdoc-export/internal/config"
	"github.com/rezonia/isdoc-export/internal/logger"
)

var (
	version = "1.0.0"

	// Global flags
	verbose      bool
	outputFormat string
	configFile   string

	cfg *config.Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "isdoc-export",
	Short: "Export transactions as ISDOC 6.0.2 e-invoices",
	Long: `ISDOC Export turns stored transactions into Czech ISDOC 6.0.2 invoice documents.

Supports:
  - Single and batch export from transaction JSON
  - Structural validation and optional XSD validation
  - Inspection of existing .isdoc files
  - An HTTP API with Prometheus metrics

Examples:
  # Export a file of transactions
  isdoc-export export transactions.json --profile profile.json -o out/

  # Validate generated documents
  isdoc-export validate out/*.isdoc

  # Show a summary of a document
  isdoc-export info out/invoice_FV-2024-001.isdoc -f table

  # Start the API server
  isdoc-export serve --address :8080`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "json", "Output format (json, yaml, table)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: ./config.yaml or $HOME/.isdoc-export/config.yaml)")
}

func initConfig() error {
	loaded, err := config.Load(configFile)
	if err != nil {
		return err
	}
	cfg = loaded

	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Format = cfg.Log.Format
	if verbose {
		logCfg.Level = "debug"
	}
	log = logger.New(logCfg)

	switch outputFormat {
	case "json", "yaml", "table":
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", outputFormat)
	}
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
