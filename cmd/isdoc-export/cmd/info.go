package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rezonia/isdoc-export/internal/isdoc"
)

var infoCmd = &cobra.Command{
	Use:   "info [files...]",
	Short: "Show information about ISDOC documents",
	Long: `Display a summary of ISDOC documents without validating them.

Shows:
  - Document version, ID, UUID and issue date
  - Supplier and customer
  - Line count, VAT rates and totals
  - Payment account

Documents in windows-1250 or ISO-8859-2 are decoded automatically.

Examples:
  isdoc-export info invoice_FV-2024-001.isdoc
  isdoc-export info out/ -f table`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

// FileInfo is the summary of one document
type FileInfo struct {
	File           string `json:"file" yaml:"file"`
	Size           int64  `json:"size" yaml:"size"`
	*isdoc.Summary `yaml:",inline"`
	Error          string `json:"error,omitempty" yaml:"error,omitempty"`
}

func runInfo(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args, ".isdoc", ".xml")
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found")
	}

	infos := make([]*FileInfo, 0, len(files))
	for _, file := range files {
		infos = append(infos, fileInfo(file))
	}

	return output(os.Stdout, infos, func(w io.Writer) error {
		return infoTable(w, infos)
	})
}

func fileInfo(path string) *FileInfo {
	info := &FileInfo{File: path}

	stat, err := os.Stat(path)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	info.Size = stat.Size()

	data, err := os.ReadFile(path)
	if err != nil {
		info.Error = fmt.Sprintf("failed to read file: %v", err)
		return info
	}

	summary, err := isdoc.Inspect(data)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	info.Summary = summary
	return info
}

func infoTable(w io.Writer, infos []*FileInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tID\tDATE\tSUPPLIER\tCUSTOMER\tLINES\tVAT RATES\tVAT\tPAYABLE\tCURRENCY")
	fmt.Fprintln(tw, "----\t--\t----\t--------\t--------\t-----\t---------\t---\t-------\t--------")

	for _, i := range infos {
		if i.Summary == nil {
			fmt.Fprintf(tw, "%s\tERROR: %s\t\t\t\t\t\t\t\t\n", i.File, i.Error)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			i.File,
			i.ID,
			i.IssueDate,
			i.SupplierName,
			i.CustomerName,
			i.LineCount,
			strings.Join(i.TaxRates, ","),
			i.TotalVAT,
			i.Payable,
			i.Currency,
		)
	}

	return tw.Flush()
}
