package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/invoice-audit/internal/export"
	"github.com/sells-group/invoice-audit/internal/model"
	"github.com/sells-group/invoice-audit/internal/pipeline"
)

var (
	reportResults string
	reportOut     string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate an XLSX report from validation results",
	RunE: func(cmd *cobra.Command, _ []string) error {
		data, err := os.ReadFile(reportResults)
		if err != nil {
			return eris.Wrapf(err, "report: read %s", reportResults)
		}

		var results map[string]*model.Result
		if err := json.Unmarshal(data, &results); err != nil {
			return eris.Wrap(err, "report: parse results")
		}

		if err := export.WriteWorkbook(reportOut, results); err != nil {
			return err
		}

		printSummary(pipeline.Summarize(results))
		fmt.Printf("Report written to %s\n", reportOut)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportResults, "results", "results.json", "per-invoice results JSON produced by validate --out")
	reportCmd.Flags().StringVar(&reportOut, "out", "report.xlsx", "output workbook path")
	rootCmd.AddCommand(reportCmd)
}
