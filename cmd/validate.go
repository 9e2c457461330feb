package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/invoice-audit/internal/config"
	"github.com/sells-group/invoice-audit/internal/export"
	"github.com/sells-group/invoice-audit/internal/pipeline"
)

var (
	validateDataDir    string
	validateThresholds string
	validateOut        string
	validateReport     string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a batch of invoices against reference data",
	Long:  "Loads ground truth, the reference database, and extracted OCR results from the data directory, runs the discrepancy engine over every invoice, and persists one run per invoice.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if validateThresholds != "" {
			v, err := config.LoadThresholds(validateThresholds)
			if err != nil {
				return err
			}
			cfg.Validation = v
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		p := initProcessor(st, false)
		results, err := p.Run(ctx, validateDataDir)
		if err != nil {
			return eris.Wrap(err, "validate")
		}

		if validateOut != "" {
			if err := export.WriteResults(validateOut, results); err != nil {
				return err
			}
		}
		if validateReport != "" {
			if err := export.WriteWorkbook(validateReport, results); err != nil {
				return err
			}
		}

		printSummary(pipeline.Summarize(results))
		return nil
	},
}

func printSummary(s pipeline.Summary) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Total\t%d\n", s.Total)
	fmt.Fprintf(w, "Approved\t%d\n", s.Approved)
	fmt.Fprintf(w, "Needs review\t%d\n", s.NeedsReview)
	fmt.Fprintf(w, "Rejected\t%d\n", s.Rejected)
	fmt.Fprintf(w, "Avg confidence\t%.4f\n", s.AvgScore)
	_ = w.Flush()
}

func init() {
	validateCmd.Flags().StringVar(&validateDataDir, "data-dir", "data", "directory holding ground_truth.json, database.json, ocr_results.json")
	validateCmd.Flags().StringVar(&validateThresholds, "thresholds", "", "YAML file overriding validation thresholds")
	validateCmd.Flags().StringVar(&validateOut, "out", "", "write per-invoice results JSON to this path")
	validateCmd.Flags().StringVar(&validateReport, "report", "", "write XLSX report to this path")
	rootCmd.AddCommand(validateCmd)
}
