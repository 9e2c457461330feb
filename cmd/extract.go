package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/invoice-audit/internal/refdata"
)

var (
	extractRawPath string
	extractOut     string
	extractNoReOCR bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract structured fields from raw OCR output",
	Long:  "Reads per-invoice OCR lines and tokens, locates invoice fields by label anchoring and spatial fallbacks, and writes structured documents. Rendered page images enable targeted re-OCR passes.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		raw, err := refdata.LoadRaw(extractRawPath)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		p := initProcessor(st, !extractNoReOCR)
		docs, err := p.ExtractAll(ctx, raw)
		if err != nil {
			return eris.Wrap(err, "extract")
		}

		data, err := json.MarshalIndent(docs, "", "  ")
		if err != nil {
			return eris.Wrap(err, "extract: marshal documents")
		}
		if err := os.WriteFile(extractOut, data, 0o644); err != nil {
			return eris.Wrapf(err, "extract: write %s", extractOut)
		}

		fmt.Printf("Extracted %d invoices to %s\n", len(docs), extractOut)
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractRawPath, "raw", "data/raw_ocr.json", "per-invoice raw OCR lines/tokens JSON")
	extractCmd.Flags().StringVar(&extractOut, "out", "data/ocr_results.json", "output path for structured documents")
	extractCmd.Flags().BoolVar(&extractNoReOCR, "no-reocr", false, "disable the targeted re-OCR fallback passes")
	rootCmd.AddCommand(extractCmd)
}
