package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/invoice-audit/internal/normalize"
	"github.com/sells-group/invoice-audit/internal/predictor"
	"github.com/sells-group/invoice-audit/internal/refdata"
)

var (
	traindataDataDir string
	traindataOut     string
)

var traindataCmd = &cobra.Command{
	Use:   "traindata",
	Short: "Build labeled feature rows for the confidence predictor",
	Long:  "Joins ground truth with extracted documents and emits one labeled feature row per scalar field per invoice. Model fitting happens offline; the fitted weights feed back in via pipeline.model_path.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		bundle, err := refdata.LoadAll(traindataDataDir)
		if err != nil {
			return err
		}

		rows := predictor.BuildTrainingRows(
			normalize.Default(),
			cfg.Validation,
			bundle.GroundTruth,
			bundle.Documents,
		)

		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return eris.Wrap(err, "traindata: marshal rows")
		}
		if err := os.WriteFile(traindataOut, data, 0o644); err != nil {
			return eris.Wrapf(err, "traindata: write %s", traindataOut)
		}

		fmt.Printf("Wrote %d training rows to %s\n", len(rows), traindataOut)
		return nil
	},
}

func init() {
	traindataCmd.Flags().StringVar(&traindataDataDir, "data-dir", "data", "directory holding ground_truth.json, database.json, ocr_results.json")
	traindataCmd.Flags().StringVar(&traindataOut, "out", "training_rows.json", "output path for labeled rows")
	rootCmd.AddCommand(traindataCmd)
}
