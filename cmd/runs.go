package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/invoice-audit/internal/model"
	"github.com/sells-group/invoice-audit/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect validation run history",
	Long:  "Commands for listing, viewing, and summarizing validation runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List validation runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		invoiceID, _ := cmd.Flags().GetString("invoice")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status:    model.RunStatus(status),
			InvoiceID: invoiceID,
			Limit:     limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		runs, err := st.ListRuns(ctx, store.RunFilter{Limit: 10000})
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatRunStats(os.Stdout, computeRunStats(runs))
		return nil
	},
}

// -- runs import --

var runsImportCmd = &cobra.Command{
	Use:   "import <results.json>",
	Short: "Backfill completed runs from a results file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "runs import: read %s", args[0])
		}
		var results map[string]*model.Result
		if err := json.Unmarshal(data, &results); err != nil {
			return eris.Wrap(err, "runs import: parse results")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		n, err := importRuns(ctx, st, results)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Imported %d runs.\n", n)
		return nil
	},
}

// importRuns backfills via COPY when the store supports it, otherwise
// one run at a time.
func importRuns(ctx context.Context, st store.Store, results map[string]*model.Result) (int64, error) {
	if pg, ok := st.(*store.PostgresStore); ok {
		return pg.ImportRuns(ctx, results)
	}

	var n int64
	for invoiceID, result := range results {
		run, err := st.CreateRun(ctx, invoiceID)
		if err != nil {
			return n, eris.Wrapf(err, "runs import: create run for %s", invoiceID)
		}
		if err := st.SaveResult(ctx, run.ID, result); err != nil {
			return n, eris.Wrapf(err, "runs import: save result for %s", invoiceID)
		}
		n++
	}
	return n, nil
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (queued, running, completed, failed)")
	runsListCmd.Flags().String("invoice", "", "filter by invoice ID")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	runsCmd.AddCommand(runsImportCmd)
	rootCmd.AddCommand(runsCmd)
}

// runStats holds aggregate statistics computed from a set of runs.
type runStats struct {
	Total       int
	Completed   int
	Failed      int
	Other       int
	Approved    int
	NeedsReview int
	Rejected    int
	AvgScore    float64
}

func computeRunStats(runs []model.Run) runStats {
	var s runStats
	s.Total = len(runs)

	var scoreSum float64
	var scored int

	for _, r := range runs {
		switch r.Status {
		case model.RunStatusCompleted:
			s.Completed++
			if r.Result != nil {
				scoreSum += r.Result.ConfidenceScore
				scored++
				switch r.Result.Status {
				case model.StatusApproved:
					s.Approved++
				case model.StatusNeedsReview:
					s.NeedsReview++
				case model.StatusRejected:
					s.Rejected++
				}
			}
		case model.RunStatusFailed:
			s.Failed++
		default:
			s.Other++
		}
	}

	if scored > 0 {
		s.AvgScore = scoreSum / float64(scored)
	}
	return s
}

func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Total runs\t%d\n", s.Total)
	fmt.Fprintf(w, "Completed\t%d\n", s.Completed)
	fmt.Fprintf(w, "Failed\t%d\n", s.Failed)
	fmt.Fprintf(w, "Other\t%d\n", s.Other)
	fmt.Fprintf(w, "Approved\t%d\n", s.Approved)
	fmt.Fprintf(w, "Needs review\t%d\n", s.NeedsReview)
	fmt.Fprintf(w, "Rejected\t%d\n", s.Rejected)
	fmt.Fprintf(w, "Avg confidence\t%.4f\n", s.AvgScore)
	_ = w.Flush()
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tINVOICE\tSTATUS\tOUTCOME\tSCORE\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t-------\t------\t-------\t-----\t-------")

	for _, r := range runs {
		outcome := ""
		score := ""
		if r.Result != nil {
			outcome = string(r.Result.Status)
			score = fmt.Sprintf("%.3f", r.Result.ConfidenceScore)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			r.InvoiceID,
			r.Status,
			outcome,
			score,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
