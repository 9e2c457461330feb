// Package export writes batch validation outcomes to files: an XLSX
// workbook for reviewers and a JSON results document matching the
// persisted ocr-results layout.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/invoice-audit/internal/model"
	"github.com/sells-group/invoice-audit/internal/pipeline"
)

// WriteWorkbook writes a three-sheet report: batch summary, one row
// per invoice, and one row per discrepancy.
func WriteWorkbook(path string, results map[string]*model.Result) error {
	f := xlsx.NewFile()

	if err := addSummarySheet(f, results); err != nil {
		return err
	}
	if err := addInvoiceSheet(f, results); err != nil {
		return err
	}
	if err := addDiscrepancySheet(f, results); err != nil {
		return err
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save workbook %s", path)
	}
	return nil
}

func addSummarySheet(f *xlsx.File, results map[string]*model.Result) error {
	sheet, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}

	s := pipeline.Summarize(results)
	for _, row := range [][2]string{
		{"Total invoices", fmt.Sprintf("%d", s.Total)},
		{"Approved", fmt.Sprintf("%d", s.Approved)},
		{"Needs review", fmt.Sprintf("%d", s.NeedsReview)},
		{"Rejected", fmt.Sprintf("%d", s.Rejected)},
		{"Average confidence", fmt.Sprintf("%.4f", s.AvgScore)},
	} {
		r := sheet.AddRow()
		r.AddCell().Value = row[0]
		r.AddCell().Value = row[1]
	}
	return nil
}

func addInvoiceSheet(f *xlsx.File, results map[string]*model.Result) error {
	sheet, err := f.AddSheet("Invoices")
	if err != nil {
		return eris.Wrap(err, "export: add invoices sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Invoice ID", "Status", "Confidence", "Discrepancies"} {
		header.AddCell().Value = h
	}

	for _, id := range sortedIDs(results) {
		result := results[id]
		r := sheet.AddRow()
		r.AddCell().Value = id
		r.AddCell().Value = string(result.Status)
		r.AddCell().SetFloat(result.ConfidenceScore)
		r.AddCell().SetInt(len(result.Discrepancies))
	}
	return nil
}

func addDiscrepancySheet(f *xlsx.File, results map[string]*model.Result) error {
	sheet, err := f.AddSheet("Discrepancies")
	if err != nil {
		return eris.Wrap(err, "export: add discrepancies sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Invoice ID", "Field", "Severity", "Expected", "Detected", "Confidence", "Suggestion"} {
		header.AddCell().Value = h
	}

	for _, id := range sortedIDs(results) {
		for _, d := range results[id].Discrepancies {
			r := sheet.AddRow()
			r.AddCell().Value = id
			r.AddCell().Value = d.Field
			r.AddCell().Value = string(d.IssueType)
			r.AddCell().Value = cellValue(d.Expected)
			r.AddCell().Value = cellValue(d.Detected)
			r.AddCell().SetFloat(d.Confidence)
			r.AddCell().Value = d.Suggestion
		}
	}
	return nil
}

// WriteResults writes the per-invoice validation results as indented JSON.
func WriteResults(path string, results map[string]*model.Result) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return eris.Wrap(err, "export: marshal results")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write results %s", path)
	}
	return nil
}

func sortedIDs(results map[string]*model.Result) []string {
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func cellValue(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
