package predictor

import (
	"math"
	"strings"

	"github.com/sells-group/invoice-audit/internal/config"
	"github.com/sells-group/invoice-audit/internal/match"
	"github.com/sells-group/invoice-audit/internal/model"
	"github.com/sells-group/invoice-audit/internal/normalize"
)

// LabelIsWrong produces the supervision label for one field: whether
// the detected value differs from ground truth beyond the pass
// thresholds. The same thresholds the validator applies, so labels and
// discrepancies agree.
func LabelIsWrong(norm *normalize.Normalizer, cfg config.ValidationConfig, field model.FieldKey, expected, detected any) bool {
	detStr := anyToString(detected)
	if expected == nil && detStr == "" {
		return false
	}
	expStr := anyToString(expected)

	switch fieldType(field) {
	case string(model.TypeID):
		return norm.Confusable(expStr) != norm.Confusable(detStr)

	case string(model.TypeName):
		score, _ := match.Score(expStr, detStr, norm.CompanySuffix)
		return score < cfg.FuzzyPass

	case string(model.TypeAddress):
		score, _ := match.Score(expStr, detStr, norm.Address)
		return score < cfg.AddressFuzzyPass

	case string(model.TypeDate):
		exp, okE := normalize.ParseDate(expected)
		det, okD := normalize.ParseDate(detected)
		if !okE || !okD {
			return true
		}
		return normalize.DaysBetween(exp, det) > cfg.DatePassDays

	case string(model.TypeAmount):
		exp, okE := normalize.ParseAmount(expected)
		det, okD := normalize.ParseAmount(detected)
		if !okE || !okD {
			return true
		}
		diff := math.Abs(exp - det)
		rel := diff
		if exp != 0 {
			rel = diff / exp
		}
		return diff > cfg.AmountAbsPass && rel > cfg.AmountRelPass

	default:
		return strings.TrimSpace(expStr) != strings.TrimSpace(detStr)
	}
}

// TrainingRow is one labeled example for model fitting or export.
type TrainingRow struct {
	Features  Features `json:"features"`
	Label     bool     `json:"label"`
	InvoiceID string   `json:"invoice_id"`
	Field     string   `json:"field"`
}

// BuildTrainingRows pairs ground-truth expectations with extraction
// output, one row per scalar field per invoice.
func BuildTrainingRows(norm *normalize.Normalizer, cfg config.ValidationConfig, truth []model.GroundTruth, docs map[string]*model.Document) []TrainingRow {
	var rows []TrainingRow
	for _, gt := range truth {
		doc := docs[gt.InvoiceID]
		for _, field := range model.ScalarFields {
			expected := gt.Expected(field)
			var detected any
			var conf *float64
			if doc != nil {
				detected = doc.Value(field)
				conf = doc.Conf(field)
			}
			rows = append(rows, TrainingRow{
				Features:  Extract(norm, field, expected, detected, conf),
				Label:     LabelIsWrong(norm, cfg, field, expected, detected),
				InvoiceID: gt.InvoiceID,
				Field:     string(field),
			})
		}
	}
	return rows
}
