// Package predictor estimates the probability that an extracted field
// value is materially wrong. A trained logistic model refines the
// estimate; without one the predictor degrades to the OCR confidence.
package predictor

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/invoice-audit/internal/match"
	"github.com/sells-group/invoice-audit/internal/model"
	"github.com/sells-group/invoice-audit/internal/normalize"
)

// confusableChars are glyphs OCR commonly swaps.
const confusableChars = "O0I1lS5B8"

// Features is the per-field feature vector. Missing numeric inputs
// degrade to zero; feature extraction never fails.
type Features struct {
	FieldName     string  `json:"field_name"`
	FieldType     string  `json:"field_type"`
	OCRConf       float64 `json:"ocr_conf"`
	DetectedLen   float64 `json:"detected_len"`
	DigitRatio    float64 `json:"digit_ratio"`
	HasConfusable float64 `json:"has_confusable"`
	IsMissing     float64 `json:"is_missing"`
	FuzzyScore    float64 `json:"fuzzy_score"`
	AbsDiff       float64 `json:"abs_diff"`
	RelDiff       float64 `json:"rel_diff"`
	DaysDiff      float64 `json:"days_diff"`
}

// Vector flattens the features into weight-map keys. Categorical
// features one-hot encode as "name=value" keys.
func (f Features) Vector() map[string]float64 {
	return map[string]float64{
		"field_name=" + f.FieldName: 1,
		"field_type=" + f.FieldType: 1,
		"ocr_conf":                  f.OCRConf,
		"detected_len":              f.DetectedLen,
		"digit_ratio":               f.DigitRatio,
		"has_confusable":            f.HasConfusable,
		"is_missing":                f.IsMissing,
		"fuzzy_score":               f.FuzzyScore,
		"abs_diff":                  f.AbsDiff,
		"rel_diff":                  f.RelDiff,
		"days_diff":                 f.DaysDiff,
	}
}

// Extract derives the feature vector for one field comparison.
func Extract(norm *normalize.Normalizer, field model.FieldKey, expected, detected any, ocrConf *float64) Features {
	expectedStr := anyToString(expected)
	detectedStr := anyToString(detected)
	ftype := fieldType(field)

	f := Features{
		FieldName:   string(field),
		FieldType:   ftype,
		DetectedLen: float64(len(detectedStr)),
		DigitRatio:  digitRatio(detectedStr),
	}
	if ocrConf != nil {
		f.OCRConf = *ocrConf
	}
	if strings.ContainsAny(detectedStr, confusableChars) {
		f.HasConfusable = 1
	}
	if detected == nil || strings.TrimSpace(detectedStr) == "" {
		f.IsMissing = 1
	}

	switch ftype {
	case string(model.TypeName):
		f.FuzzyScore, _ = match.Score(expectedStr, detectedStr, norm.CompanySuffix)
	case string(model.TypeAddress):
		f.FuzzyScore, _ = match.Score(expectedStr, detectedStr, norm.Address)
	case string(model.TypeAmount):
		if exp, ok := normalize.ParseAmount(expected); ok {
			if det, ok := normalize.ParseAmount(detected); ok {
				f.AbsDiff = math.Abs(exp - det)
				if exp != 0 {
					f.RelDiff = f.AbsDiff / exp
				} else {
					f.RelDiff = f.AbsDiff
				}
			}
		}
	case string(model.TypeDate):
		if exp, ok := normalize.ParseDate(expected); ok {
			if det, ok := normalize.ParseDate(detected); ok {
				f.DaysDiff = float64(normalize.DaysBetween(exp, det))
			}
		}
	}
	return f
}

func fieldType(field model.FieldKey) string {
	if t, ok := model.FieldTypes[field]; ok && t != model.TypeItemList {
		return string(t)
	}
	return "other"
}

func digitRatio(s string) float64 {
	if s == "" {
		return 0
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return float64(digits) / float64(len(s))
}

// anyToString renders a field value the way it appears in persisted
// JSON, so string-shape features are stable across sources.
func anyToString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(v)
	}
}
