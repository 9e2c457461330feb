package predictor

import (
	"encoding/json"
	"math"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-audit/internal/model"
	"github.com/sells-group/invoice-audit/internal/normalize"
)

// Model is a trained logistic regression over the Features vector.
// Weights are keyed by Vector() names; unknown keys in either
// direction are ignored, so model and code can evolve independently.
type Model struct {
	Bias    float64            `json:"bias"`
	Weights map[string]float64 `json:"weights"`
}

// Load reads a model from its JSON file.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "predictor: read model file")
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "predictor: parse model file")
	}
	if len(m.Weights) == 0 {
		return nil, eris.New("predictor: model file carries no weights")
	}
	return &m, nil
}

// PredictProbability returns the modeled probability that the field
// value behind the features is wrong.
func (m *Model) PredictProbability(f Features) float64 {
	z := m.Bias
	for k, v := range f.Vector() {
		z += m.Weights[k] * v
	}
	return sigmoid(z)
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// Fallback is the model-free estimate: the complement of the OCR
// confidence, or 0.5 when that too is unknown.
func Fallback(ocrConf *float64) float64 {
	if ocrConf == nil {
		return 0.5
	}
	p := 1 - *ocrConf
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// PWrong estimates the probability that the detected value for a field
// is materially wrong. A nil model falls back to OCR confidence.
func PWrong(m *Model, norm *normalize.Normalizer, field model.FieldKey, expected, detected any, ocrConf *float64) float64 {
	if m == nil {
		return Fallback(ocrConf)
	}
	return m.PredictProbability(Extract(norm, field, expected, detected, ocrConf))
}
