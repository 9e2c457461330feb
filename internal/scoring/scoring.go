// Package scoring blends per-field wrongness estimates and discrepancy
// penalties into one overall confidence score.
package scoring

import (
	"github.com/sells-group/invoice-audit/internal/config"
	"github.com/sells-group/invoice-audit/internal/model"
	"github.com/sells-group/invoice-audit/internal/predictor"
)

// Breakdown carries the score with its components for audit output.
type Breakdown struct {
	Overall     float64
	FieldScores map[model.FieldKey]float64
	BaseScore   float64
	Penalty     float64
}

// Compute derives the overall confidence: a field-weight blend of
// per-field correctness scores, discounted by a capped sum of
// severity penalties. Fields without a modeled wrongness estimate
// degrade to the OCR confidence complement, then to 0.5.
func Compute(cfg config.ScoringConfig, ocrConf map[model.FieldKey]float64, discrepancies []model.Discrepancy, pWrong map[model.FieldKey]float64) Breakdown {
	weighted := 0.0
	weightSum := 0.0
	fieldScores := make(map[model.FieldKey]float64, len(cfg.FieldWeights))

	for name, weight := range cfg.FieldWeights {
		field := model.FieldKey(name)
		var p float64
		if v, ok := pWrong[field]; ok {
			p = v
		} else if conf, ok := ocrConf[field]; ok {
			p = predictor.Fallback(&conf)
		} else {
			p = 0.5
		}
		score := 1 - p
		weighted += score * weight
		weightSum += weight
		fieldScores[field] = score
	}

	base := 0.0
	if weightSum > 0 {
		base = weighted / weightSum
	}

	penalty := 0.0
	for _, d := range discrepancies {
		penalty += cfg.SeverityPenalty[string(d.IssueType)]
	}
	if penalty > cfg.PenaltyCap {
		penalty = cfg.PenaltyCap
	}

	overall := base * (1 - penalty)
	if overall < 0 {
		overall = 0
	}
	if overall > 1 {
		overall = 1
	}
	return Breakdown{
		Overall:     overall,
		FieldScores: fieldScores,
		BaseScore:   base,
		Penalty:     penalty,
	}
}
