// Package match scores similarity between two normalized strings. Two
// independent measures are computed and the best one wins: a token-set
// ratio that tolerates reordering and partial overlap, and a raw
// character-edit ratio that catches near-identical single-token strings
// token splitting would penalize.
package match

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// Method names which similarity measure produced the winning score.
type Method string

const (
	MethodTokenSet  Method = "token_set"
	MethodEditRatio Method = "edit_ratio"
	MethodEmpty     Method = "empty"
	MethodNone      Method = "none"
)

// Score normalizes both strings with the given normalizer and returns
// the maximum of token-set and edit similarity in [0,1] along with the
// winning method. Two strings that both normalize to empty are a
// perfect match, not a failure.
func Score(a, b string, normalizer func(string) string) (float64, Method) {
	aNorm := normalizer(a)
	bNorm := normalizer(b)
	if aNorm == "" && bNorm == "" {
		return 1.0, MethodEmpty
	}
	tokenScore := tokenSetRatio(aNorm, bNorm)
	editScore := editRatio(aNorm, bNorm)
	if tokenScore >= editScore {
		return tokenScore, MethodTokenSet
	}
	return editScore, MethodEditRatio
}

// editRatio is the character-level similarity in [0,1].
func editRatio(a, b string) float64 {
	return levenshtein.Similarity(a, b, nil)
}

// tokenSetRatio compares the shared-token core against each side's
// full token set and the two full sets against each other, taking the
// maximum. Symmetric-difference-tolerant: extra tokens on one side
// barely lower the score when the core matches.
func tokenSetRatio(a, b string) float64 {
	aTokens := tokenSet(a)
	bTokens := tokenSet(b)
	if len(aTokens) == 0 && len(bTokens) == 0 {
		return 1.0
	}
	// One-sided emptiness degenerates to a bare edit comparison;
	// the shared-core trick would score it 1.0.
	if len(aTokens) == 0 || len(bTokens) == 0 {
		return editRatio(a, b)
	}

	var shared, aOnly, bOnly []string
	for tok := range aTokens {
		if _, ok := bTokens[tok]; ok {
			shared = append(shared, tok)
		} else {
			aOnly = append(aOnly, tok)
		}
	}
	for tok := range bTokens {
		if _, ok := aTokens[tok]; !ok {
			bOnly = append(bOnly, tok)
		}
	}
	sort.Strings(shared)
	sort.Strings(aOnly)
	sort.Strings(bOnly)

	core := strings.Join(shared, " ")
	comboA := strings.TrimSpace(core + " " + strings.Join(aOnly, " "))
	comboB := strings.TrimSpace(core + " " + strings.Join(bOnly, " "))

	best := editRatio(core, comboA)
	if s := editRatio(core, comboB); s > best {
		best = s
	}
	if s := editRatio(comboA, comboB); s > best {
		best = s
	}
	return best
}

func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		out[tok] = struct{}{}
	}
	return out
}
