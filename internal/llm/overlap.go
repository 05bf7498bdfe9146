package llm

import (
	"context"
	"strings"
	"unicode"
)

// TermOverlapScorer scores passages by query-term overlap. It is the
// degraded reranker used when no model call fits in the remaining budget:
// deterministic, instant, and never fails.
type TermOverlapScorer struct{}

// Score returns, for each passage, the fraction of distinct query terms
// it contains. A query with no terms scores everything zero.
func (TermOverlapScorer) Score(_ context.Context, queryText string, passages []string) ([]float64, error) {
	queryTerms := termSet(queryText)
	scores := make([]float64, len(passages))
	if len(queryTerms) == 0 {
		return scores, nil
	}
	for i, p := range passages {
		passageTerms := termSet(p)
		matched := 0
		for term := range queryTerms {
			if _, ok := passageTerms[term]; ok {
				matched++
			}
		}
		scores[i] = float64(matched) / float64(len(queryTerms))
	}
	return scores, nil
}

func termSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		set[strings.ToLower(tok)] = struct{}{}
	}
	return set
}
