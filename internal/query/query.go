// Package query turns one user question into a set of normalized,
// time-resolved, multilingual search queries.
//
// Expansion is deterministic: given identical (question, now) the output set
// is stable in content, which keeps retrieval tests reproducible. Anything
// that would need a model call (free-form translation, semantic rewrites)
// is out of scope here; the search provider receives a language hint per
// query instead.
package query

import (
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/jiho-dev/askweb/internal/log"
)

// TimeRange is an absolute time window resolved from a relative expression.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// SearchQuery is a single normalized query ready for the search provider.
// Immutable once created; consumed once by the acquirer.
type SearchQuery struct {
	Text         string
	Language     string
	TimeResolved bool
	TimeRange    *TimeRange
	SourceEntity string // set when the query targets one side of a comparison
}

// Expander produces search query sets from user questions.
type Expander struct {
	languages []string
	logger    log.Logger
}

// NewExpander creates an Expander targeting the given languages.
// An empty language list falls back to ["ko", "en"].
func NewExpander(languages []string, logger log.Logger) *Expander {
	if len(languages) == 0 {
		languages = []string{"ko", "en"}
	}
	if logger == nil {
		logger = log.NewNop()
	}
	// Copy to keep the Expander independent of the caller's slice
	langs := make([]string, len(languages))
	copy(langs, languages)
	return &Expander{languages: langs, logger: logger}
}

// Expand turns one question into a set of search queries anchored at now.
// It never returns an empty set and never fails: malformed input falls back
// to a single pass-through query in the original language.
func (e *Expander) Expand(question string, now time.Time) []SearchQuery {
	trimmed := strings.Join(strings.Fields(question), " ")
	if trimmed == "" {
		// Pass-through fallback; nothing to expand
		return []SearchQuery{{Text: question, Language: detectLanguage(question)}}
	}

	text, tr := resolveRelativeTime(trimmed, now)
	resolved := tr != nil

	// Comparison questions decompose into one query per entity plus the
	// combined question.
	texts := []expansion{{text: text, entity: ""}}
	if a, b, ok := splitComparison(text); ok {
		texts = append(texts,
			expansion{text: a, entity: a},
			expansion{text: b, entity: b},
		)
	}

	var out []SearchQuery
	for _, lang := range e.languages {
		for _, x := range texts {
			out = append(out, SearchQuery{
				Text:         x.text,
				Language:     lang,
				TimeResolved: resolved,
				TimeRange:    tr,
				SourceEntity: x.entity,
			})
		}
		// Recency variant only when no explicit time was resolved
		if !resolved {
			out = append(out, SearchQuery{
				Text:     recencyVariant(text, lang, now),
				Language: lang,
			})
		}
	}

	out = dedupe(out)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Language != out[j].Language {
			return out[i].Language < out[j].Language
		}
		return out[i].Text < out[j].Text
	})

	e.logger.Debug("expanded question", "question", trimmed, "queries", len(out))
	return out
}

type expansion struct {
	text   string
	entity string
}

// comparison markers, longest first so " vs. " wins over " vs "
var comparisonMarkers = []string{" versus ", " vs. ", " vs ", " VS ", " 대 "}

// splitComparison detects "A vs B" style questions and returns both entities.
func splitComparison(text string) (a, b string, ok bool) {
	for _, marker := range comparisonMarkers {
		idx := strings.Index(text, marker)
		if idx <= 0 {
			continue
		}
		left := strings.TrimSpace(text[:idx])
		right := strings.TrimSpace(text[idx+len(marker):])
		// Strip a trailing question-ish clause from the right side so
		// "A vs B 어느 쪽이 좋아?" still yields a usable entity.
		if left == "" || right == "" {
			continue
		}
		return left, right, true
	}
	return "", "", false
}

// recencyVariant appends a deterministic freshness hint in the target language.
func recencyVariant(text, lang string, now time.Time) string {
	if lang == "ko" {
		return text + " 최신"
	}
	return text + " " + strconv.Itoa(now.Year())
}

// detectLanguage classifies the question as Korean if it contains any Hangul,
// English otherwise.
func detectLanguage(text string) string {
	for _, r := range text {
		if unicode.Is(unicode.Hangul, r) {
			return "ko"
		}
	}
	return "en"
}

func dedupe(queries []SearchQuery) []SearchQuery {
	seen := make(map[string]struct{}, len(queries))
	out := queries[:0]
	for _, q := range queries {
		key := q.Language + "\x00" + q.Text
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}
	return out
}
