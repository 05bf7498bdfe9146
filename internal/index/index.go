// Package index holds the per-session in-memory hybrid index: a BM25
// lexical side and a brute-force cosine vector side over the same chunk
// set. All operations are safe for concurrent use; reads see a consistent
// snapshot under the read lock.
package index

import (
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/jiho-dev/askweb/internal/chunk"
)

// BM25 shape parameters. Standard values; the corpus is one session's
// crawled chunks, small enough that tuning buys nothing.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Sentinel errors. Check with errors.Is().
var (
	// ErrDimensionMismatch indicates a vector whose length differs from
	// the dimension fixed by the first upsert.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmptyEmbedding indicates an upsert without a vector.
	ErrEmptyEmbedding = errors.New("empty embedding")
)

// Hit is one scored match from either side of the index.
type Hit struct {
	ID    string
	Score float64
}

type entry struct {
	chunk   chunk.Chunk
	terms   map[string]int
	length  int
	arrival int
}

// Hybrid indexes chunks for lexical and vector retrieval.
type Hybrid struct {
	mu      sync.RWMutex
	entries map[string]*entry
	df      map[string]int
	totalLn int
	dim     int
	arrival int
}

// NewHybrid creates an empty index. Vector dimension is fixed by the
// first upsert.
func NewHybrid() *Hybrid {
	return &Hybrid{
		entries: make(map[string]*entry),
		df:      make(map[string]int),
	}
}

// Upsert inserts or atomically replaces a chunk by ID. Replacement never
// leaves the chunk half-updated; statistics are rolled back before the
// new posting is applied.
func (h *Hybrid) Upsert(c chunk.Chunk) error {
	if len(c.Embedding) == 0 {
		return ErrEmptyEmbedding
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.dim == 0 {
		h.dim = len(c.Embedding)
	} else if len(c.Embedding) != h.dim {
		return ErrDimensionMismatch
	}

	if old, ok := h.entries[c.ID]; ok {
		h.totalLn -= old.length
		for term := range old.terms {
			if h.df[term]--; h.df[term] == 0 {
				delete(h.df, term)
			}
		}
	}

	terms := termFrequencies(c.Text)
	length := 0
	for term, n := range terms {
		h.df[term]++
		length += n
	}
	h.totalLn += length

	h.arrival++
	h.entries[c.ID] = &entry{chunk: c, terms: terms, length: length, arrival: h.arrival}
	return nil
}

// Len reports the number of indexed chunks.
func (h *Hybrid) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Get returns the chunk stored under id.
func (h *Hybrid) Get(id string) (chunk.Chunk, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.entries[id]
	if !ok {
		return chunk.Chunk{}, false
	}
	return e.chunk, true
}

// Clear drops every chunk and resets the vector dimension.
func (h *Hybrid) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = make(map[string]*entry)
	h.df = make(map[string]int)
	h.totalLn = 0
	h.dim = 0
	h.arrival = 0
}

// ExportAll returns every chunk in arrival order, for archiving.
func (h *Hybrid) ExportAll() []chunk.Chunk {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]chunk.Chunk, 0, len(h.entries))
	order := make([]*entry, 0, len(h.entries))
	for _, e := range h.entries {
		order = append(order, e)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].arrival < order[j].arrival })
	for _, e := range order {
		out = append(out, e.chunk)
	}
	return out
}

// LexicalSearch ranks chunks against the query with BM25 and returns the
// top k. Ties break toward earlier arrival so repeating a query is
// deterministic.
func (h *Hybrid) LexicalSearch(queryText string, k int) []Hit {
	queryTerms := termFrequencies(queryText)
	if len(queryTerms) == 0 || k <= 0 {
		return nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	n := len(h.entries)
	if n == 0 {
		return nil
	}
	avgLen := float64(h.totalLn) / float64(n)

	type scored struct {
		hit     Hit
		arrival int
	}
	var results []scored
	for id, e := range h.entries {
		score := 0.0
		for term := range queryTerms {
			tf, ok := e.terms[term]
			if !ok {
				continue
			}
			df := h.df[term]
			idf := math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
			norm := float64(tf) * (bm25K1 + 1) /
				(float64(tf) + bm25K1*(1-bm25B+bm25B*float64(e.length)/avgLen))
			score += idf * norm
		}
		if score > 0 {
			results = append(results, scored{hit: Hit{ID: id, Score: score}, arrival: e.arrival})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].hit.Score != results[j].hit.Score {
			return results[i].hit.Score > results[j].hit.Score
		}
		return results[i].arrival < results[j].arrival
	})
	if len(results) > k {
		results = results[:k]
	}
	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = r.hit
	}
	return hits
}

// VectorSearch ranks chunks by cosine similarity against the query vector
// and returns the top k. A query of the wrong dimension returns
// ErrDimensionMismatch.
func (h *Hybrid) VectorSearch(vector []float32, k int) ([]Hit, error) {
	if len(vector) == 0 || k <= 0 {
		return nil, nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.entries) == 0 {
		return nil, nil
	}
	if len(vector) != h.dim {
		return nil, ErrDimensionMismatch
	}

	qNorm := norm(vector)
	if qNorm == 0 {
		return nil, nil
	}

	type scored struct {
		hit     Hit
		arrival int
	}
	results := make([]scored, 0, len(h.entries))
	for id, e := range h.entries {
		sim := dot(vector, e.chunk.Embedding) / (qNorm * norm(e.chunk.Embedding))
		results = append(results, scored{hit: Hit{ID: id, Score: sim}, arrival: e.arrival})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].hit.Score != results[j].hit.Score {
			return results[i].hit.Score > results[j].hit.Score
		}
		return results[i].arrival < results[j].arrival
	})
	if len(results) > k {
		results = results[:k]
	}
	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = r.hit
	}
	return hits, nil
}

func dot(a, b []float32) float64 {
	s := 0.0
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func norm(v []float32) float64 {
	s := 0.0
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	if s == 0 {
		return 1 // zero vector scores zero everywhere anyway
	}
	return math.Sqrt(s)
}

// termFrequencies tokenizes on non-letter, non-digit boundaries, lowering
// ASCII. Hangul and other scripts pass through intact.
func termFrequencies(text string) map[string]int {
	terms := make(map[string]int)
	for _, tok := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		terms[strings.ToLower(tok)]++
	}
	return terms
}
