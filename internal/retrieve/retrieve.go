// Package retrieve merges the lexical and vector rankings with reciprocal
// rank fusion and reorders the fused list with a reranker. Reranking never
// fails the request; when the scorer is unavailable the fused order stands.
package retrieve

import (
	"context"
	"sort"
	"time"

	"github.com/jiho-dev/askweb/internal/chunk"
	"github.com/jiho-dev/askweb/internal/index"
	"github.com/jiho-dev/askweb/internal/log"
)

// ScratchPad carries the reranked evidence into generation.
type ScratchPad struct {
	Query     string
	Chunks    []chunk.Chunk
	Scores    []float64
	CreatedAt time.Time
}

// Confidence is the mean rerank score of the retained chunks, zero when
// empty.
func (s ScratchPad) Confidence() float64 {
	if len(s.Scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, sc := range s.Scores {
		sum += sc
	}
	return sum / float64(len(s.Scores))
}

// Fuse combines ranked lists with reciprocal rank fusion: each list
// contributes 1/(rank+c) per item, ranks starting at 1. Items tie-break by
// first appearance across the lists in input order, and the fused list is
// cut to topN.
func Fuse(lists [][]index.Hit, c int, topN int) []index.Hit {
	type fused struct {
		score float64
		order int
	}
	scores := make(map[string]*fused)
	order := 0
	for _, list := range lists {
		for rank, hit := range list {
			f, ok := scores[hit.ID]
			if !ok {
				f = &fused{order: order}
				order++
				scores[hit.ID] = f
			}
			f.score += 1.0 / float64(rank+1+c)
		}
	}

	out := make([]index.Hit, 0, len(scores))
	for id, f := range scores {
		out = append(out, index.Hit{ID: id, Score: f.score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return scores[out[i].ID].order < scores[out[j].ID].order
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

// Scorer assigns a relevance score in [0,1] to each passage for the query.
type Scorer interface {
	Score(ctx context.Context, queryText string, passages []string) ([]float64, error)
}

// Retriever runs hybrid retrieval against one session index.
type Retriever struct {
	idx    *index.Hybrid
	scorer Scorer
	kLex   int
	kVec   int
	fuseC  int
	topN   int
	finalK int
	logger log.Logger
	now    func() time.Time
}

// Config bundles the retrieval depths.
type Config struct {
	KLexical  int
	KVector   int
	RRFC      int
	FusionTop int
	FinalK    int
}

// New creates a Retriever over idx. scorer may be nil; reranking then
// keeps the fused order with neutral scores.
func New(idx *index.Hybrid, scorer Scorer, cfg Config, logger log.Logger) *Retriever {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Retriever{
		idx:    idx,
		scorer: scorer,
		kLex:   cfg.KLexical,
		kVec:   cfg.KVector,
		fuseC:  cfg.RRFC,
		topN:   cfg.FusionTop,
		finalK: cfg.FinalK,
		logger: logger,
		now:    time.Now,
	}
}

// Retrieve runs both index sides, fuses, reranks, and returns the final
// scratch pad. An empty index yields an empty pad, not an error.
func (r *Retriever) Retrieve(ctx context.Context, queryText string, queryVector []float32) (ScratchPad, error) {
	return r.Rerank(ctx, r.scorer, queryText, r.Candidates(queryText, queryVector)), nil
}

// Candidates runs both index sides and fuses them into the ranked
// candidate list, resolved back to chunks.
func (r *Retriever) Candidates(queryText string, queryVector []float32) []chunk.Chunk {
	lex := r.idx.LexicalSearch(queryText, r.kLex)
	vec, err := r.idx.VectorSearch(queryVector, r.kVec)
	if err != nil {
		// Dimension trouble means the vector side is unusable this
		// request; retrieval continues lexically.
		r.logger.Warn("vector search unavailable", "error", err)
	}

	fusedHits := Fuse([][]index.Hit{lex, vec}, r.fuseC, r.topN)

	candidates := make([]chunk.Chunk, 0, len(fusedHits))
	for _, hit := range fusedHits {
		if c, ok := r.idx.Get(hit.ID); ok {
			candidates = append(candidates, c)
		}
	}
	return candidates
}

// Rerank reorders candidates with scorer and builds the scratch pad. The
// scorer overrides the retriever's own, letting callers degrade to a
// cheaper one late in the request.
func (r *Retriever) Rerank(ctx context.Context, scorer Scorer, queryText string, candidates []chunk.Chunk) ScratchPad {
	chunks, scores := r.rerank(ctx, scorer, queryText, candidates)
	return ScratchPad{
		Query:     queryText,
		Chunks:    chunks,
		Scores:    scores,
		CreatedAt: r.now().UTC(),
	}
}

// rerank reorders candidates by scorer relevance and keeps the top
// finalK. Any scorer failure falls back to the fused order with neutral
// scores.
func (r *Retriever) rerank(ctx context.Context, scorer Scorer, queryText string, candidates []chunk.Chunk) ([]chunk.Chunk, []float64) {
	if len(candidates) == 0 {
		return nil, nil
	}

	keep := r.finalK
	if keep <= 0 || keep > len(candidates) {
		keep = len(candidates)
	}

	if scorer == nil {
		return candidates[:keep], neutralScores(keep)
	}

	passages := make([]string, len(candidates))
	for i, c := range candidates {
		passages[i] = c.Text
	}
	scores, err := scorer.Score(ctx, queryText, passages)
	if err != nil || len(scores) != len(candidates) {
		r.logger.Warn("rerank failed, keeping fused order", "error", err)
		return candidates[:keep], neutralScores(keep)
	}

	idxs := make([]int, len(candidates))
	for i := range idxs {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return scores[idxs[a]] > scores[idxs[b]] })

	outChunks := make([]chunk.Chunk, keep)
	outScores := make([]float64, keep)
	for i := 0; i < keep; i++ {
		outChunks[i] = candidates[idxs[i]]
		outScores[i] = scores[idxs[i]]
	}
	return outChunks, outScores
}

func neutralScores(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = 0.5
	}
	return s
}
