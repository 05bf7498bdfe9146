package retrieve

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiho-dev/askweb/internal/chunk"
	"github.com/jiho-dev/askweb/internal/index"
)

func TestFuse(t *testing.T) {
	t.Run("items in both lists outrank single-list items", func(t *testing.T) {
		lex := []index.Hit{{ID: "a"}, {ID: "b"}, {ID: "c"}}
		vec := []index.Hit{{ID: "b"}, {ID: "d"}}

		fused := Fuse([][]index.Hit{lex, vec}, 60, 10)
		require.NotEmpty(t, fused)
		assert.Equal(t, "b", fused[0].ID)
	})

	t.Run("scores use one-based ranks", func(t *testing.T) {
		fused := Fuse([][]index.Hit{{{ID: "a"}}}, 60, 10)
		require.Len(t, fused, 1)
		assert.InDelta(t, 1.0/61.0, fused[0].Score, 1e-12)
	})

	t.Run("ties break by first appearance", func(t *testing.T) {
		lex := []index.Hit{{ID: "a"}, {ID: "b"}}
		vec := []index.Hit{{ID: "b"}, {ID: "a"}}
		fused := Fuse([][]index.Hit{lex, vec}, 60, 10)
		require.Len(t, fused, 2)
		// a: 1/61 + 1/62, b: 1/62 + 1/61 -- tie, a appeared first
		assert.Equal(t, "a", fused[0].ID)
	})

	t.Run("truncates to topN", func(t *testing.T) {
		var list []index.Hit
		for _, id := range strings.Split("a b c d e f", " ") {
			list = append(list, index.Hit{ID: id})
		}
		fused := Fuse([][]index.Hit{list}, 60, 3)
		assert.Len(t, fused, 3)
	})

	t.Run("empty lists fuse to nothing", func(t *testing.T) {
		assert.Empty(t, Fuse([][]index.Hit{nil, {}}, 60, 10))
	})
}

type mapScorer struct {
	scores map[string]float64
	err    error
}

func (s *mapScorer) Score(ctx context.Context, queryText string, passages []string) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]float64, len(passages))
	for i, p := range passages {
		out[i] = s.scores[p]
	}
	return out, nil
}

func seededIndex(t *testing.T) *index.Hybrid {
	t.Helper()
	h := index.NewHybrid()
	seeds := []struct {
		id, text string
		vec      []float32
	}{
		{"c1", "go runtime scheduler details", []float32{1, 0}},
		{"c2", "go garbage collector pacing", []float32{0.9, 0.1}},
		{"c3", "python interpreter internals", []float32{0, 1}},
	}
	for _, s := range seeds {
		require.NoError(t, h.Upsert(chunk.Chunk{ID: s.id, Source: "https://example.com", Text: s.text, Embedding: s.vec}))
	}
	return h
}

func retrieverConfig() Config {
	return Config{KLexical: 20, KVector: 20, RRFC: 60, FusionTop: 20, FinalK: 2}
}

func TestRetrieve(t *testing.T) {
	t.Run("reranker reorders and caps at finalK", func(t *testing.T) {
		scorer := &mapScorer{scores: map[string]float64{
			"go runtime scheduler details": 0.2,
			"go garbage collector pacing":  0.9,
			"python interpreter internals": 0.1,
		}}
		r := New(seededIndex(t), scorer, retrieverConfig(), nil)

		pad, err := r.Retrieve(context.Background(), "go scheduler", []float32{1, 0})
		require.NoError(t, err)
		require.Len(t, pad.Chunks, 2)
		assert.Equal(t, "c2", pad.Chunks[0].ID)
		assert.Equal(t, []float64{0.9, 0.2}, pad.Scores)
		assert.InDelta(t, 0.55, pad.Confidence(), 1e-9)
	})

	t.Run("scorer failure keeps fused order", func(t *testing.T) {
		r := New(seededIndex(t), &mapScorer{err: errors.New("model down")}, retrieverConfig(), nil)

		pad, err := r.Retrieve(context.Background(), "go scheduler", []float32{1, 0})
		require.NoError(t, err)
		require.Len(t, pad.Chunks, 2)
		assert.Equal(t, "c1", pad.Chunks[0].ID)
		assert.Equal(t, 0.5, pad.Scores[0])
	})

	t.Run("empty index yields empty pad", func(t *testing.T) {
		r := New(index.NewHybrid(), nil, retrieverConfig(), nil)
		pad, err := r.Retrieve(context.Background(), "anything", []float32{1, 0})
		require.NoError(t, err)
		assert.Empty(t, pad.Chunks)
		assert.Zero(t, pad.Confidence())
	})

	t.Run("dimension mismatch degrades to lexical", func(t *testing.T) {
		r := New(seededIndex(t), nil, retrieverConfig(), nil)
		pad, err := r.Retrieve(context.Background(), "go scheduler", []float32{1, 0, 0})
		require.NoError(t, err)
		assert.NotEmpty(t, pad.Chunks)
	})
}
