package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTermOverlapScorer(t *testing.T) {
	scorer := TermOverlapScorer{}

	t.Run("scores by query term coverage", func(t *testing.T) {
		scores, err := scorer.Score(context.Background(), "go garbage collector", []string{
			"the go garbage collector paces allocation",
			"go modules and workspaces",
			"python reference counting",
		})
		require.NoError(t, err)
		require.Len(t, scores, 3)
		assert.InDelta(t, 1.0, scores[0], 1e-9)
		assert.InDelta(t, 1.0/3.0, scores[1], 1e-9)
		assert.Zero(t, scores[2])
	})

	t.Run("case and punctuation insensitive", func(t *testing.T) {
		scores, err := scorer.Score(context.Background(), "Go, Generics!", []string{"generics in GO"})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, scores[0], 1e-9)
	})

	t.Run("empty query scores zero", func(t *testing.T) {
		scores, err := scorer.Score(context.Background(), "  ", []string{"anything"})
		require.NoError(t, err)
		assert.Zero(t, scores[0])
	})

	t.Run("hangul terms overlap", func(t *testing.T) {
		scores, err := scorer.Score(context.Background(), "서울 날씨", []string{"오늘 서울 날씨 맑음", "부산 교통"})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, scores[0], 1e-9)
		assert.Zero(t, scores[1])
	})
}
