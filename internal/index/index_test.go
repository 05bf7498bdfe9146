package index

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiho-dev/askweb/internal/chunk"
)

func mkChunk(id, text string, vec ...float32) chunk.Chunk {
	return chunk.Chunk{ID: id, Source: "https://example.com", Text: text, Embedding: vec}
}

func TestUpsert(t *testing.T) {
	t.Run("rejects empty embedding", func(t *testing.T) {
		h := NewHybrid()
		assert.ErrorIs(t, h.Upsert(mkChunk("a", "text")), ErrEmptyEmbedding)
	})

	t.Run("first upsert fixes dimension", func(t *testing.T) {
		h := NewHybrid()
		require.NoError(t, h.Upsert(mkChunk("a", "alpha", 1, 0, 0)))
		err := h.Upsert(mkChunk("b", "beta", 1, 0))
		assert.ErrorIs(t, err, ErrDimensionMismatch)
		assert.Equal(t, 1, h.Len())
	})

	t.Run("replacement swaps content atomically", func(t *testing.T) {
		h := NewHybrid()
		require.NoError(t, h.Upsert(mkChunk("a", "rust memory safety", 1, 0)))
		require.NoError(t, h.Upsert(mkChunk("a", "go concurrency model", 0, 1)))

		assert.Equal(t, 1, h.Len())
		assert.Empty(t, h.LexicalSearch("rust", 5))
		hits := h.LexicalSearch("concurrency", 5)
		require.Len(t, hits, 1)
		assert.Equal(t, "a", hits[0].ID)
	})

	t.Run("clear resets dimension", func(t *testing.T) {
		h := NewHybrid()
		require.NoError(t, h.Upsert(mkChunk("a", "alpha", 1, 0, 0)))
		h.Clear()
		assert.Zero(t, h.Len())
		require.NoError(t, h.Upsert(mkChunk("b", "beta", 1, 0)))
	})
}

func TestLexicalSearch(t *testing.T) {
	h := NewHybrid()
	require.NoError(t, h.Upsert(mkChunk("go1", "go channels and goroutines for concurrency", 1, 0)))
	require.NoError(t, h.Upsert(mkChunk("go2", "go modules manage dependencies", 1, 0)))
	require.NoError(t, h.Upsert(mkChunk("py1", "python asyncio event loop", 0, 1)))

	t.Run("rare terms outweigh common ones", func(t *testing.T) {
		hits := h.LexicalSearch("go concurrency", 3)
		require.NotEmpty(t, hits)
		assert.Equal(t, "go1", hits[0].ID)
	})

	t.Run("no match yields no hits", func(t *testing.T) {
		assert.Empty(t, h.LexicalSearch("kubernetes", 3))
	})

	t.Run("k truncates", func(t *testing.T) {
		hits := h.LexicalSearch("go", 1)
		assert.Len(t, hits, 1)
	})

	t.Run("hangul terms match", func(t *testing.T) {
		require.NoError(t, h.Upsert(mkChunk("ko1", "서울 날씨는 맑음", 0, 1)))
		hits := h.LexicalSearch("서울 날씨는", 3)
		require.NotEmpty(t, hits)
		assert.Equal(t, "ko1", hits[0].ID)
	})

	t.Run("ties break toward earlier arrival", func(t *testing.T) {
		h2 := NewHybrid()
		require.NoError(t, h2.Upsert(mkChunk("first", "identical text", 1, 0)))
		require.NoError(t, h2.Upsert(mkChunk("second", "identical text", 1, 0)))
		hits := h2.LexicalSearch("identical", 2)
		require.Len(t, hits, 2)
		assert.Equal(t, "first", hits[0].ID)
		assert.Equal(t, "second", hits[1].ID)
	})
}

func TestVectorSearch(t *testing.T) {
	h := NewHybrid()
	require.NoError(t, h.Upsert(mkChunk("x", "x axis", 1, 0)))
	require.NoError(t, h.Upsert(mkChunk("y", "y axis", 0, 1)))
	require.NoError(t, h.Upsert(mkChunk("xy", "diagonal", 1, 1)))

	t.Run("ranks by cosine similarity", func(t *testing.T) {
		hits, err := h.VectorSearch([]float32{1, 0}, 3)
		require.NoError(t, err)
		require.Len(t, hits, 3)
		assert.Equal(t, "x", hits[0].ID)
		assert.Equal(t, "xy", hits[1].ID)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	})

	t.Run("wrong dimension errors", func(t *testing.T) {
		_, err := h.VectorSearch([]float32{1, 0, 0}, 3)
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("empty index yields nothing", func(t *testing.T) {
		hits, err := NewHybrid().VectorSearch([]float32{1, 0}, 3)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})
}

func TestExportAll(t *testing.T) {
	h := NewHybrid()
	for i := 0; i < 5; i++ {
		require.NoError(t, h.Upsert(mkChunk(fmt.Sprintf("c%d", i), fmt.Sprintf("text %d", i), float32(i), 1)))
	}
	exported := h.ExportAll()
	require.Len(t, exported, 5)
	for i, c := range exported {
		assert.Equal(t, fmt.Sprintf("c%d", i), c.ID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	h := NewHybrid()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := fmt.Sprintf("w%d-c%d", w, i)
				_ = h.Upsert(mkChunk(id, "concurrent text "+id, float32(i), float32(w)))
				h.LexicalSearch("concurrent", 5)
				h.VectorSearch([]float32{1, 1}, 5)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 400, h.Len())
}
