package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-08-29 is a Saturday.
var anchor = time.Date(2026, 8, 29, 15, 0, 0, 0, time.UTC)

func texts(queries []SearchQuery) []string {
	out := make([]string, len(queries))
	for i, q := range queries {
		out[i] = q.Text
	}
	return out
}

func TestExpand(t *testing.T) {
	e := NewExpander([]string{"ko", "en"}, nil)

	t.Run("deterministic for identical input", func(t *testing.T) {
		first := e.Expand("go 제네릭 성능", anchor)
		second := e.Expand("go 제네릭 성능", anchor)
		assert.Equal(t, first, second)
	})

	t.Run("covers every configured language", func(t *testing.T) {
		queries := e.Expand("kubernetes upgrade guide", anchor)
		langs := map[string]bool{}
		for _, q := range queries {
			langs[q.Language] = true
		}
		assert.True(t, langs["ko"])
		assert.True(t, langs["en"])
	})

	t.Run("recency variant added without explicit time", func(t *testing.T) {
		queries := e.Expand("best go web framework", anchor)
		assert.Contains(t, texts(queries), "best go web framework 2026")
		assert.Contains(t, texts(queries), "best go web framework 최신")
	})

	t.Run("no recency variant when time resolved", func(t *testing.T) {
		queries := e.Expand("go releases last year", anchor)
		for _, q := range queries {
			assert.True(t, q.TimeResolved)
			assert.NotContains(t, q.Text, "최신")
		}
	})

	t.Run("comparison decomposes into entities", func(t *testing.T) {
		queries := e.Expand("postgres vs mysql", anchor)
		var entities []string
		for _, q := range queries {
			if q.SourceEntity != "" {
				entities = append(entities, q.SourceEntity)
			}
		}
		assert.Contains(t, entities, "postgres")
		assert.Contains(t, entities, "mysql")
		assert.Contains(t, texts(queries), "postgres vs mysql")
	})

	t.Run("blank input falls back to pass-through", func(t *testing.T) {
		queries := e.Expand("   ", anchor)
		require.Len(t, queries, 1)
		assert.Equal(t, "en", queries[0].Language)
	})

	t.Run("whitespace normalized", func(t *testing.T) {
		queries := e.Expand("  go \t generics  ", anchor)
		for _, q := range queries {
			assert.NotContains(t, q.Text, "  ")
		}
	})
}

func TestResolveRelativeTime(t *testing.T) {
	t.Run("last week resolves to monday-bounded range", func(t *testing.T) {
		text, tr := resolveRelativeTime("go news last week", anchor)
		require.NotNil(t, tr)
		// Week containing the anchor starts Monday 2026-08-24.
		assert.Equal(t, time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC), tr.Start)
		assert.Equal(t, time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC), tr.End)
		assert.Equal(t, "go news 2026-08-17~2026-08-23", text)
	})

	t.Run("korean phrase resolves identically", func(t *testing.T) {
		_, ko := resolveRelativeTime("지난주 go 소식", anchor)
		_, en := resolveRelativeTime("go news last week", anchor)
		require.NotNil(t, ko)
		require.NotNil(t, en)
		assert.Equal(t, en.Start, ko.Start)
		assert.Equal(t, en.End, ko.End)
	})

	t.Run("yesterday is a single day", func(t *testing.T) {
		text, tr := resolveRelativeTime("bitcoin price yesterday", anchor)
		require.NotNil(t, tr)
		assert.Equal(t, time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), tr.Start)
		assert.Equal(t, 24*time.Hour, tr.End.Sub(tr.Start))
		assert.Contains(t, text, "2026-08-28")
	})

	t.Run("recently covers the trailing month", func(t *testing.T) {
		_, tr := resolveRelativeTime("최근 go 릴리스", anchor)
		require.NotNil(t, tr)
		assert.Equal(t, time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC), tr.Start)
		assert.Equal(t, anchor, tr.End)
	})

	t.Run("last month names the month", func(t *testing.T) {
		text, tr := resolveRelativeTime("conference last month", anchor)
		require.NotNil(t, tr)
		assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), tr.Start)
		assert.Equal(t, "conference 2026-07", text)
	})

	t.Run("no phrase no change", func(t *testing.T) {
		text, tr := resolveRelativeTime("go generics design", anchor)
		assert.Nil(t, tr)
		assert.Equal(t, "go generics design", text)
	})
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "ko", detectLanguage("서울 날씨"))
	assert.Equal(t, "ko", detectLanguage("go 성능"))
	assert.Equal(t, "en", detectLanguage("go performance"))
}
