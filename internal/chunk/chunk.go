// Package chunk splits crawled articles into embedded index units.
//
// Chunk IDs are content-addressed so re-chunking the same page is
// idempotent: the same source, offset and leading text always map to the
// same ID, and an upsert replaces rather than duplicates.
package chunk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/jiho-dev/askweb/internal/crawl"
	"github.com/jiho-dev/askweb/internal/log"
)

// minSignificantChars is the minimum count of non-space characters a
// window must hold to become a chunk.
const minSignificantChars = 50

// Chunk is one indexable unit of evidence.
type Chunk struct {
	ID            string
	Source        string
	SourceTime    time.Time
	Text          string
	ContextPrefix string
	Embedding     []float32
	Position      int
}

// EmbedText returns the text handed to the embedder: the context prefix,
// when present, prepended to the body.
func (c Chunk) EmbedText() string {
	if c.ContextPrefix == "" {
		return c.Text
	}
	return c.ContextPrefix + "\n\n" + c.Text
}

// Embedder turns text batches into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Summarizer produces the short document-context line used by the
// contextual strategy.
type Summarizer interface {
	Summarize(ctx context.Context, document, excerpt string) (string, error)
}

// Outcome reports what chunking did with one page.
type Outcome struct {
	Source       string
	Produced     int
	DroppedEmbed int
}

// Chunker splits pages and embeds the resulting chunks.
type Chunker struct {
	embedder   Embedder
	summarizer Summarizer
	size       int
	overlap    int
	contextual bool
	logger     log.Logger
}

// New creates a Chunker. A nil summarizer forces the simple strategy
// regardless of the contextual flag.
func New(embedder Embedder, summarizer Summarizer, size, overlap int, contextual bool, logger log.Logger) *Chunker {
	if logger == nil {
		logger = log.NewNop()
	}
	if summarizer == nil {
		contextual = false
	}
	return &Chunker{
		embedder:   embedder,
		summarizer: summarizer,
		size:       size,
		overlap:    overlap,
		contextual: contextual,
		logger:     logger,
	}
}

// Split cuts content into fixed windows snapped to paragraph boundaries,
// without embedding. Windows below the significance threshold are skipped
// but still advance the position counter, so IDs stay stable when
// thresholds change.
func (c *Chunker) Split(content crawl.Content) []Chunk {
	text := content.Text
	var chunks []Chunk
	position := 0
	for offset := 0; offset < len(text); {
		end := offset + c.size
		if end >= len(text) {
			end = len(text)
		} else {
			end = snapToBoundary(text, offset, end)
		}

		window := text[offset:end]
		if significantChars(window) >= minSignificantChars {
			chunks = append(chunks, Chunk{
				ID:         chunkID(content.URL, offset, window),
				Source:     content.URL,
				SourceTime: content.FetchedAt,
				Text:       strings.TrimSpace(window),
				Position:   position,
			})
		}
		position++

		if end == len(text) {
			break
		}
		next := end - c.overlap
		if next <= offset {
			next = offset + 1
		}
		offset = next
	}
	return chunks
}

// Process splits every page, optionally prefixes each chunk with a
// document-context summary, and embeds the batch. Chunks whose embedding
// fails are dropped from the output and counted in the outcomes; a page
// is never dropped wholesale for one bad chunk.
func (c *Chunker) Process(ctx context.Context, pages []crawl.Content) ([]Chunk, []Outcome) {
	outcomes := make([]Outcome, 0, len(pages))
	var all []Chunk
	for _, page := range pages {
		chunks := c.Split(page)
		if c.contextual {
			c.annotate(ctx, page, chunks)
		}

		kept := c.embed(ctx, chunks)
		outcomes = append(outcomes, Outcome{
			Source:       page.URL,
			Produced:     len(kept),
			DroppedEmbed: len(chunks) - len(kept),
		})
		all = append(all, kept...)
	}
	return all, outcomes
}

// annotate fills ContextPrefix from the summarizer. Summarization errors
// leave the chunk bare; the simple text still indexes fine.
func (c *Chunker) annotate(ctx context.Context, page crawl.Content, chunks []Chunk) {
	for i := range chunks {
		prefix, err := c.summarizer.Summarize(ctx, page.Text, chunks[i].Text)
		if err != nil {
			c.logger.Debug("context summary failed", "source", page.URL, "position", chunks[i].Position, "error", err)
			continue
		}
		chunks[i].ContextPrefix = strings.TrimSpace(prefix)
	}
}

// embed batches all chunk texts through the embedder. A batch failure is
// retried chunk by chunk so one poisoned text only drops itself.
func (c *Chunker) embed(ctx context.Context, chunks []Chunk) []Chunk {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.EmbedText()
	}

	vectors, err := c.embedder.Embed(ctx, texts)
	if err == nil && len(vectors) == len(chunks) {
		for i := range chunks {
			chunks[i].Embedding = vectors[i]
		}
		return chunks
	}
	if err != nil {
		c.logger.Warn("batch embed failed, retrying per chunk", "chunks", len(chunks), "error", err)
	}

	kept := chunks[:0]
	for i := range chunks {
		vecs, err := c.embedder.Embed(ctx, []string{texts[i]})
		if err != nil || len(vecs) != 1 {
			c.logger.Debug("chunk embed dropped", "source", chunks[i].Source, "position", chunks[i].Position, "error", err)
			continue
		}
		chunks[i].Embedding = vecs[0]
		kept = append(kept, chunks[i])
	}
	return kept
}

// snapToBoundary pulls the window end back to the nearest paragraph break
// inside the second half of the window, falling back to a sentence end,
// then to the raw position.
func snapToBoundary(text string, start, end int) int {
	floor := start + (end-start)/2
	if i := strings.LastIndex(text[floor:end], "\n\n"); i >= 0 {
		return floor + i + 2
	}
	if i := strings.LastIndexAny(text[floor:end], ".!?\n"); i >= 0 {
		return floor + i + 1
	}
	return end
}

func significantChars(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// chunkID derives a stable content address from source, offset and the
// window's leading bytes.
func chunkID(source string, offset int, window string) string {
	head := window
	if len(head) > 50 {
		head = truncateUTF8(head, 50)
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", source, offset, head)))
	return hex.EncodeToString(sum[:16])
}

func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}
