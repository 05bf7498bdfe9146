// Package llm wraps the Gemini models behind small ports: embedding,
// generation, and passage scoring. The rest of the pipeline depends on
// the interfaces its packages declare, never on genkit directly.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/jiho-dev/askweb/internal/config"
	"github.com/jiho-dev/askweb/internal/log"
)

// Sentinel errors. Check with errors.Is().
var (
	// ErrEmptyResponse indicates the model returned no usable text.
	ErrEmptyResponse = errors.New("model returned empty response")
)

// Client holds the initialized genkit instance and the configured models.
type Client struct {
	g        *genkit.Genkit
	embedder ai.Embedder
	model    string
	logger   log.Logger
}

// New initializes genkit with the GoogleAI plugin and resolves the
// configured models. Reads GEMINI_API_KEY from the environment via the
// plugin.
func New(ctx context.Context, cfg *config.Config, logger log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initialize genkit")
	}

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("resolve embedder %q", cfg.EmbedderModel)
	}

	return &Client{
		g:        g,
		embedder: embedder,
		model:    "googleai/" + cfg.ModelName,
		logger:   logger,
	}, nil
}

// Embed converts texts into vectors, one per input in order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	docs := make([]*ai.Document, len(texts))
	for i, t := range texts {
		docs[i] = ai.DocumentFromText(t, nil)
	}

	resp, err := c.embedder.Embed(ctx, &ai.EmbedRequest{Input: docs})
	if err != nil {
		return nil, fmt.Errorf("embed %d texts: %w", len(texts), err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed returned %d vectors for %d texts", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		vectors[i] = e.Embedding
	}
	return vectors, nil
}

// Generate runs one completion against the configured model.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := genkit.Generate(ctx, c.g,
		ai.WithModelName(c.model),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Summarize produces the one-line document context used by contextual
// chunking: where the excerpt sits within the whole document.
func (c *Client) Summarize(ctx context.Context, document, excerpt string) (string, error) {
	const maxDocumentChars = 8000
	if len(document) > maxDocumentChars {
		document = document[:maxDocumentChars]
	}
	prompt := fmt.Sprintf(
		"Document:\n%s\n\nExcerpt from the document:\n%s\n\n"+
			"Write one short sentence situating the excerpt within the overall document. "+
			"Answer with only that sentence.",
		document, excerpt)
	return c.Generate(ctx, prompt)
}

// Score asks the model to rate each passage's relevance to the query on a
// 0..10 scale, normalized to [0,1]. A malformed response is an error; the
// caller falls back to its own ordering.
func (c *Client) Score(ctx context.Context, queryText string, passages []string) ([]float64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\nRate each passage's relevance to the query from 0 to 10.\n", queryText)
	for i, p := range passages {
		fmt.Fprintf(&b, "\nPassage %d:\n%s\n", i+1, p)
	}
	b.WriteString("\nAnswer with one integer per line, in passage order, nothing else.")

	text, err := c.Generate(ctx, b.String())
	if err != nil {
		return nil, err
	}

	lines := strings.Fields(text)
	if len(lines) != len(passages) {
		return nil, fmt.Errorf("rerank returned %d scores for %d passages", len(lines), len(passages))
	}
	scores := make([]float64, len(lines))
	for i, line := range lines {
		n, err := strconv.Atoi(strings.TrimSuffix(line, "."))
		if err != nil || n < 0 || n > 10 {
			return nil, fmt.Errorf("rerank score %q unparsable", line)
		}
		scores[i] = float64(n) / 10
	}
	return scores, nil
}
