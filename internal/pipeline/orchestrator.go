// Package pipeline runs one question through the full research flow:
// expand, search, crawl, chunk, index, retrieve, rerank, generate. The
// whole flow shares a fixed wall-clock budget; stages that no longer fit
// are skipped and the answer is generated from whatever evidence the
// session already holds.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jiho-dev/askweb/internal/acquire"
	"github.com/jiho-dev/askweb/internal/chunk"
	"github.com/jiho-dev/askweb/internal/config"
	"github.com/jiho-dev/askweb/internal/crawl"
	"github.com/jiho-dev/askweb/internal/log"
	"github.com/jiho-dev/askweb/internal/query"
	"github.com/jiho-dev/askweb/internal/retrieve"
	"github.com/jiho-dev/askweb/internal/session"
	"github.com/jiho-dev/askweb/internal/websearch"
)

// Stage cost reserves. Acquisition is skipped unless the budget still
// covers a crawl round plus generation; the model reranker gives way to
// the overlap scorer when only generation still fits.
const (
	generationReserve = 2 * time.Second
	acquireMinimum    = 2 * time.Second
	rerankModelCost   = 1500 * time.Millisecond
)

// Expander produces the search queries for a question.
type Expander interface {
	Expand(question string, now time.Time) []query.SearchQuery
}

// Acquirer runs the search and crawl fan-out.
type Acquirer interface {
	Search(ctx context.Context, queries []query.SearchQuery) ([]websearch.Result, []acquire.QueryOutcome)
	Crawl(ctx context.Context, urls []string) ([]crawl.Content, []acquire.URLOutcome)
}

// ChunkProcessor splits and embeds crawled pages.
type ChunkProcessor interface {
	Process(ctx context.Context, pages []crawl.Content) ([]chunk.Chunk, []chunk.Outcome)
}

// Generator produces the final answer text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Orchestrator wires the stages together.
type Orchestrator struct {
	expander    Expander
	acquirer    Acquirer
	chunker     ChunkProcessor
	embedder    chunk.Embedder
	generator   Generator
	scorer      retrieve.Scorer
	fallback    retrieve.Scorer
	retrieveCfg retrieve.Config
	total       time.Duration
	logger      log.Logger
	now         func() time.Time
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Expander  Expander
	Acquirer  Acquirer
	Chunker   ChunkProcessor
	Embedder  chunk.Embedder
	Generator Generator
	Scorer    retrieve.Scorer // model reranker, may be nil
	Fallback  retrieve.Scorer // cheap reranker used under pressure
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator from deps and the retrieval/budget
// configuration.
func New(deps Deps, cfg *config.Config, logger log.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = log.NewNop()
	}
	o := &Orchestrator{
		expander:  deps.Expander,
		acquirer:  deps.Acquirer,
		chunker:   deps.Chunker,
		embedder:  deps.Embedder,
		generator: deps.Generator,
		scorer:    deps.Scorer,
		fallback:  deps.Fallback,
		retrieveCfg: retrieve.Config{
			KLexical:  cfg.KLexical,
			KVector:   cfg.KVector,
			RRFC:      cfg.RRFConstant,
			FusionTop: cfg.FusionTopN,
			FinalK:    cfg.FinalK,
		},
		total:  cfg.Deadline(),
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessQuery answers one question within the session, spending at most
// the configured budget. It always returns a Result; a degraded or failed
// run explains itself through FailureReason and Diagnostics.
func (o *Orchestrator) ProcessQuery(ctx context.Context, sess *session.Session, question string) Result {
	budget := NewBudget(o.total, o.now)
	ctx, cancel := context.WithTimeout(ctx, o.total)
	defer cancel()

	var diag Diagnostics

	queries := o.expander.Expand(question, o.now())
	diag.QueriesIssued = len(queries)
	o.logger.Debug("query expanded", "question", question, "queries", len(queries))

	if budget.Allows(generationReserve + acquireMinimum) {
		o.acquireAndIndex(ctx, sess, queries, &diag)
	} else {
		diag.ShortCircuited = true
		o.logger.Warn("budget too small for acquisition, answering from session index",
			"remaining", budget.Remaining())
	}

	pad := o.retrieveAndRerank(ctx, sess, question, budget, &diag)

	elapsed := func() float64 { return elapsedSeconds(budget.Elapsed()) }
	if len(pad.Chunks) == 0 {
		return Result{
			Success:        false,
			Answer:         "No relevant information could be found for this question.",
			FailureReason:  ReasonNoEvidence,
			Stage:          StageDone,
			ProcessingTime: elapsed(),
			Diagnostics:    diag,
		}
	}

	answer, err := o.generator.Generate(ctx, answerPrompt(question, pad))
	if err != nil {
		stage, reason := StageFailed, ReasonGenerationFailed
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			stage, reason = StageTimedOut, ReasonDeadlineExceeded
		}
		o.logger.Error("answer generation failed", "error", err, "stage", stage)
		return Result{
			Success:        false,
			FailureReason:  reason,
			Stage:          stage,
			Sources:        uniqueSources(pad),
			Confidence:     pad.Confidence(),
			ProcessingTime: elapsed(),
			Diagnostics:    diag,
		}
	}

	return Result{
		Success:        true,
		Answer:         answer,
		Sources:        uniqueSources(pad),
		Confidence:     pad.Confidence(),
		Stage:          StageDone,
		ProcessingTime: elapsed(),
		Diagnostics:    diag,
	}
}

// acquireAndIndex runs search, crawl, chunk and index, folding everything
// it manages to produce into the session index. Partial failure only
// shrinks the evidence set.
func (o *Orchestrator) acquireAndIndex(ctx context.Context, sess *session.Session, queries []query.SearchQuery, diag *Diagnostics) {
	results, queryOutcomes := o.acquirer.Search(ctx, queries)
	diag.QueriesFailed = acquire.FailedQueries(queryOutcomes)

	urls := make([]string, len(results))
	for i, r := range results {
		urls[i] = r.URL
	}

	pages, urlOutcomes := o.acquirer.Crawl(ctx, urls)
	diag.URLsAttempted = len(urlOutcomes)
	for _, out := range urlOutcomes {
		if out.Err != nil {
			diag.URLsFailed++
		}
	}
	diag.PagesCrawled = len(pages)

	chunks, chunkOutcomes := o.chunker.Process(ctx, pages)
	for _, out := range chunkOutcomes {
		diag.ChunksDropped += out.DroppedEmbed
	}

	idx := sess.Index()
	for _, c := range chunks {
		if err := idx.Upsert(c); err != nil {
			diag.ChunksDropped++
			o.logger.Debug("chunk rejected by index", "chunk_id", c.ID, "error", err)
			continue
		}
		diag.ChunksIndexed++
	}
	o.logger.Info("evidence acquired",
		"pages", len(pages), "indexed", diag.ChunksIndexed, "dropped", diag.ChunksDropped)
}

// retrieveAndRerank queries the session index and reranks the fused
// candidates, degrading to the overlap scorer when the budget no longer
// covers a model call.
func (o *Orchestrator) retrieveAndRerank(ctx context.Context, sess *session.Session, question string, budget *Budget, diag *Diagnostics) retrieve.ScratchPad {
	idx := sess.Index()
	if idx == nil || idx.Len() == 0 {
		return retrieve.ScratchPad{}
	}

	retriever := retrieve.New(idx, o.scorer, o.retrieveCfg, o.logger)

	var queryVector []float32
	if vecs, err := o.embedder.Embed(ctx, []string{question}); err == nil && len(vecs) == 1 {
		queryVector = vecs[0]
	} else if err != nil {
		o.logger.Warn("query embedding failed, lexical retrieval only", "error", err)
	}

	candidates := retriever.Candidates(question, queryVector)

	scorer := o.scorer
	diag.Reranker = "model"
	if scorer == nil || !budget.Allows(generationReserve+rerankModelCost) {
		scorer = o.fallback
		diag.Reranker = "overlap"
	}
	return retriever.Rerank(ctx, scorer, question, candidates)
}

// answerPrompt lays the evidence out as source-tagged blocks and asks for
// a cited answer.
func answerPrompt(question string, pad retrieve.ScratchPad) string {
	var b strings.Builder
	b.WriteString("Answer the question using only the evidence below. ")
	b.WriteString("Cite the sources you rely on by their URL. ")
	b.WriteString("If the evidence does not answer the question, say so.\n")
	for _, c := range pad.Chunks {
		fmt.Fprintf(&b, "\n[Source: %s]\n", c.Source)
		if c.ContextPrefix != "" {
			b.WriteString(c.ContextPrefix)
			b.WriteString("\n")
		}
		b.WriteString(c.Text)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nQuestion: %s\n", question)
	return b.String()
}

// uniqueSources lists each source URL once, in evidence order.
func uniqueSources(pad retrieve.ScratchPad) []string {
	seen := make(map[string]struct{})
	var sources []string
	for _, c := range pad.Chunks {
		if _, ok := seen[c.Source]; ok {
			continue
		}
		seen[c.Source] = struct{}{}
		sources = append(sources, c.Source)
	}
	return sources
}
