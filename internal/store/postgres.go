package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/jiho-dev/askweb/internal/chunk"
	"github.com/jiho-dev/askweb/internal/log"
)

// Postgres archives sessions in a pgvector-enabled database.
type Postgres struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// NewPostgres connects a pool to databaseURL and verifies connectivity.
func NewPostgres(ctx context.Context, databaseURL string, logger log.Logger) (*Postgres, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &Postgres{pool: pool, logger: logger}, nil
}

// NewPostgresFromPool wraps an existing pool; used by tests that manage
// their own container.
func NewPostgresFromPool(pool *pgxpool.Pool, logger log.Logger) *Postgres {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Postgres{pool: pool, logger: logger}
}

// Archive upserts the session's chunks in one batch, keyed by
// (session_id, chunk_id) so repeated archives replace instead of
// duplicate.
func (p *Postgres) Archive(ctx context.Context, sessionID uuid.UUID, chunks []chunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	const stmt = `
		INSERT INTO session_chunks
			(session_id, chunk_id, ordinal, source, source_time, content, context_prefix, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id, chunk_id) DO UPDATE SET
			ordinal = EXCLUDED.ordinal,
			source = EXCLUDED.source,
			source_time = EXCLUDED.source_time,
			content = EXCLUDED.content,
			context_prefix = EXCLUDED.context_prefix,
			embedding = EXCLUDED.embedding,
			archived_at = now()`

	batch := &pgx.Batch{}
	for i, c := range chunks {
		batch.Queue(stmt, sessionID, c.ID, i, c.Source, c.SourceTime, c.Text, c.ContextPrefix, pgvector.NewVector(c.Embedding))
	}

	results := p.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range chunks {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("archive session %s: %w", sessionID, err)
		}
	}
	p.logger.Debug("session archived", "session_id", sessionID, "chunks", len(chunks))
	return nil
}

// Load returns the archived chunks in archive order.
func (p *Postgres) Load(ctx context.Context, sessionID uuid.UUID) ([]chunk.Chunk, error) {
	const stmt = `
		SELECT chunk_id, source, source_time, content, context_prefix, embedding
		FROM session_chunks
		WHERE session_id = $1
		ORDER BY ordinal`

	rows, err := p.pool.Query(ctx, stmt, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var chunks []chunk.Chunk
	position := 0
	for rows.Next() {
		var (
			c   chunk.Chunk
			vec pgvector.Vector
		)
		if err := rows.Scan(&c.ID, &c.Source, &c.SourceTime, &c.Text, &c.ContextPrefix, &vec); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.Embedding = vec.Slice()
		c.Position = position
		position++
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if len(chunks) == 0 {
		return nil, ErrSessionNotFound
	}
	return chunks, nil
}

// Delete removes the session's archive.
func (p *Postgres) Delete(ctx context.Context, sessionID uuid.UUID) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM session_chunks WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
