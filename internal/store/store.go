// Package store persists archived session chunks in a durable backend so
// an idle session can be resumed later. Two backends are supported:
// Postgres with pgvector, and Qdrant.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jiho-dev/askweb/internal/chunk"
)

// Sentinel errors. Check with errors.Is().
var (
	// ErrSessionNotFound indicates no archive exists for the session.
	ErrSessionNotFound = errors.New("archived session not found")

	// ErrStoreUnavailable indicates the backend could not be reached.
	ErrStoreUnavailable = errors.New("durable store unavailable")
)

// Store is the durable session archive.
type Store interface {
	// Archive persists the session's chunks. Re-archiving the same
	// session upserts by chunk ID; it never duplicates.
	Archive(ctx context.Context, sessionID uuid.UUID, chunks []chunk.Chunk) error

	// Load returns the session's archived chunks in archive order, or
	// ErrSessionNotFound.
	Load(ctx context.Context, sessionID uuid.UUID) ([]chunk.Chunk, error)

	// Delete removes the session's archive. Deleting a missing session
	// is not an error.
	Delete(ctx context.Context, sessionID uuid.UUID) error

	// Close releases backend resources.
	Close() error
}
