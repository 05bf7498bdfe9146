package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/jiho-dev/askweb/internal/chunk"
	"github.com/jiho-dev/askweb/internal/log"
)

const (
	qdrantUpsertBatch = 100
	qdrantScrollPage  = 256
)

// Qdrant archives sessions as points in one collection, partitioned by a
// session_id payload field.
type Qdrant struct {
	client     *qdrant.Client
	collection string
	logger     log.Logger
}

// NewQdrant connects to a Qdrant node and waits for it to become healthy.
func NewQdrant(ctx context.Context, host string, port int, collection string, logger log.Logger) (*Qdrant, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	q := &Qdrant{client: client, collection: collection, logger: logger}
	if err := q.healthCheck(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return q, nil
}

func (q *Qdrant) healthCheck(ctx context.Context) error {
	bo := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(15*time.Second),
	), ctx)
	return backoff.Retry(func() error {
		_, err := q.client.HealthCheck(ctx)
		return err
	}, bo)
}

// ensureCollection creates the collection on first use; the vector size
// comes from the first archived chunk.
func (q *Qdrant) ensureCollection(ctx context.Context, dim int) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		return nil
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", q.collection, err)
	}
	q.logger.Info("qdrant collection created", "collection", q.collection, "dimension", dim)
	return nil
}

// pointID derives a stable point UUID from the session and chunk, so
// re-archiving upserts in place.
func pointID(sessionID uuid.UUID, chunkID string) string {
	return uuid.NewSHA1(sessionID, []byte(chunkID)).String()
}

// Archive upserts the session's chunks in batches.
func (q *Qdrant) Archive(ctx context.Context, sessionID uuid.UUID, chunks []chunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := q.ensureCollection(ctx, len(chunks[0].Embedding)); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, c := range chunks {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(sessionID, c.ID)),
			Vectors: qdrant.NewVectors(c.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				"session_id":     sessionID.String(),
				"chunk_id":       c.ID,
				"ordinal":        int64(i),
				"source":         c.Source,
				"source_time":    c.SourceTime.UTC().Format(time.RFC3339),
				"content":        c.Text,
				"context_prefix": c.ContextPrefix,
			}),
		}
	}

	for start := 0; start < len(points); start += qdrantUpsertBatch {
		end := start + qdrantUpsertBatch
		if end > len(points) {
			end = len(points)
		}
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.collection,
			Points:         points[start:end],
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("archive session %s: %w", sessionID, err)
		}
	}
	q.logger.Debug("session archived", "session_id", sessionID, "chunks", len(chunks))
	return nil
}

func sessionFilter(sessionID uuid.UUID) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("session_id", sessionID.String()),
		},
	}
}

// Load scrolls all points for the session and restores archive order from
// the ordinal payload.
func (q *Qdrant) Load(ctx context.Context, sessionID uuid.UUID) ([]chunk.Chunk, error) {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return nil, fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		return nil, ErrSessionNotFound
	}

	type ordered struct {
		chunk   chunk.Chunk
		ordinal int64
	}
	var all []ordered

	var offset *qdrant.PointId
	for {
		points, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: q.collection,
			Filter:         sessionFilter(sessionID),
			Limit:          qdrant.PtrOf(uint32(qdrantScrollPage)),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		if err != nil {
			return nil, fmt.Errorf("load session %s: %w", sessionID, err)
		}
		if len(points) == 0 {
			break
		}
		for _, pt := range points {
			payload := pt.GetPayload()
			sourceTime, _ := time.Parse(time.RFC3339, payload["source_time"].GetStringValue())
			c := chunk.Chunk{
				ID:            payload["chunk_id"].GetStringValue(),
				Source:        payload["source"].GetStringValue(),
				SourceTime:    sourceTime,
				Text:          payload["content"].GetStringValue(),
				ContextPrefix: payload["context_prefix"].GetStringValue(),
			}
			if v := pt.GetVectors().GetVector(); v != nil {
				c.Embedding = v.GetData()
			}
			all = append(all, ordered{chunk: c, ordinal: payload["ordinal"].GetIntegerValue()})
		}
		if len(points) < qdrantScrollPage {
			break
		}
		offset = points[len(points)-1].GetId()
	}

	if len(all) == 0 {
		return nil, ErrSessionNotFound
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ordinal < all[j].ordinal })
	chunks := make([]chunk.Chunk, len(all))
	for i, o := range all {
		chunks[i] = o.chunk
		chunks[i].Position = i
	}
	return chunks, nil
}

// Delete removes every point of the session.
func (q *Qdrant) Delete(ctx context.Context, sessionID uuid.UUID) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		return nil
	}
	_, err = q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelectorFilter(sessionFilter(sessionID)),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

// Close shuts the client connection.
func (q *Qdrant) Close() error {
	return q.client.Close()
}
