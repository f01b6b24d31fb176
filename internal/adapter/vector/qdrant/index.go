package qdrant

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/immigration-assistant/internal/domain"
)

// Index implements domain.VectorIndex on top of the Qdrant HTTP client and an
// embedding provider. Upserts are keyed by (source, chunk index) so re-running
// ingestion is idempotent; idempotency itself is delegated to Qdrant.
type Index struct {
	cli        *Client
	ai         domain.AIClient
	collection string
}

// NewIndex constructs an Index bound to a single collection.
func NewIndex(cli *Client, ai domain.AIClient, collection string) *Index {
	return &Index{cli: cli, ai: ai, collection: collection}
}

// Index embeds each chunk's text and upserts it into the collection.
// Any embedding or network failure propagates; no retry at this layer.
func (ix *Index) Index(ctx domain.Context, chunks []domain.Chunk) error {
	tracer := otel.Tracer("vector.qdrant")
	ctx, span := tracer.Start(ctx, "index.Upsert")
	defer span.End()
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	vectors, err := ix.ai.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("op=index.embed: %w", err)
	}
	payloads := make([]map[string]any, len(chunks))
	ids := make([]any, len(chunks))
	for i, ch := range chunks {
		payloads[i] = map[string]any{
			"text":        ch.Content,
			"source":      ch.Source,
			"country":     ch.Country,
			"domain":      ch.Domain,
			"chunk_index": ch.Index,
			"ingested_at": ch.IngestedAt.UTC().Format(time.RFC3339),
		}
		// Deterministic point id per (source, chunk index) keeps upserts idempotent.
		ids[i] = uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s#%d", ch.Source, ch.Index))).String()
	}
	if err := ix.cli.UpsertPoints(ctx, ix.collection, vectors, payloads, ids); err != nil {
		return fmt.Errorf("op=index.upsert: %w", err)
	}
	return nil
}

// Search embeds the query and returns the topK nearest chunks with stored
// metadata passed through.
func (ix *Index) Search(ctx domain.Context, query string, topK int) ([]domain.ScoredChunk, error) {
	tracer := otel.Tracer("vector.qdrant")
	ctx, span := tracer.Start(ctx, "index.Search")
	defer span.End()
	vectors, err := ix.ai.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("op=search.embed: %w", err)
	}
	hits, err := ix.cli.Search(ctx, ix.collection, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("op=search.query: %w", err)
	}
	out := make([]domain.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		out = append(out, domain.ScoredChunk{
			Chunk: domain.Chunk{
				Content: payloadString(h.Payload, "text"),
				Source:  payloadStringDefault(h.Payload, "source", "unknown"),
				Country: payloadString(h.Payload, "country"),
				Domain:  payloadString(h.Payload, "domain"),
				Index:   payloadInt(h.Payload, "chunk_index"),
			},
			Score: h.Score,
		})
	}
	return out, nil
}

func payloadString(p map[string]any, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

func payloadStringDefault(p map[string]any, key, def string) string {
	if v, ok := p[key].(string); ok && v != "" {
		return v
	}
	return def
}

func payloadInt(p map[string]any, key string) int {
	switch v := p[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
