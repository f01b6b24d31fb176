// Package usecase contains application business logic services.
package usecase

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fairyhunter13/immigration-assistant/internal/domain"
)

// IngestService loads the document corpus, chunks it and pushes it into the
// vector index. It runs from cmd/ingest, not on the request path.
type IngestService struct {
	Index        domain.VectorIndex
	ChunkSize    int
	ChunkOverlap int
}

// NewIngestService constructs an IngestService. Chunk parameters are
// validated: overlap must be strictly smaller than size.
func NewIngestService(ix domain.VectorIndex, chunkSize, chunkOverlap int) (*IngestService, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive", domain.ErrInvalidArgument)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap %d must be in [0,%d)", domain.ErrInvalidArgument, chunkOverlap, chunkSize)
	}
	return &IngestService{Index: ix, ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}, nil
}

// LoadDocuments reads all .txt files from dir and attaches provenance
// metadata inferred from each filename.
func LoadDocuments(dir string) ([]domain.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("op=ingest.load: %w", err)
	}
	docs := make([]domain.Document, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".txt") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("op=ingest.load %s: %w", e.Name(), err)
		}
		country, dom := inferMetadata(e.Name())
		docs = append(docs, domain.Document{
			Source:     e.Name(),
			Content:    string(b),
			Country:    country,
			Domain:     dom,
			IngestedAt: time.Now().UTC(),
		})
	}
	return docs, nil
}

// inferMetadata derives coarse category metadata from a filename. The
// substrings are a deliberate convention of the corpus layout.
func inferMetadata(filename string) (country, dom string) {
	lower := strings.ToLower(filename)
	switch {
	case strings.Contains(lower, "uk"):
		return "UK", "immigration"
	case strings.Contains(lower, "canada"):
		return "Canada", "immigration"
	case strings.Contains(lower, "diaspora"):
		return "Global", "diaspora_services"
	}
	return "Unknown", "general"
}

// ChunkDocuments splits each document into overlapping fixed-size spans.
// Consecutive chunks of a document share exactly overlap runes, except
// possibly the last chunk; concatenating chunks minus overlaps reconstructs
// the document exactly.
func (s *IngestService) ChunkDocuments(docs []domain.Document) []domain.Chunk {
	var chunks []domain.Chunk
	for _, doc := range docs {
		content := []rune(doc.Content)
		if len(content) == 0 {
			continue
		}
		index := 0
		start := 0
		for {
			end := start + s.ChunkSize
			if end > len(content) {
				end = len(content)
			}
			chunks = append(chunks, domain.Chunk{
				Source:     doc.Source,
				Content:    string(content[start:end]),
				Country:    doc.Country,
				Domain:     doc.Domain,
				Index:      index,
				IngestedAt: doc.IngestedAt,
			})
			index++
			if end == len(content) {
				break
			}
			start = end - s.ChunkOverlap
		}
	}
	return chunks
}

// IngestDir loads, chunks and indexes every document under dir. Returns the
// number of chunks indexed.
func (s *IngestService) IngestDir(ctx domain.Context, dir string) (int, error) {
	docs, err := LoadDocuments(dir)
	if err != nil {
		return 0, err
	}
	chunks := s.ChunkDocuments(docs)
	if len(chunks) == 0 {
		slog.Warn("no chunks produced from corpus", slog.String("dir", dir))
		return 0, nil
	}
	if err := s.Index.Index(ctx, chunks); err != nil {
		return 0, fmt.Errorf("op=ingest.index: %w", err)
	}
	slog.Info("corpus indexed",
		slog.String("dir", dir),
		slog.Int("documents", len(docs)),
		slog.Int("chunks", len(chunks)))
	return len(chunks), nil
}
