package usecase

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/immigration-assistant/internal/domain"
)

func TestNewIngestServiceValidation(t *testing.T) {
	_, err := NewIngestService(&fakeIndex{}, 500, 500)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = NewIngestService(&fakeIndex{}, 0, 0)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = NewIngestService(&fakeIndex{}, 500, 100)
	require.NoError(t, err)
}

func TestChunkDocumentsReconstructsOriginal(t *testing.T) {
	svc, err := NewIngestService(&fakeIndex{}, 500, 100)
	require.NoError(t, err)

	content := strings.Repeat("abcdefghij", 173) // 1730 runes, not size-aligned
	doc := domain.Document{Source: "uk_visa_faq.txt", Content: content, IngestedAt: time.Now()}

	chunks := svc.ChunkDocuments([]domain.Document{doc})
	require.NotEmpty(t, chunks)

	var b strings.Builder
	for i, c := range chunks {
		r := []rune(c.Content)
		if i == 0 {
			b.WriteString(c.Content)
		} else {
			b.WriteString(string(r[100:]))
		}
	}
	assert.Equal(t, content, b.String())
}

func TestChunkDocumentsOverlapAndBounds(t *testing.T) {
	svc, err := NewIngestService(&fakeIndex{}, 500, 100)
	require.NoError(t, err)

	content := strings.Repeat("x", 1234)
	chunks := svc.ChunkDocuments([]domain.Document{{Source: "a.txt", Content: content}})

	for i, c := range chunks {
		r := []rune(c.Content)
		assert.LessOrEqual(t, len(r), 500, "chunk %d exceeds size", i)
		assert.Equal(t, i, c.Index)
		if i > 0 {
			prev := []rune(chunks[i-1].Content)
			tail := string(prev[len(prev)-100:])
			head := string(r[:100])
			assert.Equal(t, tail, head, "chunks %d and %d do not share the overlap", i-1, i)
		}
	}
}

func TestChunkDocumentsShortAndEmpty(t *testing.T) {
	svc, err := NewIngestService(&fakeIndex{}, 500, 100)
	require.NoError(t, err)

	chunks := svc.ChunkDocuments([]domain.Document{
		{Source: "tiny.txt", Content: "short"},
		{Source: "empty.txt", Content: ""},
	})
	require.Len(t, chunks, 1)
	assert.Equal(t, "short", chunks[0].Content)
	assert.Equal(t, "tiny.txt", chunks[0].Source)
}

func TestInferMetadata(t *testing.T) {
	for _, tc := range []struct {
		filename string
		country  string
		domain   string
	}{
		{"uk_visa_faq.txt", "UK", "immigration"},
		{"canada_express_entry.txt", "Canada", "immigration"},
		{"diaspora_services.txt", "Global", "diaspora_services"},
		{"misc_notes.txt", "Unknown", "general"},
	} {
		country, dom := inferMetadata(tc.filename)
		assert.Equal(t, tc.country, country, tc.filename)
		assert.Equal(t, tc.domain, dom, tc.filename)
	}
}

func TestLoadDocuments(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "uk_visa_faq.txt"), []byte("visa content"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("ignored"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	docs, err := LoadDocuments(dir)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "uk_visa_faq.txt", docs[0].Source)
	assert.Equal(t, "visa content", docs[0].Content)
	assert.Equal(t, "UK", docs[0].Country)
	assert.False(t, docs[0].IngestedAt.IsZero())
}

func TestIngestDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "canada_faq.txt"), []byte(strings.Repeat("q", 600)), 0o644))

	ix := &fakeIndex{}
	svc, err := NewIngestService(ix, 500, 100)
	require.NoError(t, err)

	n, err := svc.IngestDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, ix.indexed, 2)
	assert.Equal(t, "Canada", ix.indexed[0].Country)
}
