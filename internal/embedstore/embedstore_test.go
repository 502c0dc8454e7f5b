package embedstore

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"litscout/internal/models"
)

func testPaper(id, title, doi string) models.Paper {
	p := models.NewPaper(id, title, models.SourceArxiv)
	p.DOI = doi
	p.Abstract = title + " abstract content"
	p.Normalize()
	return *p
}

func TestInsertBatch_SkipsExistingDOI(t *testing.T) {
	dir := t.TempDir()
	store, err := New(nil, filepath.Join(dir, "papers"), false, slog.Default())
	require.NoError(t, err)

	papers := []models.Paper{testPaper("p1", "Deep Learning Survey", "10.1/abc")}

	inserted, err := store.InsertBatch(context.Background(), papers, "deep learning", "session-1")
	require.NoError(t, err)
	assert.Len(t, inserted, 1)

	again, err := store.InsertBatch(context.Background(), papers, "deep learning", "session-1")
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestInsertBatch_PersistsAndReloads(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "papers")

	store, err := New(nil, prefix, false, slog.Default())
	require.NoError(t, err)

	_, err = store.InsertBatch(context.Background(), []models.Paper{
		testPaper("p1", "Attention Is All You Need", "10.1/attn"),
	}, "attention", "session-1")
	require.NoError(t, err)

	_, statErr := os.Stat(prefix + ".vectors.gob")
	assert.NoError(t, statErr)
	_, statErr = os.Stat(prefix + ".meta.json")
	assert.NoError(t, statErr)

	reloaded, err := New(nil, prefix, false, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Stats().Total)
}

func TestSimilaritySearch_ReturnsAtMostK(t *testing.T) {
	dir := t.TempDir()
	store, err := New(nil, filepath.Join(dir, "papers"), false, slog.Default())
	require.NoError(t, err)

	_, err = store.InsertBatch(context.Background(), []models.Paper{
		testPaper("p1", "Attention Is All You Need", "10.1/attn"),
		testPaper("p2", "BERT Pretraining", "10.1/bert"),
	}, "transformers", "session-1")
	require.NoError(t, err)

	results, err := store.SimilaritySearch(context.Background(), "transformer architectures", 2, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 2)
}

func TestStats_EmptyStore(t *testing.T) {
	dir := t.TempDir()
	store, err := New(nil, filepath.Join(dir, "papers"), false, slog.Default())
	require.NoError(t, err)

	stats := store.Stats()
	assert.Equal(t, 0, stats.Total)
}
