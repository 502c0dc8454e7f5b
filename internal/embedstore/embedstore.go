// Package embedstore implements the embedding store (C8, §4.6): embedding
// generation, a persistent similarity index, and a metadata sidecar with
// DOI-based duplicate suppression on insert.
//
// The similarity index itself is an in-memory chromem-go collection
// (exhaustive inner-product search over unit-normalized vectors); this
// package owns its own two-file durable representation — a vector file
// and a metadata sidecar — and rehydrates the collection from them on
// load, since chromem-go's own persistence format is per-document files
// rather than the two-artifact layout required here.
package embedstore

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/gob"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"litscout/internal/classify"
	"litscout/internal/llm"
	"litscout/internal/models"
)

const collectionName = "papers"

// Store is the persistent vector index + metadata sidecar described in
// §4.6. Insert/Save calls are serialized by mu; SimilaritySearch may run
// concurrently with reads but never concurrently with an insert (§5).
type Store struct {
	client *llm.Client
	logger *slog.Logger

	pathPrefix string
	compress   bool

	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	metadata   map[string]paperMetadata
	order      []string
}

// paperMetadata is the persisted sidecar record for one embedded paper.
type paperMetadata struct {
	Paper       models.Paper `json:"paper"`
	Embedding   []float32    `json:"embedding"`
	Timestamp   time.Time    `json:"timestamp"`
	SessionID   string       `json:"session_id"`
	SearchQuery string       `json:"search_query"`
}

// New builds an in-memory-backed Store and restores persisted state from
// disk, if pathPrefix names existing files. compress gzips both persisted
// files when true.
func New(client *llm.Client, pathPrefix string, compress bool, logger *slog.Logger) (*Store, error) {
	db := chromem.NewDB()
	collection, err := db.CreateCollection(collectionName, nil, noopEmbeddingFunc)
	if err != nil {
		return nil, err
	}

	s := &Store{
		client:     client,
		logger:     logger,
		pathPrefix: pathPrefix,
		compress:   compress,
		db:         db,
		collection: collection,
		metadata:   make(map[string]paperMetadata),
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// noopEmbeddingFunc satisfies chromem's EmbeddingFunc contract; this store
// always supplies precomputed embeddings via AddDocument, so it is never
// actually invoked.
func noopEmbeddingFunc(_ context.Context, _ string) ([]float32, error) {
	return nil, nil
}

func (s *Store) vectorPath() string { return s.pathPrefix + ".vectors.gob" }
func (s *Store) metaPath() string   { return s.pathPrefix + ".meta.json" }

// embed generates the embedding input per §4.6: the concatenation of
// title, abstract, joined keywords, joined categories, and journal. On any
// API failure it returns a zero vector rather than an error.
func (s *Store) embed(ctx context.Context, p *models.Paper) []float32 {
	if s.client == nil {
		return make([]float32, s.zeroVectorDim())
	}

	text := strings.Join([]string{
		p.Title, p.Abstract,
		strings.Join(p.Keywords, " "),
		strings.Join(p.Categories, " "),
		p.Journal,
	}, " ")

	vec, err := s.client.Embed(ctx, text)
	if err != nil {
		s.logger.Warn("embedding generation failed, using zero vector",
			slog.String("paper_id", p.PaperID), slog.String("error", err.Error()))
		return make([]float32, s.zeroVectorDim())
	}
	return l2Normalize(vec)
}

func (s *Store) zeroVectorDim() int {
	if s.client == nil {
		return 768
	}
	if dim := s.client.Dimensions(); dim > 0 {
		return dim
	}
	return 768
}

func l2Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func isZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// InsertBatch embeds and stores papers not already present by DOI,
// classifies their type, and persists the store atomically (§4.6).
func (s *Store) InsertBatch(ctx context.Context, papers []models.Paper, query, sessionID string) ([]models.EmbeddedPaper, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existingDOIs := make(map[string]struct{}, len(s.metadata))
	for _, m := range s.metadata {
		if m.Paper.DOI != "" {
			existingDOIs[strings.ToLower(m.Paper.DOI)] = struct{}{}
		}
	}

	var inserted []models.EmbeddedPaper
	for _, p := range papers {
		if p.DOI != "" {
			if _, dup := existingDOIs[strings.ToLower(p.DOI)]; dup {
				continue
			}
		}

		vec := s.embed(ctx, &p)
		p.PaperType = classify.Classify(p.Title, p.Journal, p.Abstract)

		rec := paperMetadata{
			Paper:       p,
			Embedding:   vec,
			Timestamp:   time.Now(),
			SessionID:   sessionID,
			SearchQuery: query,
		}

		// chromem-go renormalizes every embedding it's given, which would
		// turn a degraded all-zero vector into NaN rather than preserving
		// the zero-similarity semantics the embedding API failure path
		// requires (§4.6). Degraded papers keep their metadata record but
		// are left out of the similarity index itself.
		if !isZeroVector(vec) {
			if err := s.collection.AddDocument(ctx, chromem.Document{
				ID:        p.PaperID,
				Embedding: vec,
				Metadata: map[string]string{
					"paper_type": string(p.PaperType),
					"session_id": sessionID,
				},
				Content: p.Title,
			}); err != nil {
				return nil, err
			}
		}

		s.metadata[p.PaperID] = rec
		s.order = append(s.order, p.PaperID)

		if p.DOI != "" {
			existingDOIs[strings.ToLower(p.DOI)] = struct{}{}
		}

		inserted = append(inserted, models.EmbeddedPaper{
			Paper:       p,
			Embedding:   vec,
			Timestamp:   rec.Timestamp,
			SessionID:   sessionID,
			SearchQuery: query,
		})
	}

	if len(inserted) > 0 {
		if err := s.persist(); err != nil {
			return nil, err
		}
	}

	return inserted, nil
}

// SimilaritySearch embeds query and returns up to k nearest EmbeddedPapers,
// optionally restricted to a paper type (§4.6).
func (s *Store) SimilaritySearch(ctx context.Context, query string, k int, paperTypeFilter *models.PaperType) ([]models.EmbeddedPaper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.collection.Count() == 0 {
		return nil, nil
	}

	var queryVec []float32
	if s.client == nil {
		queryVec = make([]float32, s.zeroVectorDim())
	} else {
		vec, err := s.client.Embed(ctx, query)
		if err != nil {
			return nil, err
		}
		queryVec = l2Normalize(vec)
	}

	fetch := k
	var where map[string]string
	if paperTypeFilter != nil {
		fetch = k * 3
		where = map[string]string{"paper_type": string(*paperTypeFilter)}
	}
	if fetch > s.collection.Count() {
		fetch = s.collection.Count()
	}

	results, err := s.collection.QueryEmbedding(ctx, queryVec, fetch, where, nil)
	if err != nil {
		return nil, err
	}

	out := make([]models.EmbeddedPaper, 0, k)
	for _, r := range results {
		if len(out) >= k {
			break
		}
		rec, ok := s.metadata[r.ID]
		if !ok {
			continue
		}
		ep := models.EmbeddedPaper{
			Paper:       rec.Paper,
			Embedding:   rec.Embedding,
			Timestamp:   rec.Timestamp,
			SessionID:   rec.SessionID,
			SearchQuery: rec.SearchQuery,
		}
		ep.SimilarityScore = float64(r.Similarity)
		out = append(out, ep)
	}
	return out, nil
}

// Stats reports aggregate counts over the stored collection (§4.6).
type Stats struct {
	Total            int
	ByType           map[models.PaperType]int
	MeanRelevance    float64
	MeanConfidence   float64
	DistinctSessions int
	IndexSize        int
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{ByType: make(map[models.PaperType]int)}
	sessions := map[string]struct{}{}

	var relevanceSum, confidenceSum float64
	var relevanceCount, confidenceCount int

	for _, m := range s.metadata {
		stats.Total++
		stats.ByType[m.Paper.PaperType]++
		sessions[m.SessionID] = struct{}{}

		if isFinite(m.Paper.RelevanceScore) {
			relevanceSum += m.Paper.RelevanceScore
			relevanceCount++
		}
		if isFinite(m.Paper.ConfidenceScore) {
			confidenceSum += m.Paper.ConfidenceScore
			confidenceCount++
		}
	}

	if relevanceCount > 0 {
		stats.MeanRelevance = relevanceSum / float64(relevanceCount)
	}
	if confidenceCount > 0 {
		stats.MeanConfidence = confidenceSum / float64(confidenceCount)
	}
	stats.DistinctSessions = len(sessions)
	stats.IndexSize = s.collection.Count()

	return stats
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// persist writes the vector index and metadata sidecar atomically
// (write-to-temp + rename, per file).
func (s *Store) persist() error {
	var vecBuf bytes.Buffer
	enc := gob.NewEncoder(&vecBuf)
	persisted := struct {
		Order    []string
		Metadata map[string]paperMetadata
	}{Order: s.order, Metadata: s.metadata}
	if err := enc.Encode(persisted); err != nil {
		return err
	}
	if err := s.atomicWrite(s.vectorPath(), vecBuf.Bytes()); err != nil {
		return err
	}

	metaJSON, err := json.Marshal(persisted)
	if err != nil {
		return err
	}
	return s.atomicWrite(s.metaPath(), metaJSON)
}

func (s *Store) atomicWrite(path string, data []byte) error {
	if s.compress {
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(data); err != nil {
			return err
		}
		if err := gw.Close(); err != nil {
			return err
		}
		data = buf.Bytes()
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// load rehydrates the in-memory chromem collection and metadata map from
// the vector file, if present. A missing file means a fresh store.
func (s *Store) load() error {
	data, err := os.ReadFile(s.vectorPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	if s.compress {
		gr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return err
		}
		defer gr.Close()
		data, err = io.ReadAll(gr)
		if err != nil {
			return err
		}
	}

	var persisted struct {
		Order    []string
		Metadata map[string]paperMetadata
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&persisted); err != nil {
		return err
	}

	s.order = persisted.Order
	s.metadata = persisted.Metadata

	ctx := context.Background()
	for _, id := range s.order {
		rec, ok := s.metadata[id]
		if !ok || isZeroVector(rec.Embedding) {
			continue
		}
		if err := s.collection.AddDocument(ctx, chromem.Document{
			ID:        id,
			Embedding: rec.Embedding,
			Metadata: map[string]string{
				"paper_type": string(rec.Paper.PaperType),
				"session_id": rec.SessionID,
			},
			Content: rec.Paper.Title,
		}); err != nil {
			return err
		}
	}
	return nil
}
