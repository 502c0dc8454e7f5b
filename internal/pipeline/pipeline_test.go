package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"litscout/internal/augment"
	"litscout/internal/embedstore"
	"litscout/internal/models"
	"litscout/internal/orchestrator"
	"litscout/internal/providers"
	"litscout/internal/relevance"
	"litscout/internal/repository"
)

// fakeRepository is an in-memory stand-in for repository.Repository, in
// the same spirit as orchestrator's fakeSource: enough behavior to drive
// the controller without a real database.
type fakeRepository struct {
	papers   fakePaperRepository
	sessions fakeSessionRepository
}

func (r *fakeRepository) Papers() repository.PaperRepository     { return &r.papers }
func (r *fakeRepository) Sessions() repository.SessionRepository { return &r.sessions }
func (r *fakeRepository) Transaction(ctx context.Context, fn func(repository.Transaction) error) error {
	return fn(r)
}
func (r *fakeRepository) Ping(context.Context) error                  { return nil }
func (r *fakeRepository) Close() error                                { return nil }
func (r *fakeRepository) GetStats() (map[string]interface{}, error) { return nil, nil }

type fakePaperRepository struct {
	byID map[string]models.Paper
}

func (p *fakePaperRepository) Create(_ context.Context, paper *models.Paper) error {
	p.ensure()
	p.byID[paper.PaperID] = *paper
	return nil
}
func (p *fakePaperRepository) CreateBatch(_ context.Context, papers []models.Paper) error {
	p.ensure()
	for _, paper := range papers {
		p.byID[paper.PaperID] = paper
	}
	return nil
}
func (p *fakePaperRepository) GetByID(_ context.Context, paperID string) (*models.Paper, error) {
	p.ensure()
	paper, ok := p.byID[paperID]
	if !ok {
		return nil, nil
	}
	return &paper, nil
}
func (p *fakePaperRepository) GetByDOI(context.Context, string) (*models.Paper, error) { return nil, nil }
func (p *fakePaperRepository) Update(_ context.Context, paper *models.Paper) error {
	p.ensure()
	p.byID[paper.PaperID] = *paper
	return nil
}
func (p *fakePaperRepository) Delete(_ context.Context, paperID string) error {
	p.ensure()
	delete(p.byID, paperID)
	return nil
}
func (p *fakePaperRepository) ListBySession(context.Context, string, bool) ([]models.Paper, error) {
	return nil, nil
}
func (p *fakePaperRepository) ExistsByDOI(context.Context, string) (bool, error) { return false, nil }
func (p *fakePaperRepository) ExistsByNormalizedTitle(context.Context, string) (bool, error) {
	return false, nil
}
func (p *fakePaperRepository) GetStats(context.Context, string) (*repository.PaperStats, error) {
	return &repository.PaperStats{}, nil
}
func (p *fakePaperRepository) ensure() {
	if p.byID == nil {
		p.byID = make(map[string]models.Paper)
	}
}

type fakeSessionRepository struct {
	byID map[string]models.SessionRecord
}

func (s *fakeSessionRepository) Create(_ context.Context, record *models.SessionRecord) error {
	s.ensure()
	s.byID[record.SessionID] = *record
	return nil
}
func (s *fakeSessionRepository) GetByID(_ context.Context, sessionID string) (*models.SessionRecord, error) {
	s.ensure()
	record, ok := s.byID[sessionID]
	if !ok {
		return nil, nil
	}
	return &record, nil
}
func (s *fakeSessionRepository) Update(_ context.Context, record *models.SessionRecord) error {
	s.ensure()
	s.byID[record.SessionID] = *record
	return nil
}
func (s *fakeSessionRepository) List(context.Context, int, int) ([]models.SessionRecord, error) {
	return nil, nil
}
func (s *fakeSessionRepository) Delete(_ context.Context, sessionID string) error {
	s.ensure()
	delete(s.byID, sessionID)
	return nil
}
func (s *fakeSessionRepository) ensure() {
	if s.byID == nil {
		s.byID = make(map[string]models.SessionRecord)
	}
}

type fakeSource struct {
	name   models.SourceTag
	papers []models.Paper
}

func (f *fakeSource) Name() models.SourceTag { return f.name }
func (f *fakeSource) Enabled() bool          { return true }
func (f *fakeSource) Search(_ context.Context, _ string, filters *models.SearchFilters, _ int) ([]models.Paper, error) {
	var out []models.Paper
	for _, p := range f.papers {
		if filters == nil || filters.Matches(&p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func testPaper(id, title string, citations int) models.Paper {
	p := models.NewPaper(id, title, models.SourceArxiv)
	p.Abstract = title + " abstract content"
	p.CitationCount = citations
	p.PublicationDate = "2022"
	p.Normalize()
	return *p
}

func newTestController(t *testing.T, papers []models.Paper) *Controller {
	t.Helper()
	logger := slog.Default()

	src := &fakeSource{name: models.SourceArxiv, papers: papers}
	manager := providers.NewManager(logger, src)
	validator := relevance.NewValidator(nil, logger)
	orch := orchestrator.New(manager, validator, logger)
	aug := augment.NewAugmenter(nil, logger)

	store, err := embedstore.New(nil, filepath.Join(t.TempDir(), "papers"), false, logger)
	require.NoError(t, err)

	repo := &fakeRepository{}
	return New(orch, aug, store, repo, logger)
}

func TestStartSession_CreatesSessionRecord(t *testing.T) {
	c := newTestController(t, nil)
	sessionID, err := c.StartSession(context.Background(), "transformer networks", models.DefaultSearchFilters())
	require.NoError(t, err)
	assert.NotEmpty(t, sessionID)
	assert.Equal(t, sessionID, c.session.SessionID)
}

func TestInitialSearch_WithoutSessionFails(t *testing.T) {
	c := newTestController(t, nil)
	_, err := c.InitialSearch(context.Background(), "query", models.DefaultSearchFilters(), 10)
	assert.Error(t, err)
}

func TestInitialSearch_ReturnsUpToTenPapers(t *testing.T) {
	var papers []models.Paper
	for i := 0; i < 15; i++ {
		papers = append(papers, testPaper(
			"p"+string(rune('a'+i)), "Attention Transformer Survey", 10+i))
	}
	c := newTestController(t, papers)
	_, err := c.StartSession(context.Background(), "attention transformer", models.DefaultSearchFilters())
	require.NoError(t, err)

	result, err := c.InitialSearch(context.Background(), "attention transformer", models.DefaultSearchFilters(), 15)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.Papers), initialResultLimit)
}

func TestSavePapers_InsertsIntoEmbeddingStore(t *testing.T) {
	papers := []models.Paper{testPaper("p1", "Deep Learning Survey", 50)}
	c := newTestController(t, papers)
	_, err := c.StartSession(context.Background(), "deep learning", models.DefaultSearchFilters())
	require.NoError(t, err)

	result, err := c.InitialSearch(context.Background(), "deep learning", models.DefaultSearchFilters(), 10)
	require.NoError(t, err)
	require.NotEmpty(t, result.Papers)

	saved, err := c.SavePapers(context.Background(), []int{0})
	require.NoError(t, err)
	assert.Equal(t, 1, saved)
	assert.Equal(t, 1, c.store.Stats().Total)
}

func TestFindSimilar_ZeroKReturnsEmpty(t *testing.T) {
	c := newTestController(t, nil)
	result, err := c.FindSimilar(context.Background(), nil, models.DefaultSearchFilters(), 0)
	require.NoError(t, err)
	assert.Empty(t, result.Papers)
}

func TestMergeByPaperID_PrefersSelection(t *testing.T) {
	selected := []models.Paper{testPaper("p1", "Selected Title", 5)}
	found := []models.Paper{testPaper("p1", "Found Title", 99), testPaper("p2", "Other", 1)}

	merged := mergeByPaperID(selected, found)
	require.Len(t, merged, 2)
	assert.Equal(t, "Selected Title", merged[0].Title)
}
