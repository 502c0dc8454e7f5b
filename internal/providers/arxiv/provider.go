package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"litscout/internal/classify"
	"litscout/internal/keywords"
	"litscout/internal/models"
	"litscout/internal/providers"
)

const defaultBaseURL = "http://export.arxiv.org/api/query"

// Provider queries the arXiv Atom API (§4.1). Citation counts are not
// available from this source and are always left at 0, which effectively
// disables any citation-count filter for arXiv results.
type Provider struct {
	baseURL    string
	enabled    bool
	httpClient *http.Client
	logger     *slog.Logger
	retry      *providers.RetryPolicy
}

// NewProvider builds the arXiv adapter.
func NewProvider(baseURL string, timeout time.Duration, enabled bool, logger *slog.Logger) *Provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{
		baseURL:    baseURL,
		enabled:    enabled,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		retry:      providers.NewRetryPolicy(string(models.SourceArxiv), logger),
	}
}

func (p *Provider) Name() models.SourceTag { return models.SourceArxiv }
func (p *Provider) Enabled() bool          { return p.enabled }

// Search builds an arXiv search_query, fetches and parses the Atom feed,
// and applies filters.Matches before returning.
func (p *Provider) Search(ctx context.Context, query string, filters *models.SearchFilters, maxResults int) ([]models.Paper, error) {
	if !p.enabled {
		return nil, nil
	}

	searchQuery := buildSearchQuery(query, filters)

	var body []byte
	err := p.retry.Do(ctx, func() (int, error) {
		b, status, rerr := p.fetch(ctx, searchQuery, maxResults)
		if rerr == nil {
			body = b
		}
		return status, rerr
	})
	if err != nil {
		return nil, fmt.Errorf("arxiv search failed: %w", err)
	}

	var f feed
	if err := xml.Unmarshal(body, &f); err != nil {
		return nil, fmt.Errorf("arxiv response parse failed: %w", err)
	}

	papers := make([]models.Paper, 0, len(f.Entries))
	for _, e := range f.Entries {
		paper, convErr := convertEntry(e)
		if convErr != nil {
			p.logger.Warn("skipping unparseable arxiv entry", slog.String("error", convErr.Error()))
			continue
		}
		if filters != nil && !filters.Matches(paper) {
			continue
		}
		papers = append(papers, *paper)
	}

	return papers, nil
}

func buildSearchQuery(query string, filters *models.SearchFilters) string {
	parts := []string{fmt.Sprintf("all:%s", query)}

	if filters != nil {
		start, end := "*", "*"
		if ys := filters.YearStart(); ys != nil {
			start = fmt.Sprintf("%04d0101", *ys)
		}
		if ye := filters.YearEnd(); ye != nil {
			end = fmt.Sprintf("%04d1231", *ye)
		}
		if start != "*" || end != "*" {
			parts = append(parts, fmt.Sprintf("submittedDate:[%s TO %s]", start, end))
		}
	}

	return strings.Join(parts, " AND ")
}

func (p *Provider) fetch(ctx context.Context, searchQuery string, maxResults int) ([]byte, int, error) {
	params := url.Values{}
	params.Set("search_query", searchQuery)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("sortBy", "relevance")
	params.Set("sortOrder", "descending")

	reqURL := p.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", "litscout/1.0")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("arxiv returned status %d", resp.StatusCode)
	}

	return body, resp.StatusCode, nil
}

func convertEntry(e entry) (*models.Paper, error) {
	id := extractArxivID(e.ID)
	if id == "" {
		return nil, fmt.Errorf("invalid arxiv id: %s", e.ID)
	}

	authors := make([]string, 0, len(e.Authors))
	for _, a := range e.Authors {
		authors = append(authors, a.Name)
	}

	categories := make([]string, 0, len(e.Categories))
	for _, c := range e.Categories {
		categories = append(categories, c.Term)
	}

	paper := models.NewPaper("arxiv_"+id, strings.TrimSpace(e.Title), models.SourceArxiv)
	paper.Authors = authors
	paper.Abstract = strings.TrimSpace(e.Summary)
	paper.Categories = categories
	paper.Journal = e.Journal
	paper.DOI = e.DOI
	paper.URL = e.ID
	paper.PublicationDate = publicationYear(e.Published)

	for _, l := range e.Links {
		if l.Type == "application/pdf" {
			paper.URL = l.Href
		}
	}

	paper.Keywords = keywords.Extract(paper.Title+" "+paper.Abstract, 0)
	paper.PaperType = classify.Classify(paper.Title, paper.Journal, paper.Abstract)

	paper.Normalize()
	return paper, nil
}

func publicationYear(published string) string {
	if t, err := time.Parse(time.RFC3339, published); err == nil {
		return strconv.Itoa(t.Year())
	}
	return models.UnknownPublicationDate
}

func extractArxivID(entryID string) string {
	parts := strings.Split(entryID, "/")
	if len(parts) == 0 {
		return ""
	}
	id := parts[len(parts)-1]
	if idx := strings.LastIndex(id, "v"); idx > 0 {
		id = id[:idx]
	}
	return id
}
