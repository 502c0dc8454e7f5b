// Package scholar adapts Google Scholar, via SerpAPI, to the Source
// contract (§4.1). It is the one adapter that is silently disabled rather
// than a startup failure when its API key is absent (§6, config decision
// carried from the teacher's optional-provider pattern).
package scholar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"litscout/internal/classify"
	"litscout/internal/keywords"
	"litscout/internal/models"
	"litscout/internal/providers"
)

const defaultBaseURL = "https://serpapi.com/search"

var citedByFallback = regexp.MustCompile(`Cited by (\d+)`)

// Provider queries Google Scholar through SerpAPI. Results usually lack a
// DOI; venue is taken from the trailing segment of publication_info.summary
// after its last hyphen.
type Provider struct {
	baseURL    string
	enabled    bool
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	retry      *providers.RetryPolicy
}

// NewProvider builds the Scholar adapter. enabled should already reflect
// the absence of an API key (the caller decides, per §6).
func NewProvider(baseURL string, timeout time.Duration, enabled bool, apiKey string, logger *slog.Logger) *Provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{
		baseURL:    baseURL,
		enabled:    enabled,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		retry:      providers.NewRetryPolicy(string(models.SourceGoogleScholarSerpAPI), logger),
	}
}

func (p *Provider) Name() models.SourceTag { return models.SourceGoogleScholarSerpAPI }
func (p *Provider) Enabled() bool          { return p.enabled }

type organicResult struct {
	Title           string `json:"title"`
	Link            string `json:"link"`
	Snippet         string `json:"snippet"`
	PublicationInfo struct {
		Summary string `json:"summary"`
	} `json:"publication_info"`
	InlineLinks struct {
		CitedBy struct {
			Total int `json:"total"`
		} `json:"cited_by"`
	} `json:"inline_links"`
}

type searchResponse struct {
	OrganicResults []organicResult `json:"organic_results"`
}

// Search queries the SerpAPI google_scholar engine and converts results to Papers.
func (p *Provider) Search(ctx context.Context, query string, filters *models.SearchFilters, maxResults int) ([]models.Paper, error) {
	if !p.enabled {
		return nil, nil
	}

	var body []byte
	err := p.retry.Do(ctx, func() (int, error) {
		b, status, rerr := p.fetch(ctx, query, filters, maxResults)
		if rerr == nil {
			body = b
		}
		return status, rerr
	})
	if err != nil {
		return nil, fmt.Errorf("scholar search failed: %w", err)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("scholar response parse failed: %w", err)
	}

	papers := make([]models.Paper, 0, len(resp.OrganicResults))
	for i, item := range resp.OrganicResults {
		paper, convErr := convertResult(i, item)
		if convErr != nil {
			p.logger.Warn("skipping unparseable scholar result", slog.String("error", convErr.Error()))
			continue
		}
		if filters != nil && !filters.Matches(paper) {
			continue
		}
		papers = append(papers, *paper)
	}

	return papers, nil
}

func (p *Provider) fetch(ctx context.Context, query string, filters *models.SearchFilters, maxResults int) ([]byte, int, error) {
	params := url.Values{}
	params.Set("engine", "google_scholar")
	params.Set("q", query)
	params.Set("num", strconv.Itoa(maxResults))
	params.Set("hl", "en")
	params.Set("as_sdt", "0,5")
	params.Set("api_key", p.apiKey)

	if filters != nil {
		if ys := filters.YearStart(); ys != nil {
			params.Set("as_ylo", strconv.Itoa(*ys))
		}
		if ye := filters.YearEnd(); ye != nil {
			params.Set("as_yhi", strconv.Itoa(*ye))
		}
	}

	reqURL := p.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, err
	}

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
		return nil, resp.StatusCode, fmt.Errorf("serpapi returned status %d", resp.StatusCode)
	}

	return body, resp.StatusCode, nil
}

func convertResult(index int, item organicResult) (*models.Paper, error) {
	if item.Title == "" {
		return nil, fmt.Errorf("scholar result %d missing title", index)
	}

	paper := models.NewPaper(fmt.Sprintf("scholar_%d_%d", time.Now().UnixNano(), index), item.Title, models.SourceGoogleScholarSerpAPI)
	paper.Abstract = item.Snippet
	paper.URL = item.Link
	paper.Journal = venueFromSummary(item.PublicationInfo.Summary)
	paper.CitationCount = citationCount(item)
	paper.Keywords = keywords.Extract(paper.Title+" "+paper.Abstract, 0)
	paper.Categories = keywords.Categorize(paper.Title, paper.Abstract, paper.Journal)
	paper.PaperType = classify.Classify(paper.Title, paper.Journal, paper.Abstract)

	paper.Normalize()
	return paper, nil
}

// venueFromSummary extracts the venue from a publication_info.summary
// string such as "J Smith, K Lee - Proceedings of ICML, 2021 - arxiv.org",
// which is the trailing segment after the last hyphen.
func venueFromSummary(summary string) string {
	idx := strings.LastIndex(summary, "-")
	if idx == -1 {
		return ""
	}
	return strings.TrimSpace(summary[idx+1:])
}

func citationCount(item organicResult) int {
	if item.InlineLinks.CitedBy.Total > 0 {
		return item.InlineLinks.CitedBy.Total
	}
	if match := citedByFallback.FindStringSubmatch(item.Snippet); match != nil {
		if n, err := strconv.Atoi(match[1]); err == nil {
			return n
		}
	}
	return 0
}
