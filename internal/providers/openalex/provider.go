// Package openalex adapts the OpenAlex works API to the Source contract (§4.1).
package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"litscout/internal/classify"
	"litscout/internal/models"
	"litscout/internal/providers"
)

const (
	defaultBaseURL       = "https://api.openalex.org/works"
	conceptScoreThreshold = 0.3
	maxReconstructedChars = 1000
)

// Provider queries OpenAlex. Abstracts arrive as an inverted index and are
// reconstructed per §4.1.1; DOIs arrive with an "https://doi.org/" prefix
// that is stripped; concepts scoring at least 0.3 become categories.
type Provider struct {
	baseURL       string
	enabled       bool
	researchEmail string
	httpClient    *http.Client
	logger        *slog.Logger
	retry         *providers.RetryPolicy
}

// NewProvider builds the OpenAlex adapter. researchEmail is sent as the
// mailto parameter to join OpenAlex's polite pool.
func NewProvider(baseURL string, timeout time.Duration, enabled bool, researchEmail string, logger *slog.Logger) *Provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{
		baseURL:       baseURL,
		enabled:       enabled,
		researchEmail: researchEmail,
		httpClient:    &http.Client{Timeout: timeout},
		logger:        logger,
		retry:         providers.NewRetryPolicy(string(models.SourceOpenAlex), logger),
	}
}

func (p *Provider) Name() models.SourceTag { return models.SourceOpenAlex }
func (p *Provider) Enabled() bool          { return p.enabled }

type workItem struct {
	ID                     string `json:"id"`
	DOI                    string `json:"doi"`
	Title                  string `json:"title"`
	AbstractInvertedIndex  map[string][]int `json:"abstract_inverted_index"`
	Authorships            []struct {
		Author struct {
			DisplayName string `json:"display_name"`
		} `json:"author"`
	} `json:"authorships"`
	PrimaryLocation struct {
		Source struct {
			DisplayName string `json:"display_name"`
		} `json:"source"`
	} `json:"primary_location"`
	CitedByCount      int `json:"cited_by_count"`
	PublicationYear   int `json:"publication_year"`
	Concepts          []struct {
		DisplayName string  `json:"display_name"`
		Score       float64 `json:"score"`
	} `json:"concepts"`
}

type worksResponse struct {
	Results []workItem `json:"results"`
}

// Search queries OpenAlex's /works endpoint and converts results to Papers.
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
		return nil, fmt.Errorf("openalex search failed: %w", err)
	}

	var resp worksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("openalex response parse failed: %w", err)
	}

	papers := make([]models.Paper, 0, len(resp.Results))
	for _, item := range resp.Results {
		paper, convErr := convertItem(item)
		if convErr != nil {
			p.logger.Warn("skipping unparseable openalex item", slog.String("error", convErr.Error()))
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
	params.Set("search", query)
	params.Set("per_page", strconv.Itoa(maxResults))
	params.Set("sort", "cited_by_count:desc")
	if p.researchEmail != "" {
		params.Set("mailto", p.researchEmail)
	}

	if filters != nil {
		ys, ye := filters.YearStart(), filters.YearEnd()
		if ys != nil || ye != nil {
			start, end := "1900", "2030"
			if ys != nil {
				start = strconv.Itoa(*ys)
			}
			if ye != nil {
				end = strconv.Itoa(*ye)
			}
			params.Set("filter", fmt.Sprintf("publication_year:%s-%s", start, end))
		}
	}

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
		return nil, resp.StatusCode, fmt.Errorf("openalex returned status %d", resp.StatusCode)
	}

	return body, resp.StatusCode, nil
}

func convertItem(item workItem) (*models.Paper, error) {
	if item.Title == "" {
		return nil, fmt.Errorf("openalex item %s missing title", item.ID)
	}

	authors := make([]string, 0, len(item.Authorships))
	for _, a := range item.Authorships {
		if a.Author.DisplayName != "" {
			authors = append(authors, a.Author.DisplayName)
		}
	}

	var categories []string
	for _, c := range item.Concepts {
		if c.Score >= conceptScoreThreshold {
			categories = append(categories, c.DisplayName)
		}
	}

	paper := models.NewPaper("openalex_"+lastPathSegment(item.ID), item.Title, models.SourceOpenAlex)
	paper.Authors = authors
	paper.Abstract = reconstructAbstract(item.AbstractInvertedIndex)
	paper.Journal = item.PrimaryLocation.Source.DisplayName
	paper.CitationCount = item.CitedByCount
	paper.DOI = strings.TrimPrefix(item.DOI, "https://doi.org/")
	if len(categories) > 0 {
		paper.Categories = categories
	}
	if item.PublicationYear > 0 {
		paper.PublicationDate = strconv.Itoa(item.PublicationYear)
	}
	paper.PaperType = classify.Classify(paper.Title, paper.Journal, paper.Abstract)

	paper.Normalize()
	return paper, nil
}

func lastPathSegment(id string) string {
	parts := strings.Split(id, "/")
	return parts[len(parts)-1]
}

// reconstructAbstract rebuilds plain text from OpenAlex's inverted index
// representation per §4.1.1: place each word at every listed position,
// join with spaces, truncate to 1000 characters with an ellipsis. Any
// error (malformed index) yields an empty string rather than a panic.
func reconstructAbstract(index map[string][]int) string {
	if len(index) == 0 {
		return ""
	}

	maxPos := 0
	for _, positions := range index {
		for _, pos := range positions {
			if pos > maxPos {
				maxPos = pos
			}
		}
	}

	words := make([]string, maxPos+1)
	for word, positions := range index {
		for _, pos := range positions {
			if pos < 0 || pos >= len(words) {
				return ""
			}
			words[pos] = word
		}
	}

	abstract := strings.TrimSpace(strings.Join(words, " "))
	if len(abstract) > maxReconstructedChars {
		abstract = abstract[:maxReconstructedChars] + "..."
	}
	return abstract
}
