// Package crossref adapts the Crossref works API to the Source contract (§4.1).
package crossref

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
	"litscout/internal/keywords"
	"litscout/internal/models"
	"litscout/internal/providers"
)

const defaultBaseURL = "https://api.crossref.org/works"

var conferenceKeywords = []string{"conference", "proceedings", "symposium", "workshop", "congress"}

// Provider queries Crossref. DOI is always present on results; paper type
// comes from classify.Classify and is overridden to "conference" when the
// venue name contains a conference keyword.
type Provider struct {
	baseURL       string
	enabled       bool
	researchEmail string
	httpClient    *http.Client
	logger        *slog.Logger
	retry         *providers.RetryPolicy
}

// NewProvider builds the Crossref adapter. researchEmail is sent in the
// User-Agent header per Crossref's polite-pool contract.
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
		retry:         providers.NewRetryPolicy(string(models.SourceCrossref), logger),
	}
}

func (p *Provider) Name() models.SourceTag { return models.SourceCrossref }
func (p *Provider) Enabled() bool          { return p.enabled }

type workItem struct {
	DOI       string `json:"DOI"`
	Title     []string `json:"title"`
	Abstract  string   `json:"abstract"`
	Author    []struct {
		Given  string `json:"given"`
		Family string `json:"family"`
	} `json:"author"`
	ContainerTitle        []string `json:"container-title"`
	IsReferencedByCount   int      `json:"is-referenced-by-count"`
	URL                   string   `json:"URL"`
	Published             struct {
		DateParts [][]int `json:"date-parts"`
	} `json:"published"`
}

type worksResponse struct {
	Message struct {
		Items []workItem `json:"items"`
	} `json:"message"`
}

// Search queries Crossref's /works endpoint and converts results to Papers.
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
		return nil, fmt.Errorf("crossref search failed: %w", err)
	}

	var resp worksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("crossref response parse failed: %w", err)
	}

	papers := make([]models.Paper, 0, len(resp.Message.Items))
	for _, item := range resp.Message.Items {
		paper, convErr := convertItem(item)
		if convErr != nil {
			p.logger.Warn("skipping unparseable crossref item", slog.String("error", convErr.Error()))
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
	params.Set("query.bibliographic", query)
	params.Set("rows", strconv.Itoa(maxResults))
	params.Set("sort", "relevance")
	params.Set("select", "DOI,title,abstract,author,container-title,is-referenced-by-count,URL,published")

	if filters != nil {
		var filterParts []string
		if ys := filters.YearStart(); ys != nil {
			filterParts = append(filterParts, fmt.Sprintf("from-pub-date:%04d", *ys))
		}
		if ye := filters.YearEnd(); ye != nil {
			filterParts = append(filterParts, fmt.Sprintf("until-pub-date:%04d", *ye))
		}
		if len(filterParts) > 0 {
			params.Set("filter", strings.Join(filterParts, ","))
		}
	}

	reqURL := p.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, err
	}
	if p.researchEmail != "" {
		req.Header.Set("User-Agent", fmt.Sprintf("litscout/1.0 (mailto:%s)", p.researchEmail))
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
		return nil, resp.StatusCode, fmt.Errorf("crossref returned status %d", resp.StatusCode)
	}

	return body, resp.StatusCode, nil
}

func convertItem(item workItem) (*models.Paper, error) {
	if item.DOI == "" {
		return nil, fmt.Errorf("crossref item missing DOI")
	}
	if len(item.Title) == 0 {
		return nil, fmt.Errorf("crossref item %s missing title", item.DOI)
	}

	authors := make([]string, 0, len(item.Author))
	for _, a := range item.Author {
		name := strings.TrimSpace(a.Given + " " + a.Family)
		if name != "" {
			authors = append(authors, name)
		}
	}

	journal := ""
	if len(item.ContainerTitle) > 0 {
		journal = item.ContainerTitle[0]
	}

	paper := models.NewPaper("crossref_"+strings.ReplaceAll(item.DOI, "/", "_"), item.Title[0], models.SourceCrossref)
	paper.Authors = authors
	paper.Abstract = stripJATS(item.Abstract)
	paper.Journal = journal
	paper.CitationCount = item.IsReferencedByCount
	paper.DOI = item.DOI
	paper.URL = item.URL
	paper.PublicationDate = publicationYear(item.Published.DateParts)
	paper.Keywords = keywords.Extract(paper.Title+" "+paper.Abstract, 0)
	paper.Categories = keywords.Categorize(paper.Title, paper.Abstract, journal)

	paper.PaperType = classify.Classify(paper.Title, journal, paper.Abstract)
	if isConferenceVenue(journal) {
		paper.PaperType = models.PaperTypeConference
	}

	paper.Normalize()
	return paper, nil
}

func publicationYear(dateParts [][]int) string {
	if len(dateParts) == 0 || len(dateParts[0]) == 0 {
		return models.UnknownPublicationDate
	}
	return strconv.Itoa(dateParts[0][0])
}

func isConferenceVenue(venue string) bool {
	lower := strings.ToLower(venue)
	for _, kw := range conferenceKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// stripJATS removes Crossref's JATS XML markup from abstracts, which
// arrive wrapped in <jats:p> tags.
func stripJATS(abstract string) string {
	replacer := strings.NewReplacer("<jats:p>", "", "</jats:p>", " ")
	return strings.TrimSpace(replacer.Replace(abstract))
}
