// Package providers implements the federated source adapters (the four
// external literature databases a search session fans out to) and the
// fan-out manager that runs them concurrently.
package providers

import (
	"context"

	"litscout/internal/models"
)

// Source is implemented by every federated adapter: Google Scholar (via
// SerpAPI), Crossref, OpenAlex, and arXiv. Search never raises for a
// network or provider-side failure — it logs and returns whatever papers
// it managed to collect alongside the error, so one failing source never
// blocks the others (§4.1: "a source that errors contributes zero papers
// and a logged warning, never a hard failure of the overall search").
type Source interface {
	Name() models.SourceTag
	Enabled() bool
	Search(ctx context.Context, query string, filters *models.SearchFilters, maxResults int) ([]models.Paper, error)
}
