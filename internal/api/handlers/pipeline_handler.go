// Package handlers holds the gin.HandlerFunc implementations the router
// wires up; each handler decodes the request, calls into the pipeline
// controller (C9), and translates the outcome to JSON.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	coreerrors "litscout/internal/errors"
	"litscout/internal/models"
	"litscout/internal/pipeline"
)

// PipelineHandler exposes the pipeline controller's five operations
// (§4.8) over HTTP.
type PipelineHandler struct {
	controller *pipeline.Controller
	logger     *slog.Logger
}

// NewPipelineHandler builds a PipelineHandler bound to controller.
func NewPipelineHandler(controller *pipeline.Controller, logger *slog.Logger) *PipelineHandler {
	return &PipelineHandler{controller: controller, logger: logger}
}

type startSessionRequest struct {
	Query               string   `json:"query" binding:"required"`
	YearStart           *int     `json:"year_start"`
	YearEnd             *int     `json:"year_end"`
	MinCitations        int      `json:"min_citations"`
	MaxCitations        *int     `json:"max_citations"`
	IncludePreprints    *bool    `json:"include_preprints"`
	KeywordRequirements []string `json:"keyword_requirements"`
	ExcludeKeywords     []string `json:"exclude_keywords"`
	JournalFilter       []string `json:"journal_filter"`
	AuthorFilter        []string `json:"author_filter"`
	PaperTypeFilter     *string  `json:"paper_type_filter"`
}

func (r *startSessionRequest) toFilters() (*models.SearchFilters, error) {
	var paperType *models.PaperType
	if r.PaperTypeFilter != nil {
		t := models.PaperType(*r.PaperTypeFilter)
		paperType = &t
	}
	return models.NewSearchFilters(models.SearchFiltersInput{
		YearStart:           r.YearStart,
		YearEnd:             r.YearEnd,
		MinCitations:        r.MinCitations,
		MaxCitations:        r.MaxCitations,
		IncludePreprints:    r.IncludePreprints,
		KeywordRequirements: r.KeywordRequirements,
		ExcludeKeywords:     r.ExcludeKeywords,
		JournalFilter:       r.JournalFilter,
		AuthorFilter:        r.AuthorFilter,
		PaperTypeFilter:     paperType,
	})
}

// StartSession handles POST /v1/sessions.
func (h *PipelineHandler) StartSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	filters, err := req.toFilters()
	if err != nil {
		h.respondError(c, err)
		return
	}

	sessionID, err := h.controller.StartSession(c.Request.Context(), req.Query, filters)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session_id": sessionID})
}

type searchRequest struct {
	Query      string `json:"query" binding:"required"`
	MaxResults int    `json:"max_results"`
}

// InitialSearch handles POST /v1/sessions/search.
func (h *PipelineHandler) InitialSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.controller.InitialSearch(c.Request.Context(), req.Query, models.DefaultSearchFilters(), req.MaxResults)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type secondarySearchRequest struct {
	SelectedIndices []int  `json:"selected_indices"`
	OriginalQuery   string `json:"original_query" binding:"required"`
	MaxResults      int    `json:"max_results"`
}

// SecondarySearch handles POST /v1/sessions/secondary-search.
func (h *PipelineHandler) SecondarySearch(c *gin.Context) {
	var req secondarySearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.controller.SecondarySearch(c.Request.Context(), req.SelectedIndices, req.OriginalQuery, models.DefaultSearchFilters(), req.MaxResults)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type savePapersRequest struct {
	Indices []int `json:"indices" binding:"required"`
}

// SavePapers handles POST /v1/sessions/save.
func (h *PipelineHandler) SavePapers(c *gin.Context) {
	var req savePapersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	saved, err := h.controller.SavePapers(c.Request.Context(), req.Indices)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved_count": saved})
}

type findSimilarRequest struct {
	SelectedPapers []models.Paper `json:"selected_papers" binding:"required"`
	K              int            `json:"k"`
}

// FindSimilar handles POST /v1/sessions/similar.
func (h *PipelineHandler) FindSimilar(c *gin.Context) {
	var req findSimilarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.controller.FindSimilar(c.Request.Context(), req.SelectedPapers, models.DefaultSearchFilters(), req.K)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *PipelineHandler) respondError(c *gin.Context, err error) {
	var coreErr *coreerrors.CoreError
	if errors.As(err, &coreErr) {
		h.logger.Warn("pipeline request failed", slog.String("code", coreErr.Code), slog.String("error", coreErr.Message))
		c.JSON(coreErr.HTTPStatus(), gin.H{"error": coreErr.Message, "code": coreErr.Code})
		return
	}
	h.logger.Error("pipeline request failed", slog.String("error", err.Error()))
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
