package http

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fabled/internal/rag"
)

// Request limits, matching the API contract: search returns at most 20
// results, generation uses at most 10 fables of context.
const (
	defaultSearchLimit   = 5
	maxSearchLimit       = 20
	defaultGenerateLimit = 3
	maxGenerateLimit     = 10
)

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Welcome to the fabled API",
		"health":  "/health",
	})
}

// handleHealth reports collection status. A missing collection is not
// an error here; the caller sees collection_exists=false and decides.
func (s *Server) handleHealth(c echo.Context) error {
	ctx := c.Request().Context()

	exists, err := s.fables.CollectionExists(ctx)
	if err != nil {
		return s.fail(c, err)
	}

	var count uint64
	if exists {
		count, err = s.fables.Count(ctx)
		if err != nil {
			return s.fail(c, err)
		}
	}

	return c.JSON(http.StatusOK, HealthResponse{
		Status:           "healthy",
		CollectionExists: exists,
		FableCount:       count,
	})
}

func (s *Server) handleModels(c echo.Context) error {
	providers := make([]string, 0, len(s.llmCfg.Providers))
	models := make(map[string][]string, len(s.llmCfg.Providers))
	for name, p := range s.llmCfg.Providers {
		providers = append(providers, name)
		if len(p.Models) > 0 {
			models[name] = p.Models
		} else if p.DefaultModel != "" {
			models[name] = []string{p.DefaultModel}
		}
	}
	sort.Strings(providers)

	return c.JSON(http.StatusOK, ModelsResponse{
		Providers:       providers,
		DefaultProvider: s.llmCfg.DefaultProvider,
		Models:          models,
	})
}

func (s *Server) handleGetFable(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, errorBody(codeInvalidRequest, "fable id must be a positive integer"))
	}

	fable, err := s.fables.GetFable(c.Request().Context(), id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, fable)
}

func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(codeInvalidRequest, "invalid request body"))
	}
	if req.Query == "" {
		return c.JSON(http.StatusBadRequest, errorBody(codeInvalidRequest, "query field is required"))
	}

	limit := uint64(defaultSearchLimit)
	if req.Limit != nil {
		limit = *req.Limit
		if limit == 0 || limit > maxSearchLimit {
			return c.JSON(http.StatusBadRequest, errorBody(codeInvalidRequest, "limit must be between 1 and 20"))
		}
	}
	if req.ScoreThreshold != nil && (*req.ScoreThreshold < 0 || *req.ScoreThreshold > 1) {
		return c.JSON(http.StatusBadRequest, errorBody(codeInvalidRequest, "score_threshold must be between 0 and 1"))
	}

	results, err := s.pipeline.Search(c.Request().Context(), req.Query, limit, req.ScoreThreshold)
	if err != nil {
		return s.fail(c, err)
	}

	out := make([]FableResult, 0, len(results))
	for _, r := range results {
		out = append(out, fableResult(r))
	}

	return c.JSON(http.StatusOK, SearchResponse{
		Query:        req.Query,
		Results:      out,
		TotalResults: len(out),
	})
}

func (s *Server) handleGenerate(c echo.Context) error {
	var req GenerateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(codeInvalidRequest, "invalid request body"))
	}
	if req.Query == "" {
		return c.JSON(http.StatusBadRequest, errorBody(codeInvalidRequest, "query field is required"))
	}

	limit := uint64(defaultGenerateLimit)
	if req.Limit != nil {
		limit = *req.Limit
		if limit == 0 || limit > maxGenerateLimit {
			return c.JSON(http.StatusBadRequest, errorBody(codeInvalidRequest, "limit must be between 1 and 10"))
		}
	}

	result, err := s.pipeline.Generate(c.Request().Context(), rag.GenerateRequest{
		Query:    req.Query,
		Limit:    limit,
		Provider: req.Provider,
		Model:    req.Model,
	})
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(http.StatusOK, GenerateResponse{
		Answer:       result.Answer,
		Sources:      result.Sources,
		ProviderUsed: result.ProviderUsed,
		ModelUsed:    result.ModelUsed,
	})
}

// fail maps a pipeline error onto its status and stable code, logging
// server-side failures.
func (s *Server) fail(c echo.Context, err error) error {
	status, code := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("uri", c.Request().RequestURI),
			zap.String("code", code),
			zap.Error(err))
	}
	return c.JSON(status, errorBody(code, err.Error()))
}
