// Package rag orchestrates retrieval-augmented generation: embed the
// query, search the fable index, assemble context, and dispatch a
// prompt to a generation provider.
package rag

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fabled/internal/llm"
	"github.com/fyrsmithlabs/fabled/internal/vectorstore"
)

var tracer = otel.Tracer("fabled.rag")

// Sentinel errors for request validation.
var (
	// ErrEmptyQuery indicates a blank query string.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrInvalidLimit indicates a non-positive limit.
	ErrInvalidLimit = errors.New("limit must be positive")
)

// Encoder turns query text into an embedding vector.
type Encoder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Index answers nearest-neighbor queries over the fable collection.
type Index interface {
	Search(ctx context.Context, vector []float32, limit uint64, threshold *float32) ([]vectorstore.SearchResult, error)
}

// Resolver maps a (provider, model) request onto a live provider.
type Resolver interface {
	Resolve(provider, model string) (llm.Provider, string, string, error)
}

// GenerateRequest is a request for a grounded answer.
type GenerateRequest struct {
	Query    string
	Limit    uint64
	Provider string
	Model    string
}

// GenerateResult is the outcome of a generation request.
type GenerateResult struct {
	Answer       string
	Sources      []int
	ProviderUsed string
	ModelUsed    string
}

// Service is the retrieval-generation pipeline. All collaborators are
// injected and shared read-only; the service keeps no per-request
// state and caches no search results.
type Service struct {
	encoder       Encoder
	index         Index
	resolver      Resolver
	logger        *zap.Logger
	contextBudget int
}

// NewService wires the pipeline. contextBudget caps assembled context
// size in bytes.
func NewService(encoder Encoder, index Index, resolver Resolver, contextBudget int, logger *zap.Logger) *Service {
	return &Service{
		encoder:       encoder,
		index:         index,
		resolver:      resolver,
		logger:        logger,
		contextBudget: contextBudget,
	}
}

// Search encodes the query and runs a similarity search. Pure read
// path. Results come back in descending score order, ties broken by
// ascending fable ID.
func (s *Service) Search(ctx context.Context, query string, limit uint64, threshold *float32) ([]vectorstore.SearchResult, error) {
	ctx, span := tracer.Start(ctx, "rag.Search")
	defer span.End()
	span.SetAttributes(attribute.Int64("limit", int64(limit)))

	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit == 0 {
		return nil, ErrInvalidLimit
	}

	vector, err := s.encoder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}

	results, err := s.index.Search(ctx, vector, limit, threshold)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("results", len(results)))
	return results, nil
}

// Generate answers the query using the top-ranked fables as context.
// Limit applies to retrieved context, not answer length. Provider
// failures surface as-is: a generation request with no answer is a
// distinct outcome from a degraded one, and conflating them would hide
// operational failures from the caller.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	ctx, span := tracer.Start(ctx, "rag.Generate")
	defer span.End()

	// Resolve before doing any retrieval work so an unknown provider
	// fails fast.
	provider, providerUsed, modelUsed, err := s.resolver.Resolve(req.Provider, req.Model)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("provider", providerUsed),
		attribute.String("model", modelUsed),
	)

	results, err := s.Search(ctx, req.Query, req.Limit, nil)
	if err != nil {
		return nil, err
	}

	contextBlock, sources := assembleContext(results, s.contextBudget)
	prompt := buildPrompt(contextBlock, req.Query)

	s.logger.Debug("dispatching generation",
		zap.String("provider", providerUsed),
		zap.String("model", modelUsed),
		zap.Int("context_fables", len(sources)),
		zap.Int("prompt_bytes", len(prompt)))

	answer, err := provider.Generate(ctx, prompt, modelUsed)
	if err != nil {
		return nil, err
	}

	return &GenerateResult{
		Answer:       answer,
		Sources:      sources,
		ProviderUsed: providerUsed,
		ModelUsed:    modelUsed,
	}, nil
}
