package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fabled/internal/llm"
	"github.com/fyrsmithlabs/fabled/internal/vectorstore"
)

type fakeEncoder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEncoder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return f.vector, f.err
}

type fakeIndex struct {
	results []vectorstore.SearchResult
	err     error

	gotLimit     uint64
	gotThreshold *float32
}

func (f *fakeIndex) Search(ctx context.Context, vector []float32, limit uint64, threshold *float32) ([]vectorstore.SearchResult, error) {
	f.gotLimit = limit
	f.gotThreshold = threshold
	return f.results, f.err
}

type fakeProvider struct {
	answer    string
	err       error
	gotPrompt string
	gotModel  string
}

func (f *fakeProvider) Generate(ctx context.Context, prompt, model string) (string, error) {
	f.gotPrompt = prompt
	f.gotModel = model
	return f.answer, f.err
}

type fakeResolver struct {
	provider llm.Provider
	name     string
	model    string
	err      error

	gotProvider string
	gotModel    string
}

func (f *fakeResolver) Resolve(provider, model string) (llm.Provider, string, string, error) {
	f.gotProvider = provider
	f.gotModel = model
	if f.err != nil {
		return nil, "", "", f.err
	}
	return f.provider, f.name, f.model, nil
}

func fableResult(id int, score float32) vectorstore.SearchResult {
	return vectorstore.SearchResult{
		Fable: vectorstore.Fable{
			ID:      id,
			Title:   "Fable Title",
			Content: "Fable content.",
			Moral:   "Fable moral.",
		},
		Score: score,
	}
}

func TestService_Search(t *testing.T) {
	enc := &fakeEncoder{vector: []float32{0.1, 0.2}}
	idx := &fakeIndex{results: []vectorstore.SearchResult{fableResult(1, 0.9), fableResult(2, 0.8)}}
	svc := NewService(enc, idx, &fakeResolver{}, 6000, zap.NewNop())

	threshold := float32(0.5)
	results, err := svc.Search(context.Background(), "foxes", 5, &threshold)
	require.NoError(t, err)

	assert.Len(t, results, 2)
	assert.Equal(t, uint64(5), idx.gotLimit)
	require.NotNil(t, idx.gotThreshold)
	assert.Equal(t, float32(0.5), *idx.gotThreshold)
}

func TestService_Search_Validation(t *testing.T) {
	svc := NewService(&fakeEncoder{}, &fakeIndex{}, &fakeResolver{}, 6000, zap.NewNop())

	_, err := svc.Search(context.Background(), "", 5, nil)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = svc.Search(context.Background(), "foxes", 0, nil)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestService_Search_EncoderError(t *testing.T) {
	enc := &fakeEncoder{err: errors.New("model load failed")}
	svc := NewService(enc, &fakeIndex{}, &fakeResolver{}, 6000, zap.NewNop())

	_, err := svc.Search(context.Background(), "foxes", 5, nil)
	assert.ErrorContains(t, err, "model load failed")
}

func TestService_Generate(t *testing.T) {
	provider := &fakeProvider{answer: "The fox gave up because the grapes were out of reach."}
	resolver := &fakeResolver{provider: provider, name: "ollama", model: "llama3.2:latest"}
	idx := &fakeIndex{results: []vectorstore.SearchResult{fableResult(31, 0.9), fableResult(7, 0.8)}}
	svc := NewService(&fakeEncoder{vector: []float32{0.1}}, idx, resolver, 6000, zap.NewNop())

	res, err := svc.Generate(context.Background(), GenerateRequest{Query: "why did the fox give up?", Limit: 3})
	require.NoError(t, err)

	assert.Equal(t, "The fox gave up because the grapes were out of reach.", res.Answer)
	assert.Equal(t, []int{31, 7}, res.Sources)
	assert.Equal(t, "ollama", res.ProviderUsed)
	assert.Equal(t, "llama3.2:latest", res.ModelUsed)
	assert.Equal(t, "llama3.2:latest", provider.gotModel)

	// Generation retrieval never applies a score threshold.
	assert.Nil(t, idx.gotThreshold)

	assert.Contains(t, provider.gotPrompt, "Based on the following fables")
	assert.Contains(t, provider.gotPrompt, "User's question: why did the fox give up?")
	assert.Contains(t, provider.gotPrompt, "Fable 1: Fable Title")
	assert.Contains(t, provider.gotPrompt, "Fable 2: Fable Title")
}

func TestService_Generate_UnknownProviderFailsFast(t *testing.T) {
	enc := &fakeEncoder{}
	resolver := &fakeResolver{err: llm.ErrUnknownProvider}
	svc := NewService(enc, &fakeIndex{}, resolver, 6000, zap.NewNop())

	_, err := svc.Generate(context.Background(), GenerateRequest{Query: "q", Limit: 3, Provider: "nope"})
	assert.ErrorIs(t, err, llm.ErrUnknownProvider)

	// Resolution failed before any embedding work.
	assert.Zero(t, enc.calls)
}

func TestService_Generate_ProviderErrorSurfaces(t *testing.T) {
	provider := &fakeProvider{err: llm.ErrTimeout}
	resolver := &fakeResolver{provider: provider, name: "claude", model: "sonnet"}
	idx := &fakeIndex{results: []vectorstore.SearchResult{fableResult(1, 0.9)}}
	svc := NewService(&fakeEncoder{}, idx, resolver, 6000, zap.NewNop())

	_, err := svc.Generate(context.Background(), GenerateRequest{Query: "q", Limit: 3})
	assert.ErrorIs(t, err, llm.ErrTimeout)
}

func TestService_Generate_EmptyCorpus(t *testing.T) {
	provider := &fakeProvider{answer: "I have no fables to draw on."}
	resolver := &fakeResolver{provider: provider, name: "ollama", model: "llama3.2:latest"}
	svc := NewService(&fakeEncoder{}, &fakeIndex{}, resolver, 6000, zap.NewNop())

	res, err := svc.Generate(context.Background(), GenerateRequest{Query: "anything?", Limit: 3})
	require.NoError(t, err)
	assert.Empty(t, res.Sources)
	assert.NotEmpty(t, res.Answer)
}

func TestService_Generate_ContextBudget(t *testing.T) {
	long := strings.Repeat("word ", 500) // ~2500 bytes per fable
	results := []vectorstore.SearchResult{
		{Fable: vectorstore.Fable{ID: 1, Title: "A", Content: long, Moral: "m"}, Score: 0.9},
		{Fable: vectorstore.Fable{ID: 2, Title: "B", Content: long, Moral: "m"}, Score: 0.8},
		{Fable: vectorstore.Fable{ID: 3, Title: "C", Content: long, Moral: "m"}, Score: 0.7},
	}
	provider := &fakeProvider{answer: "ok"}
	resolver := &fakeResolver{provider: provider, name: "ollama", model: "llama3.2:latest"}
	idx := &fakeIndex{results: results}
	svc := NewService(&fakeEncoder{}, idx, resolver, 6000, zap.NewNop())

	res, err := svc.Generate(context.Background(), GenerateRequest{Query: "q", Limit: 3})
	require.NoError(t, err)

	// Three ~2.5KB fables exceed the 6KB budget; the lowest-ranked one
	// is dropped and never reported as a source.
	assert.Equal(t, []int{1, 2}, res.Sources)
	assert.NotContains(t, provider.gotPrompt, "Fable 3:")
}
