package http

import "github.com/fyrsmithlabs/fabled/internal/vectorstore"

// SearchRequest is the body for POST /search.
type SearchRequest struct {
	Query          string   `json:"query"`
	Limit          *uint64  `json:"limit"`
	ScoreThreshold *float32 `json:"score_threshold"`
}

// GenerateRequest is the body for POST /generate.
type GenerateRequest struct {
	Query    string  `json:"query"`
	Limit    *uint64 `json:"limit"`
	Provider string  `json:"provider"`
	Model    string  `json:"model"`
}

// FableResult is a single scored fable in a search response.
type FableResult struct {
	ID        int     `json:"id"`
	Title     string  `json:"title"`
	Content   string  `json:"content"`
	Moral     string  `json:"moral"`
	Score     float32 `json:"score"`
	Language  string  `json:"language"`
	WordCount int     `json:"word_count"`
}

// SearchResponse is the body for POST /search responses.
type SearchResponse struct {
	Query        string        `json:"query"`
	Results      []FableResult `json:"results"`
	TotalResults int           `json:"total_results"`
}

// GenerateResponse is the body for POST /generate responses.
type GenerateResponse struct {
	Answer       string `json:"answer"`
	Sources      []int  `json:"sources"`
	ProviderUsed string `json:"provider_used"`
	ModelUsed    string `json:"model_used"`
}

// HealthResponse is the body for GET /health.
type HealthResponse struct {
	Status           string `json:"status"`
	CollectionExists bool   `json:"collection_exists"`
	FableCount       uint64 `json:"fable_count"`
}

// ModelsResponse is the body for GET /models.
type ModelsResponse struct {
	Providers       []string            `json:"providers"`
	DefaultProvider string              `json:"default_provider"`
	Models          map[string][]string `json:"models"`
}

// ErrorBody is the uniform error envelope. Code is a stable machine-
// readable error code; Message is human-readable detail.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the code and message of an ErrorBody.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func fableResult(r vectorstore.SearchResult) FableResult {
	return FableResult{
		ID:        r.Fable.ID,
		Title:     r.Fable.Title,
		Content:   r.Fable.Content,
		Moral:     r.Fable.Moral,
		Score:     r.Score,
		Language:  r.Fable.Language,
		WordCount: r.Fable.WordCount,
	}
}
