// Package embeddings provides the fable embedding encoder backed by
// local ONNX models via fastembed.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	fastembed "github.com/anush008/fastembed-go"
)

var (
	// ErrInvalidConfig indicates invalid encoder configuration.
	ErrInvalidConfig = errors.New("invalid encoder configuration")

	// ErrEmptyInput indicates empty input text.
	ErrEmptyInput = errors.New("input text is empty")

	// ErrTextTooLong indicates input beyond the model's sequence budget.
	// Callers must truncate or reject before encoding.
	ErrTextTooLong = errors.New("input text too long")

	// ErrEncodingFailed indicates model inference failure.
	ErrEncodingFailed = errors.New("encoding failed")
)

// charsPerToken is a conservative bound used to reject inputs that
// cannot fit the model's maximum sequence length.
const charsPerToken = 8

// Config holds configuration for the encoder.
type Config struct {
	// Model is the embedding model to use.
	// Supported: sentence-transformers/all-MiniLM-L6-v2 (default),
	// BAAI/bge-small-en-v1.5, BAAI/bge-base-en-v1.5, etc.
	Model string

	// CacheDir is the directory to cache model files.
	CacheDir string

	// MaxLength is the maximum input sequence length. Defaults to 512.
	MaxLength int
}

// modelMapping maps friendly model names to fastembed model constants.
var modelMapping = map[string]fastembed.EmbeddingModel{
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
	"BAAI/bge-small-zh-v1.5":                 fastembed.BGESmallZH,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
	// Also accept the fastembed model names directly
	"fast-bge-small-en-v1.5": fastembed.BGESmallENV15,
	"fast-bge-small-en":      fastembed.BGESmallEN,
	"fast-bge-base-en-v1.5":  fastembed.BGEBaseENV15,
	"fast-bge-base-en":       fastembed.BGEBaseEN,
	"fast-bge-small-zh-v1.5": fastembed.BGESmallZH,
	"fast-all-MiniLM-L6-v2":  fastembed.AllMiniLML6V2,
}

// modelDimensions maps fastembed models to their embedding dimensions.
var modelDimensions = map[fastembed.EmbeddingModel]int{
	fastembed.BGESmallENV15: 384,
	fastembed.BGESmallEN:    384,
	fastembed.BGEBaseENV15:  768,
	fastembed.BGEBaseEN:     768,
	fastembed.BGESmallZH:    512,
	fastembed.AllMiniLML6V2: 384,
}

// Encoder turns text into fixed-dimension vectors. The model is loaded
// exactly once at construction; the loaded model is safe for concurrent
// read-only inference, guarded by an RWMutex so Close can wait for
// in-flight calls. Given the same loaded model, encoding the same text
// always yields the same vector.
type Encoder struct {
	model     *fastembed.FlagEmbedding
	modelName string
	dimension int
	maxChars  int
	mu        sync.RWMutex
}

// New loads the configured model and returns a ready encoder. Model
// load is the expensive operation; construct once per process.
func New(cfg Config) (*Encoder, error) {
	model, ok := modelMapping[cfg.Model]
	if !ok {
		model = fastembed.EmbeddingModel(cfg.Model)
		if _, known := modelDimensions[model]; !known {
			return nil, fmt.Errorf("%w: unsupported model %q", ErrInvalidConfig, cfg.Model)
		}
	}
	dimension := modelDimensions[model]

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = "local_cache"
	}
	maxLength := cfg.MaxLength
	if maxLength == 0 {
		maxLength = 512
	}

	showProgress := false
	flagEmbed, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		MaxLength:            maxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing embedding model %q: %w", cfg.Model, err)
	}

	return &Encoder{
		model:     flagEmbed,
		modelName: cfg.Model,
		dimension: dimension,
		maxChars:  maxLength * charsPerToken,
	}, nil
}

// EmbedQuery encodes a single query text.
func (e *Encoder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := e.checkInput(text); err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	embedding, err := e.model.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodingFailed, err)
	}
	return embedding, nil
}

// EmbedDocuments encodes a batch of document texts.
func (e *Encoder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no texts", ErrEmptyInput)
	}
	for _, t := range texts {
		if err := e.checkInput(t); err != nil {
			return nil, err
		}
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	embeddings, err := e.model.Embed(texts, 256)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodingFailed, err)
	}
	return embeddings, nil
}

// Dimension returns the embedding dimension of the loaded model.
func (e *Encoder) Dimension() int {
	return e.dimension
}

// Model returns the configured model name.
func (e *Encoder) Model() string {
	return e.modelName
}

// Close releases the loaded model, waiting for in-flight inference.
func (e *Encoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model != nil {
		return e.model.Destroy()
	}
	return nil
}

func (e *Encoder) checkInput(text string) error {
	if text == "" {
		return ErrEmptyInput
	}
	if utf8.RuneCountInString(text) > e.maxChars {
		return fmt.Errorf("%w: %d chars exceeds budget of %d", ErrTextTooLong, utf8.RuneCountInString(text), e.maxChars)
	}
	return nil
}
