package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaProvider talks to an already-running Ollama daemon over HTTP.
// One client per model is constructed lazily and reused, so connections
// are pooled across calls. The timeout is a request-level deadline;
// there is no process to kill on expiry.
type OllamaProvider struct {
	name     string
	endpoint string
	timeout  time.Duration

	mu      sync.Mutex
	clients map[string]*ollama.LLM
}

// NewOllamaProvider creates a provider for the given endpoint. No
// connection is made until the first call.
func NewOllamaProvider(name, endpoint string, timeout time.Duration) *OllamaProvider {
	return &OllamaProvider{
		name:     name,
		endpoint: endpoint,
		timeout:  timeout,
		clients:  make(map[string]*ollama.LLM),
	}
}

// Generate sends the prompt to the daemon and returns the completion.
func (p *OllamaProvider) Generate(ctx context.Context, prompt, model string) (string, error) {
	client, err := p.client(model)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnavailable, p.name, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	completion, err := llms.GenerateFromSinglePrompt(ctx, client, prompt)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return "", fmt.Errorf("%w: %s after %s", ErrTimeout, p.name, p.timeout)
		case errors.Is(err, context.Canceled):
			return "", err
		default:
			return "", fmt.Errorf("%w: %s: %v", ErrUnavailable, p.name, err)
		}
	}

	completion = strings.TrimSpace(completion)
	if completion == "" {
		return "", fmt.Errorf("%w: %s produced an empty completion", ErrEmptyOutput, p.name)
	}
	return completion, nil
}

func (p *OllamaProvider) client(model string) (*ollama.LLM, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if client, ok := p.clients[model]; ok {
		return client, nil
	}
	client, err := ollama.New(
		ollama.WithServerURL(p.endpoint),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, err
	}
	p.clients[model] = client
	return client, nil
}
