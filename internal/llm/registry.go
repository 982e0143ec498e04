package llm

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/fyrsmithlabs/fabled/internal/config"
)

// Registry resolves (provider, model) pairs to live Provider
// instances. Configuration is read once at construction and the set of
// provider names is closed from then on; unknown kinds are rejected
// eagerly instead of failing deep in a call chain.
type Registry struct {
	cfg    config.LLMConfig
	logger *zap.Logger
	sem    *semaphore.Weighted

	mu        sync.Mutex
	providers map[string]Provider
}

// NewRegistry builds a registry from the provider table. Instances are
// constructed lazily on first resolve and cached per name.
func NewRegistry(cfg config.LLMConfig, logger *zap.Logger) (*Registry, error) {
	if _, ok := cfg.Providers[cfg.DefaultProvider]; !ok {
		return nil, fmt.Errorf("%w: default provider %q is not configured", ErrUnknownProvider, cfg.DefaultProvider)
	}
	for name, p := range cfg.Providers {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}
	}

	return &Registry{
		cfg:       cfg,
		logger:    logger,
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrentExec)),
		providers: make(map[string]Provider),
	}, nil
}

// Resolve returns the provider and the effective provider/model names.
// An empty provider selects the configured default; an empty model
// selects the provider's default model. An unknown provider is an
// error, never a silent fallback.
func (r *Registry) Resolve(provider, model string) (Provider, string, string, error) {
	if provider == "" {
		provider = r.cfg.DefaultProvider
	}
	spec, ok := r.cfg.Providers[provider]
	if !ok {
		return nil, "", "", fmt.Errorf("%w: %q (available: %v)", ErrUnknownProvider, provider, r.Names())
	}

	if model == "" {
		model = spec.DefaultModel
	}
	if len(spec.Models) > 0 && !contains(spec.Models, model) {
		return nil, "", "", fmt.Errorf("%w: %q not available for provider %q (available: %v)",
			ErrUnknownModel, model, provider, spec.Models)
	}

	p, err := r.instance(provider, spec)
	if err != nil {
		return nil, "", "", err
	}
	return p, provider, model, nil
}

// Names returns the configured provider names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.cfg.Providers))
	for name := range r.cfg.Providers {
		names = append(names, name)
	}
	return names
}

func (r *Registry) instance(name string, spec config.ProviderConfig) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.providers[name]; ok {
		return p, nil
	}

	var p Provider
	switch spec.Kind {
	case config.ProviderKindOllama:
		p = NewOllamaProvider(name, spec.Endpoint, spec.Timeout.Duration())
	case config.ProviderKindExec:
		p = NewExecProvider(name, spec, r.sem)
	default:
		// Unreachable after construction-time validation.
		return nil, fmt.Errorf("provider %q: unknown kind %q", name, spec.Kind)
	}

	p = instrument(name, p)
	r.providers[name] = p
	r.logger.Debug("constructed generation provider",
		zap.String("provider", name),
		zap.String("kind", spec.Kind))
	return p, nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
