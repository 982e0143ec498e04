package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fabled/internal/config"
)

func testLLMConfig() config.LLMConfig {
	return config.LLMConfig{
		DefaultProvider: "ollama",
		Providers: map[string]config.ProviderConfig{
			"ollama": {
				Kind:         config.ProviderKindOllama,
				Endpoint:     "http://localhost:11434",
				DefaultModel: "llama3.2:latest",
				Timeout:      config.Duration(time.Minute),
			},
			"claude": {
				Kind:         config.ProviderKindExec,
				Command:      "claude",
				Args:         []string{"-p", "{prompt}"},
				DefaultModel: "sonnet",
				Models:       []string{"sonnet", "opus"},
				Timeout:      config.Duration(time.Minute),
			},
		},
		MaxConcurrentExec: 2,
		ContextBudget:     6000,
	}
}

func TestNewRegistry(t *testing.T) {
	r, err := NewRegistry(testLLMConfig(), zap.NewNop())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ollama", "claude"}, r.Names())
}

func TestNewRegistry_BadDefault(t *testing.T) {
	cfg := testLLMConfig()
	cfg.DefaultProvider = "missing"

	_, err := NewRegistry(cfg, zap.NewNop())
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestNewRegistry_InvalidProvider(t *testing.T) {
	cfg := testLLMConfig()
	cfg.Providers["broken"] = config.ProviderConfig{Kind: "smoke-signal"}

	_, err := NewRegistry(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestRegistry_Resolve(t *testing.T) {
	r, err := NewRegistry(testLLMConfig(), zap.NewNop())
	require.NoError(t, err)

	tests := []struct {
		name         string
		provider     string
		model        string
		wantProvider string
		wantModel    string
		wantErr      error
	}{
		{
			name:         "empty falls back to defaults",
			wantProvider: "ollama",
			wantModel:    "llama3.2:latest",
		},
		{
			name:         "explicit provider with default model",
			provider:     "claude",
			wantProvider: "claude",
			wantModel:    "sonnet",
		},
		{
			name:         "explicit provider and model",
			provider:     "claude",
			model:        "opus",
			wantProvider: "claude",
			wantModel:    "opus",
		},
		{
			name:     "unknown provider is an error not a fallback",
			provider: "gpt-qx",
			wantErr:  ErrUnknownProvider,
		},
		{
			name:     "model outside allow-list",
			provider: "claude",
			model:    "haiku-9000",
			wantErr:  ErrUnknownModel,
		},
		{
			name:         "provider without allow-list accepts any model",
			provider:     "ollama",
			model:        "mistral:7b",
			wantProvider: "ollama",
			wantModel:    "mistral:7b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, provider, model, err := r.Resolve(tt.provider, tt.model)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, p)
			assert.Equal(t, tt.wantProvider, provider)
			assert.Equal(t, tt.wantModel, model)
		})
	}
}

func TestRegistry_ResolveCachesInstances(t *testing.T) {
	r, err := NewRegistry(testLLMConfig(), zap.NewNop())
	require.NoError(t, err)

	p1, _, _, err := r.Resolve("claude", "")
	require.NoError(t, err)
	p2, _, _, err := r.Resolve("claude", "opus")
	require.NoError(t, err)

	assert.Same(t, p1, p2)
}
