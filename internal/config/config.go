// Package config provides configuration loading for fabled.
package config

import (
	"fmt"
	"time"
)

// Provider transport kinds.
const (
	ProviderKindOllama = "ollama"
	ProviderKindExec   = "exec"
)

// Prompt delivery modes for exec providers.
const (
	PromptViaArg   = "arg"
	PromptViaStdin = "stdin"
)

// Output formats for exec providers.
const (
	OutputText = "text"
	OutputJSON = "json"
)

// Config is the root configuration for the fabled daemon.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Qdrant    QdrantConfig    `koanf:"qdrant"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	LLM       LLMConfig       `koanf:"llm"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	CORSOrigins     []string `koanf:"cors_origins"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// QdrantConfig holds vector index configuration.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string `koanf:"host"`

	// Port is the Qdrant gRPC port (NOT the HTTP REST port).
	Port int `koanf:"port"`

	// Collection is the fable collection name.
	Collection string `koanf:"collection"`

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool `koanf:"use_tls"`

	// RetryBackoff is the wait before the single retry on a
	// transient index failure.
	RetryBackoff Duration `koanf:"retry_backoff"`
}

// EmbeddingConfig holds embedding encoder configuration.
type EmbeddingConfig struct {
	// Model is the embedding model name, e.g. BAAI/bge-small-en-v1.5.
	Model string `koanf:"model"`

	// CacheDir is where model files are cached.
	CacheDir string `koanf:"cache_dir"`

	// MaxLength is the maximum input sequence length in tokens.
	MaxLength int `koanf:"max_length"`
}

// LLMConfig holds generation provider configuration.
type LLMConfig struct {
	// DefaultProvider is used when a request names no provider.
	DefaultProvider string `koanf:"default_provider"`

	// Providers maps provider names to their static configuration.
	Providers map[string]ProviderConfig `koanf:"providers"`

	// MaxConcurrentExec bounds how many exec-provider processes may
	// run at once. Each one costs an OS process.
	MaxConcurrentExec int `koanf:"max_concurrent_exec"`

	// ContextBudget is the context assembly size budget in bytes.
	ContextBudget int `koanf:"context_budget"`
}

// ProviderConfig is the static per-provider configuration. Read-only
// after startup.
type ProviderConfig struct {
	// Kind selects the transport: "ollama" or "exec".
	Kind string `koanf:"kind"`

	// Endpoint is the base URL of the persistent service (ollama kind).
	Endpoint string `koanf:"endpoint"`

	// Command is the executable path or name (exec kind).
	Command string `koanf:"command"`

	// Args are the command arguments. The placeholders {prompt} and
	// {model} are substituted per call; a {model} argument whose
	// expansion is empty is dropped together with its flag.
	Args []string `koanf:"args"`

	// PromptVia selects prompt delivery for exec providers: "arg"
	// (default, via the {prompt} placeholder or appended) or "stdin".
	PromptVia string `koanf:"prompt_via"`

	// Output selects output parsing for exec providers: "text"
	// (default) or "json" (object with a result/response/answer field).
	Output string `koanf:"output"`

	// DefaultModel is used when a request names no model.
	DefaultModel string `koanf:"default_model"`

	// Models is an optional allow-list. Empty means any model.
	Models []string `koanf:"models"`

	// Timeout is the per-call wall-clock deadline.
	Timeout Duration `koanf:"timeout"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is "json" or "console".
	Format string `koanf:"format"`
}

// Default returns the configuration defaults. Loading overlays file and
// environment values on top of these.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Qdrant: QdrantConfig{
			Host:         "localhost",
			Port:         6334,
			Collection:   "fables",
			RetryBackoff: Duration(time.Second),
		},
		Embedding: EmbeddingConfig{
			Model:     "sentence-transformers/all-MiniLM-L6-v2",
			CacheDir:  "local_cache",
			MaxLength: 512,
		},
		LLM: LLMConfig{
			DefaultProvider: "ollama",
			Providers: map[string]ProviderConfig{
				"ollama": {
					Kind:         ProviderKindOllama,
					Endpoint:     "http://localhost:11434",
					DefaultModel: "llama3.2:latest",
					Timeout:      Duration(60 * time.Second),
				},
			},
			MaxConcurrentExec: 2,
			ContextBudget:     6000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for startup-fatal errors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server: invalid port %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return fmt.Errorf("server: shutdown_timeout must be positive")
	}
	if c.Qdrant.Host == "" {
		return fmt.Errorf("qdrant: host required")
	}
	if c.Qdrant.Port <= 0 || c.Qdrant.Port > 65535 {
		return fmt.Errorf("qdrant: invalid port %d", c.Qdrant.Port)
	}
	if c.Qdrant.Collection == "" {
		return fmt.Errorf("qdrant: collection required")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding: model required")
	}
	if c.Embedding.MaxLength <= 0 {
		return fmt.Errorf("embedding: max_length must be positive")
	}
	if c.LLM.MaxConcurrentExec <= 0 {
		return fmt.Errorf("llm: max_concurrent_exec must be positive")
	}
	if c.LLM.ContextBudget <= 0 {
		return fmt.Errorf("llm: context_budget must be positive")
	}
	if len(c.LLM.Providers) == 0 {
		return fmt.Errorf("llm: at least one provider required")
	}
	if _, ok := c.LLM.Providers[c.LLM.DefaultProvider]; !ok {
		return fmt.Errorf("llm: default_provider %q is not configured", c.LLM.DefaultProvider)
	}
	for name, p := range c.LLM.Providers {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("llm: provider %q: %w", name, err)
		}
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging: unknown format %q", c.Logging.Format)
	}
	return nil
}

// Validate checks a single provider configuration.
func (p ProviderConfig) Validate() error {
	switch p.Kind {
	case ProviderKindOllama:
		if p.Endpoint == "" {
			return fmt.Errorf("endpoint required for kind %q", p.Kind)
		}
		if p.DefaultModel == "" {
			return fmt.Errorf("default_model required for kind %q", p.Kind)
		}
	case ProviderKindExec:
		if p.Command == "" {
			return fmt.Errorf("command required for kind %q", p.Kind)
		}
		switch p.PromptVia {
		case "", PromptViaArg, PromptViaStdin:
		default:
			return fmt.Errorf("unknown prompt_via %q", p.PromptVia)
		}
		switch p.Output {
		case "", OutputText, OutputJSON:
		default:
			return fmt.Errorf("unknown output %q", p.Output)
		}
	default:
		return fmt.Errorf("unknown kind %q", p.Kind)
	}
	if p.Timeout.Duration() <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}
