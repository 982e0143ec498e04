package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix         = "FABLED_"
	maxConfigFileSize = 1024 * 1024 // 1MB
)

// configSections are the known top-level sections, used to map
// environment variables onto nested keys.
var configSections = []string{"server", "qdrant", "embedding", "llm", "logging"}

// Load loads configuration from an optional YAML file, then overrides
// with environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (FABLED_SERVER_PORT, FABLED_QDRANT_HOST, ...)
//  2. YAML config file (if configPath is non-empty and the file exists)
//  3. Defaults from Default()
//
// Environment variables map to config keys by stripping the FABLED_
// prefix, lowercasing, and splitting the section off the first
// underscore:
//
//	FABLED_SERVER_PORT             -> server.port
//	FABLED_QDRANT_COLLECTION       -> qdrant.collection
//	FABLED_LLM_DEFAULT_PROVIDER    -> llm.default_provider
//	FABLED_SERVER_CORS_ORIGINS     -> server.cors_origins (comma-separated)
//
// Provider definitions are nested maps and can only be set via the YAML
// file.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			f, err := os.Open(configPath)
			if err != nil {
				return nil, fmt.Errorf("opening config file: %w", err)
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return nil, fmt.Errorf("stat config file: %w", err)
			}
			if info.Size() > maxConfigFileSize {
				return nil, fmt.Errorf("config file %s exceeds %d bytes", configPath, maxConfigFileSize)
			}

			content, err := io.ReadAll(f)
			if err != nil {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.ProviderWithValue(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envTransform maps an environment variable to a config key and value.
// List-valued keys are split on commas.
func envTransform(key, value string) (string, interface{}) {
	lower := strings.ToLower(strings.TrimPrefix(key, envPrefix))

	mapped := lower
	for _, section := range configSections {
		if strings.HasPrefix(lower, section+"_") {
			mapped = section + "." + strings.TrimPrefix(lower, section+"_")
			break
		}
	}

	if strings.HasSuffix(mapped, "cors_origins") || strings.HasSuffix(mapped, ".models") {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return mapped, out
	}

	return mapped, value
}
