// Package llm provides generation providers behind a single contract.
//
// Two transport variants exist: a persistent Ollama daemon reached over
// HTTP, and short-lived external CLI processes spawned per call. Both
// satisfy Provider; the Registry resolves configured names to cached
// instances.
package llm

import (
	"context"
	"errors"
)

// Sentinel errors for the provider layer.
var (
	// ErrUnknownProvider is returned for a provider name that is not
	// configured. Never falls back to the default; misconfiguration
	// must be visible.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrUnknownModel is returned when a model is not in the
	// provider's configured allow-list.
	ErrUnknownModel = errors.New("unknown model")

	// ErrTimeout is returned when a provider call exceeds its
	// configured deadline.
	ErrTimeout = errors.New("provider timed out")

	// ErrUnavailable is returned when the provider cannot be reached
	// or its process fails without usable output.
	ErrUnavailable = errors.New("provider unavailable")

	// ErrEmptyOutput is returned when the provider produced output
	// that is empty after cleanup or could not be parsed.
	ErrEmptyOutput = errors.New("provider returned no usable output")
)

// Provider generates text from a prompt. model may be empty when the
// provider has no notion of per-call models; implementations apply
// their configured timeout and honor ctx cancellation.
type Provider interface {
	Generate(ctx context.Context, prompt, model string) (string, error)
}
