package llm

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

var (
	// ErrNoProviderConfigured means no provider has a credential.
	ErrNoProviderConfigured = errors.New("no LLM provider configured")
	// ErrNoProviderAvailable means the requested provider has no credential.
	ErrNoProviderAvailable = errors.New("requested LLM provider not available")
)

// CredentialSource yields the credential for a provider kind, if any.
type CredentialSource interface {
	Credential(kind Kind) (Credential, bool)
}

// StaticCredentials is a CredentialSource backed by values read at startup.
type StaticCredentials map[Kind]Credential

func (s StaticCredentials) Credential(kind Kind) (Credential, bool) {
	c, ok := s[kind]
	if !ok || strings.TrimSpace(c.APIKey) == "" {
		return Credential{}, false
	}
	return c, true
}

// AdapterFactory builds the adapter for one provider.
type AdapterFactory func(cred Credential, model string, timeout time.Duration) Adapter

var builtinFactories = map[Kind]AdapterFactory{
	KindOpenAI: func(c Credential, m string, t time.Duration) Adapter {
		return NewOpenAIAdapter(c, m, t)
	},
	KindAnthropic: func(c Credential, m string, t time.Duration) Adapter {
		return NewAnthropicAdapter(c, m, t)
	},
	KindGemini: func(c Credential, m string, t time.Duration) Adapter {
		return NewGeminiAdapter(c, m, t)
	},
	KindOpenRouter: func(c Credential, m string, t time.Duration) Adapter {
		return NewOpenRouterAdapter(c, m, t)
	},
}

var defaultModels = map[Kind]string{
	KindOpenAI:     defaultOpenAIModel,
	KindAnthropic:  defaultAnthropicModel,
	KindGemini:     defaultGeminiModel,
	KindOpenRouter: defaultOpenRouterModel,
}

type RegistryOptions struct {
	// Models overrides the default model per provider.
	Models map[Kind]string
	// Timeout bounds each adapter call. Zero means 60s.
	Timeout time.Duration
	// Preferred is tried first when a caller does not name a provider.
	Preferred Kind
	// Factories replaces the built-in adapter constructors, mainly for tests.
	Factories map[Kind]AdapterFactory
}

// Registry holds the adapters whose credentials were present at startup.
// Availability is fixed for the life of the process.
type Registry struct {
	adapters    map[Kind]Adapter
	descriptors []Descriptor
	preferred   Kind
}

func NewRegistry(src CredentialSource, opts RegistryOptions) *Registry {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := &Registry{
		adapters:  make(map[Kind]Adapter),
		preferred: opts.Preferred,
	}

	for _, kind := range DefaultOrder {
		model := opts.Models[kind]
		if model == "" {
			model = defaultModels[kind]
		}

		desc := Descriptor{
			Kind:         kind,
			DisplayName:  kind.DisplayName(),
			DefaultModel: model,
		}

		if cred, ok := src.Credential(kind); ok {
			factory := opts.Factories[kind]
			if factory == nil {
				factory = builtinFactories[kind]
			}
			r.adapters[kind] = factory(cred, model, timeout)
			desc.Available = true
		}
		r.descriptors = append(r.descriptors, desc)
	}

	if r.preferred != "" && r.adapters[r.preferred] == nil {
		slog.Warn("preferred LLM provider has no credential", "provider", r.preferred)
	}
	return r
}

// Descriptors returns every known provider in default priority order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// AvailableProviders returns the usable providers, with selected first when it
// is usable, falling back to the registry's preferred kind, then default order.
func (r *Registry) AvailableProviders(selected Kind) []Descriptor {
	if selected == "" {
		selected = r.preferred
	}

	var out []Descriptor
	for _, d := range r.descriptors {
		if d.Available && d.Kind == selected {
			out = append(out, d)
		}
	}
	for _, d := range r.descriptors {
		if d.Available && d.Kind != selected {
			out = append(out, d)
		}
	}
	return out
}

// Resolve returns the adapter for kind. An empty kind picks the first
// available provider in preference order.
func (r *Registry) Resolve(kind Kind) (Adapter, Descriptor, error) {
	available := r.AvailableProviders("")
	if len(available) == 0 {
		return nil, Descriptor{}, ErrNoProviderConfigured
	}
	if kind == "" {
		d := available[0]
		return r.adapters[d.Kind], d, nil
	}
	for _, d := range available {
		if d.Kind == kind {
			return r.adapters[kind], d, nil
		}
	}
	return nil, Descriptor{}, fmt.Errorf("%w: %s", ErrNoProviderAvailable, kind)
}
