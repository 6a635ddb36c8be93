package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubAdapter struct {
	kind Kind
}

func (s stubAdapter) Kind() Kind { return s.kind }

func (s stubAdapter) Send(context.Context, ChatRequest) ChatResult {
	return Succeeded("ok", "stub", nil)
}

func stubFactories() map[Kind]AdapterFactory {
	out := make(map[Kind]AdapterFactory)
	for _, k := range DefaultOrder {
		kind := k
		out[kind] = func(Credential, string, time.Duration) Adapter { return stubAdapter{kind: kind} }
	}
	return out
}

func TestRegistryNoCredentials(t *testing.T) {
	r := NewRegistry(StaticCredentials{KindGemini: {APIKey: "  "}}, RegistryOptions{Factories: stubFactories()})

	if got := r.AvailableProviders(""); len(got) != 0 {
		t.Fatalf("expected no available providers, got %+v", got)
	}
	for _, kind := range append([]Kind{""}, DefaultOrder...) {
		if _, _, err := r.Resolve(kind); !errors.Is(err, ErrNoProviderConfigured) {
			t.Fatalf("resolve(%q) err = %v, want ErrNoProviderConfigured", kind, err)
		}
	}
	if len(r.Descriptors()) != len(DefaultOrder) {
		t.Fatalf("descriptors should list every provider")
	}
}

func TestRegistryDefaultPriority(t *testing.T) {
	r := NewRegistry(StaticCredentials{
		KindOpenRouter: {APIKey: "or"},
		KindAnthropic:  {APIKey: "an"},
	}, RegistryOptions{Factories: stubFactories()})

	got := r.AvailableProviders("")
	if len(got) != 2 || got[0].Kind != KindAnthropic || got[1].Kind != KindOpenRouter {
		t.Fatalf("unexpected order: %+v", got)
	}

	adapter, desc, err := r.Resolve("")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if adapter.Kind() != KindAnthropic || desc.Kind != KindAnthropic {
		t.Fatalf("resolve picked %s", adapter.Kind())
	}
}

func TestRegistrySelectionFirst(t *testing.T) {
	r := NewRegistry(StaticCredentials{
		KindOpenAI: {APIKey: "oa"},
		KindGemini: {APIKey: "ge"},
	}, RegistryOptions{Factories: stubFactories(), Preferred: KindGemini})

	got := r.AvailableProviders(KindGemini)
	if got[0].Kind != KindGemini || got[1].Kind != KindOpenAI {
		t.Fatalf("explicit selection should come first: %+v", got)
	}
	if _, desc, _ := r.Resolve(""); desc.Kind != KindGemini {
		t.Fatalf("preferred provider should win when none requested, got %s", desc.Kind)
	}

	// An unavailable selection leaves default order untouched.
	got = r.AvailableProviders(KindAnthropic)
	if got[0].Kind != KindOpenAI {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestRegistryRequestedKindUnavailable(t *testing.T) {
	r := NewRegistry(StaticCredentials{KindOpenAI: {APIKey: "oa"}}, RegistryOptions{Factories: stubFactories()})

	_, _, err := r.Resolve(KindAnthropic)
	if !errors.Is(err, ErrNoProviderAvailable) {
		t.Fatalf("err = %v, want ErrNoProviderAvailable", err)
	}
	adapter, _, err := r.Resolve(KindOpenAI)
	if err != nil || adapter.Kind() != KindOpenAI {
		t.Fatalf("resolve openai: %v", err)
	}
}

func TestRegistryModelOverride(t *testing.T) {
	var gotModel string
	factories := stubFactories()
	factories[KindOpenAI] = func(_ Credential, model string, _ time.Duration) Adapter {
		gotModel = model
		return stubAdapter{kind: KindOpenAI}
	}
	r := NewRegistry(StaticCredentials{KindOpenAI: {APIKey: "oa"}}, RegistryOptions{
		Factories: factories,
		Models:    map[Kind]string{KindOpenAI: "gpt-4o"},
	})
	if gotModel != "gpt-4o" {
		t.Fatalf("factory model = %q", gotModel)
	}
	if d := r.Descriptors()[0]; d.DefaultModel != "gpt-4o" || !d.Available {
		t.Fatalf("unexpected descriptor: %+v", d)
	}
	if d := r.Descriptors()[1]; d.DefaultModel != defaultAnthropicModel || d.Available {
		t.Fatalf("unexpected descriptor: %+v", d)
	}
}

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"":           "",
		"OpenAI":     KindOpenAI,
		"claude":     KindAnthropic,
		" gemini ":   KindGemini,
		"openrouter": KindOpenRouter,
	}
	for in, want := range cases {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Fatalf("ParseKind(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseKind("ollama"); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestKindForStatus(t *testing.T) {
	cases := map[int]FailureKind{
		401: FailureAuth,
		403: FailureAuth,
		429: FailureRateLimited,
		408: FailureTimeout,
		504: FailureTimeout,
		500: FailureServer,
		529: FailureServer,
		400: FailureInvalidRequest,
		422: FailureInvalidRequest,
		418: FailureUnknown,
	}
	for status, want := range cases {
		if got := KindForStatus(status); got != want {
			t.Fatalf("KindForStatus(%d) = %s, want %s", status, got, want)
		}
	}
}

func TestCredentialStringHidesKey(t *testing.T) {
	c := Credential{APIKey: "sk-secret"}
	if s := c.String(); s != "credential(set)" {
		t.Fatalf("String() = %q", s)
	}
}
