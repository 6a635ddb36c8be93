package llm

import (
	"context"
	"fmt"
	"strings"
)

// Kind identifies one vendor API family.
type Kind string

const (
	KindOpenAI     Kind = "openai"
	KindAnthropic  Kind = "anthropic"
	KindGemini     Kind = "gemini"
	KindOpenRouter Kind = "openrouter"
)

// DefaultOrder is the fixed preference used when the caller does not pick a provider.
var DefaultOrder = []Kind{KindOpenAI, KindAnthropic, KindGemini, KindOpenRouter}

// ParseKind maps user input (including the legacy "claude" alias) to a Kind.
// An empty string yields an empty Kind, meaning "no preference".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "openai":
		return KindOpenAI, nil
	case "anthropic", "claude":
		return KindAnthropic, nil
	case "gemini", "google":
		return KindGemini, nil
	case "openrouter":
		return KindOpenRouter, nil
	default:
		return "", fmt.Errorf("unknown provider %q", s)
	}
}

func (k Kind) DisplayName() string {
	switch k {
	case KindOpenAI:
		return "OpenAI"
	case KindAnthropic:
		return "Anthropic Claude"
	case KindGemini:
		return "Google Gemini"
	case KindOpenRouter:
		return "OpenRouter"
	default:
		return string(k)
	}
}

// Adapter translates a ChatRequest into one vendor call. Send never retries
// and always returns exactly one of Success or Failure.
type Adapter interface {
	Send(ctx context.Context, req ChatRequest) ChatResult
	Kind() Kind
}

// Credential is the secret for one provider plus an optional endpoint override.
type Credential struct {
	APIKey  string
	BaseURL string
}

// String keeps the key out of logs and fmt output.
func (c Credential) String() string {
	if c.APIKey == "" {
		return "credential(unset)"
	}
	return "credential(set)"
}

// Descriptor describes a provider as exposed to callers.
type Descriptor struct {
	Kind         Kind   `json:"kind"`
	DisplayName  string `json:"display_name"`
	DefaultModel string `json:"default_model"`
	Available    bool   `json:"available"`
}

// Role of a conversational turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a ChatRequest.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// ChatRequest is the vendor-neutral input for a single completion.
type ChatRequest struct {
	System      string  `json:"system,omitempty"`
	Turns       []Turn  `json:"turns"`
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// Validate checks that at least one turn carries text and every role is known.
func (r ChatRequest) Validate() error {
	hasText := false
	for i, t := range r.Turns {
		if t.Role != RoleUser && t.Role != RoleAssistant {
			return fmt.Errorf("turn %d: unsupported role %q", i, t.Role)
		}
		if strings.TrimSpace(t.Text) != "" {
			hasText = true
		}
	}
	if !hasText {
		return fmt.Errorf("request needs at least one turn with text")
	}
	if r.MaxTokens < 0 {
		return fmt.Errorf("max tokens must not be negative")
	}
	return nil
}

// Usage holds vendor-reported token counts.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Success is the populated variant of a completed call.
type Success struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
	// Usage is nil when the vendor did not report counts.
	Usage *Usage `json:"usage"`
}

// Failure is the populated variant of a failed call.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// ChatResult is a tagged outcome: exactly one of Success and Failure is set.
type ChatResult struct {
	Success *Success `json:"success,omitempty"`
	Failure *Failure `json:"failure,omitempty"`
}

func Succeeded(text, model string, usage *Usage) ChatResult {
	return ChatResult{Success: &Success{Text: text, Model: model, Usage: usage}}
}

func Failed(kind FailureKind, format string, args ...any) ChatResult {
	return ChatResult{Failure: &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}}
}

func (r ChatResult) OK() bool { return r.Success != nil }
