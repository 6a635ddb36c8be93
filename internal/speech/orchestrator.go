// Package speech runs the three speech-writing use cases against an LLM provider:
// extracting a speaker's prepared remarks, summarizing them into a template,
// and writing a new speech in the same voice.
package speech

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nikhilbhutani/speechwriter/internal/llm"
	"github.com/nikhilbhutani/speechwriter/internal/prompt"
)

// Resolver picks the adapter for a provider kind. *llm.Registry satisfies it.
type Resolver interface {
	Resolve(kind llm.Kind) (llm.Adapter, llm.Descriptor, error)
}

type Config struct {
	// MaxRetries is the number of additional attempts after a transient failure.
	MaxRetries    int
	BackoffBase   time.Duration
	BackoffFactor float64
	// MaxTranscriptChars bounds the transcript sent for extraction.
	MaxTranscriptChars int
	// MinContentChars is the least extracted text worth building a template from.
	MinContentChars int
	MaxTokens       int
	Temperature     float64
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:         2,
		BackoffBase:        2 * time.Second,
		BackoffFactor:      2,
		MaxTranscriptChars: 400000,
		MinContentChars:    50,
		MaxTokens:          4096,
		Temperature:        0.7,
	}
}

type Orchestrator struct {
	providers Resolver
	prompts   *prompt.Library
	cfg       Config
}

func New(providers Resolver, prompts *prompt.Library, cfg Config) *Orchestrator {
	if prompts == nil {
		prompts = prompt.Builtin()
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffFactor < 1 {
		cfg.BackoffFactor = 1
	}
	return &Orchestrator{providers: providers, prompts: prompts, cfg: cfg}
}

// Extraction is the outcome of ExtractPreparedRemarks.
type Extraction struct {
	Content  SpeakerContent `json:"content"`
	Prompt   string         `json:"prompt"`
	Provider llm.Kind       `json:"provider"`
	Model    string         `json:"model,omitempty"`
	Usage    *llm.Usage     `json:"usage"`
	Attempts int            `json:"attempts"`
}

// Generation is the outcome of GenerateTemplate and GenerateSpeech.
type Generation struct {
	Prompt   string     `json:"prompt"`
	Text     string     `json:"text"`
	Provider llm.Kind   `json:"provider"`
	Model    string     `json:"model,omitempty"`
	Usage    *llm.Usage `json:"usage"`
	Attempts int        `json:"attempts"`
}

// ExtractPreparedRemarks asks the model for the verbatim prepared remarks of
// speakerName in fullText. Name matching is left to the model.
func (o *Orchestrator) ExtractPreparedRemarks(ctx context.Context, fullText, speakerName string, kind llm.Kind) (*Extraction, error) {
	speakerName = strings.TrimSpace(speakerName)
	if speakerName == "" {
		return nil, newError(KindInvalidInput, "speaker name is empty")
	}
	n := utf8.RuneCountInString(fullText)
	if o.cfg.MaxTranscriptChars > 0 && n > o.cfg.MaxTranscriptChars {
		return nil, newError(KindInputTooLarge, "transcript has %d characters, limit is %d", n, o.cfg.MaxTranscriptChars)
	}
	if strings.TrimSpace(fullText) == "" {
		return nil, newError(KindNoContentFound, "transcript contains no text")
	}

	rendered, err := o.render(prompt.ExtractRemarks, map[string]string{
		"speaker":    speakerName,
		"transcript": fullText,
		"sentinel":   prompt.NoRemarksSentinel,
		"delimiter":  prompt.PassageDelimiter,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("extracting prepared remarks", "speaker", speakerName, "transcript_chars", n, "provider", kind)
	res, err := o.dispatch(ctx, kind, chatRequest(rendered), KindExtractionFailed)
	if err != nil {
		return nil, err
	}

	text := res.success.Text
	if strings.Contains(text, prompt.NoRemarksSentinel) {
		return nil, &Error{
			Kind:     KindNoContentFound,
			Message:  "no prepared remarks found for " + speakerName + "; check the name as written in the transcript, or try first or last name only",
			Attempts: res.attempts,
		}
	}

	content := SpeakerContent{Speaker: speakerName, Utterances: splitUtterances(text)}
	if content.Empty() || content.Chars() < o.cfg.MinContentChars {
		return nil, &Error{
			Kind:     KindNoContentFound,
			Message:  "extracted content for " + speakerName + " is too short to build a template",
			Attempts: res.attempts,
		}
	}

	slog.Info("prepared remarks extracted",
		"speaker", speakerName, "utterances", len(content.Utterances), "chars", content.Chars(),
		"provider", res.provider.Kind, "attempts", res.attempts)
	return &Extraction{
		Content:  content,
		Prompt:   rendered.Text(),
		Provider: res.provider.Kind,
		Model:    res.success.Model,
		Usage:    res.success.Usage,
		Attempts: res.attempts,
	}, nil
}

// GenerateTemplate summarizes the remarks into sections of standalone bullets.
func (o *Orchestrator) GenerateTemplate(ctx context.Context, content SpeakerContent, kind llm.Kind) (*Generation, error) {
	if content.Empty() {
		return nil, newError(KindNoContentFound, "no prepared remarks to build a template from")
	}

	rendered, err := o.render(prompt.SpeechTemplate, map[string]string{
		"speaker": content.Speaker,
		"remarks": content.Text(),
	})
	if err != nil {
		return nil, err
	}

	slog.Info("generating speech template", "speaker", content.Speaker, "provider", kind)
	return o.generate(ctx, kind, rendered)
}

// GenerateSpeech writes keyMessages up as a speech in the speaker's style.
// Blank key messages fail before any provider is contacted.
func (o *Orchestrator) GenerateSpeech(ctx context.Context, content SpeakerContent, keyMessages string, kind llm.Kind) (*Generation, error) {
	keyMessages = strings.TrimSpace(keyMessages)
	if keyMessages == "" {
		return nil, newError(KindEmptyKeyMessages, "key messages are empty")
	}
	if content.Empty() {
		return nil, newError(KindNoContentFound, "no prepared remarks to use as style reference")
	}

	rendered, err := o.render(prompt.CustomSpeech, map[string]string{
		"speaker":      content.Speaker,
		"key_messages": keyMessages,
		"remarks":      content.Text(),
	})
	if err != nil {
		return nil, err
	}

	slog.Info("generating custom speech", "speaker", content.Speaker, "key_message_chars", len(keyMessages), "provider", kind)
	return o.generate(ctx, kind, rendered)
}

func (o *Orchestrator) generate(ctx context.Context, kind llm.Kind, rendered prompt.Rendered) (*Generation, error) {
	res, err := o.dispatch(ctx, kind, chatRequest(rendered), KindGenerationFailed)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(res.success.Text)
	if text == "" {
		return nil, &Error{Kind: KindGenerationFailed, Message: "provider returned an empty response", Attempts: res.attempts}
	}
	return &Generation{
		Prompt:   rendered.Text(),
		Text:     text,
		Provider: res.provider.Kind,
		Model:    res.success.Model,
		Usage:    res.success.Usage,
		Attempts: res.attempts,
	}, nil
}

func (o *Orchestrator) render(name string, vars map[string]string) (prompt.Rendered, error) {
	tmpl, err := o.prompts.Get(name)
	if err != nil {
		return prompt.Rendered{}, &Error{Kind: KindInvalidInput, Message: err.Error(), Cause: err}
	}
	rendered, err := tmpl.Render(vars)
	if err != nil {
		return prompt.Rendered{}, &Error{Kind: KindInvalidInput, Message: err.Error(), Cause: err}
	}
	slog.Debug("prompt rendered", "use_case", name, "system_chars", len(rendered.System), "user_chars", len(rendered.User))
	return rendered, nil
}

func chatRequest(r prompt.Rendered) llm.ChatRequest {
	return llm.ChatRequest{
		System: r.System,
		Turns:  []llm.Turn{{Role: llm.RoleUser, Text: r.User}},
	}
}
