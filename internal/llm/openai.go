package llm

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4.1-mini"

type OpenAIAdapter struct {
	client  *openai.Client
	kind    Kind
	model   string
	timeout time.Duration
}

func NewOpenAIAdapter(cred Credential, model string, timeout time.Duration) *OpenAIAdapter {
	cfg := openai.DefaultConfig(cred.APIKey)
	if cred.BaseURL != "" {
		cfg.BaseURL = cred.BaseURL
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIAdapter{
		client:  openai.NewClientWithConfig(cfg),
		kind:    KindOpenAI,
		model:   model,
		timeout: timeout,
	}
}

func (p *OpenAIAdapter) Kind() Kind { return p.kind }

func (p *OpenAIAdapter) Send(ctx context.Context, req ChatRequest) ChatResult {
	if err := req.Validate(); err != nil {
		return Failed(FailureInvalidRequest, "%s", err.Error())
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	start := time.Now()

	model := req.Model
	if model == "" {
		model = p.model
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Turns)+1)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, t := range req.Turns {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: string(t.Role), Content: t.Text})
	}

	oReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
	}
	if req.Temperature > 0 {
		oReq.Temperature = float32(req.Temperature)
	}
	if req.MaxTokens > 0 {
		oReq.MaxTokens = req.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, oReq)
	if err != nil {
		return p.failure(err)
	}
	if len(resp.Choices) == 0 {
		return Failed(FailureUnknown, "%s: response has no choices", p.kind)
	}

	var usage *Usage
	if resp.Usage != (openai.Usage{}) {
		usage = &Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}
	}
	logCall(p.kind, model, usage, time.Since(start))
	return Succeeded(resp.Choices[0].Message.Content, resp.Model, usage)
}

func (p *OpenAIAdapter) failure(err error) ChatResult {
	if isTimeout(err) {
		return Failed(FailureTimeout, "%s: %v", p.kind, err)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return Failed(KindForStatus(apiErr.HTTPStatusCode), "%s: %d %s", p.kind, apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return Failed(KindForStatus(reqErr.HTTPStatusCode), "%s: %d %s", p.kind, reqErr.HTTPStatusCode, http.StatusText(reqErr.HTTPStatusCode))
	}
	return Failed(FailureUnknown, "%s: %v", p.kind, err)
}

func logCall(kind Kind, model string, usage *Usage, elapsed time.Duration) {
	attrs := []any{"provider", kind, "model", model, "latency_ms", elapsed.Milliseconds()}
	if usage != nil {
		attrs = append(attrs,
			"input_tokens", usage.InputTokens,
			"output_tokens", usage.OutputTokens,
			"cost_usd", CalculateCost(model, usage.InputTokens, usage.OutputTokens),
		)
	}
	slog.Debug("llm call completed", attrs...)
}
