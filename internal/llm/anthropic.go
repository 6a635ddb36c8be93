package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicModel     = "claude-sonnet-4-20250514"
	defaultAnthropicMaxTokens = 4096
)

type AnthropicAdapter struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
}

func NewAnthropicAdapter(cred Credential, model string, timeout time.Duration) *AnthropicAdapter {
	opts := []option.RequestOption{
		option.WithAPIKey(cred.APIKey),
		option.WithMaxRetries(0),
	}
	if cred.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cred.BaseURL))
	}
	if model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicAdapter{
		client:  anthropic.NewClient(opts...),
		model:   model,
		timeout: timeout,
	}
}

func (p *AnthropicAdapter) Kind() Kind { return KindAnthropic }

func (p *AnthropicAdapter) Send(ctx context.Context, req ChatRequest) ChatResult {
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

	var msgs []anthropic.MessageParam
	for _, t := range req.Turns {
		switch t.Role {
		case RoleUser:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Text)))
		case RoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Text)))
		}
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens == 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  msgs,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System},
		}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return p.failure(err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	var usage *Usage
	if resp.JSON.Usage.Valid() {
		in, out := int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens)
		usage = &Usage{InputTokens: in, OutputTokens: out, TotalTokens: in + out}
	}
	logCall(KindAnthropic, model, usage, time.Since(start))
	return Succeeded(content.String(), string(resp.Model), usage)
}

func (p *AnthropicAdapter) failure(err error) ChatResult {
	if isTimeout(err) {
		return Failed(FailureTimeout, "anthropic: %v", err)
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return Failed(KindForStatus(apiErr.StatusCode), "anthropic: status %d", apiErr.StatusCode)
	}
	return Failed(FailureUnknown, "anthropic: %v", err)
}
