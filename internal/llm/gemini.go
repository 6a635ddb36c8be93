package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultGeminiURL   = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel = "gemini-2.5-flash"
)

type GeminiAdapter struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewGeminiAdapter(cred Credential, model string, timeout time.Duration) *GeminiAdapter {
	baseURL := cred.BaseURL
	if baseURL == "" {
		baseURL = defaultGeminiURL
	}
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiAdapter{
		apiKey:  cred.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (p *GeminiAdapter) Kind() Kind { return KindGemini }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiReq struct {
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiResp struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata *geminiUsage `json:"usageMetadata"`
	ModelVersion  string       `json:"modelVersion"`
}

type geminiErrResp struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (p *GeminiAdapter) Send(ctx context.Context, req ChatRequest) ChatResult {
	if err := req.Validate(); err != nil {
		return Failed(FailureInvalidRequest, "%s", err.Error())
	}
	start := time.Now()

	model := req.Model
	if model == "" {
		model = p.model
	}

	gReq := geminiReq{}
	if req.System != "" {
		gReq.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	for _, t := range req.Turns {
		role := "user"
		if t.Role == RoleAssistant {
			role = "model"
		}
		gReq.Contents = append(gReq.Contents, geminiContent{Role: role, Parts: []geminiPart{{Text: t.Text}}})
	}
	if req.Temperature > 0 || req.MaxTokens > 0 {
		gReq.GenerationConfig = &geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		}
	}

	body, err := json.Marshal(gReq)
	if err != nil {
		return Failed(FailureInvalidRequest, "gemini encode: %v", err)
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, url.PathEscape(model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Failed(FailureInvalidRequest, "gemini request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return Failed(FailureTimeout, "gemini: %v", err)
		}
		return Failed(FailureUnknown, "gemini: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var eResp geminiErrResp
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		msg := resp.Status
		if json.Unmarshal(raw, &eResp) == nil && eResp.Error.Message != "" {
			msg = fmt.Sprintf("%d %s", resp.StatusCode, eResp.Error.Message)
		}
		return Failed(KindForStatus(resp.StatusCode), "gemini: %s", msg)
	}

	var gResp geminiResp
	if err := json.NewDecoder(resp.Body).Decode(&gResp); err != nil {
		if isTimeout(err) {
			return Failed(FailureTimeout, "gemini decode: %v", err)
		}
		return Failed(FailureUnknown, "gemini decode: %v", err)
	}
	if gResp.PromptFeedback != nil && gResp.PromptFeedback.BlockReason != "" {
		return Failed(FailureInvalidRequest, "gemini: prompt blocked (%s)", gResp.PromptFeedback.BlockReason)
	}
	if len(gResp.Candidates) == 0 {
		return Failed(FailureUnknown, "gemini: no response candidates")
	}

	var content strings.Builder
	for _, part := range gResp.Candidates[0].Content.Parts {
		content.WriteString(part.Text)
	}

	var usage *Usage
	if u := gResp.UsageMetadata; u != nil {
		usage = &Usage{
			InputTokens:  u.PromptTokenCount,
			OutputTokens: u.CandidatesTokenCount,
			TotalTokens:  u.TotalTokenCount,
		}
	}
	modelName := gResp.ModelVersion
	if modelName == "" {
		modelName = model
	}
	logCall(KindGemini, model, usage, time.Since(start))
	return Succeeded(content.String(), modelName, usage)
}
