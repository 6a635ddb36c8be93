package llm

import (
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultOpenRouterURL   = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel = "deepseek/deepseek-r1:free"
	openRouterAppTitle     = "Speech Writer"
)

// OpenRouterAdapter speaks the OpenAI chat-completions dialect against
// OpenRouter, adding the attribution headers OpenRouter expects.
type OpenRouterAdapter struct {
	*OpenAIAdapter
}

func NewOpenRouterAdapter(cred Credential, model string, timeout time.Duration) *OpenRouterAdapter {
	baseURL := cred.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenRouterURL
	}
	if model == "" {
		model = defaultOpenRouterModel
	}

	cfg := openai.DefaultConfig(cred.APIKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{
		Transport: &headerTransport{
			base: http.DefaultTransport,
			headers: map[string]string{
				"X-Title": openRouterAppTitle,
			},
		},
	}

	return &OpenRouterAdapter{
		OpenAIAdapter: &OpenAIAdapter{
			client:  openai.NewClientWithConfig(cfg),
			kind:    KindOpenRouter,
			model:   model,
			timeout: timeout,
		},
	}
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(req)
}
