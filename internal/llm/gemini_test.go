package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGeminiSendSuccess(t *testing.T) {
	var captured struct {
		Path   string
		APIKey string
		Query  string
		Body   geminiReq
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Path = r.URL.Path
		captured.APIKey = r.Header.Get("x-goog-api-key")
		captured.Query = r.URL.RawQuery
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&captured.Body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "Thank "}, {"text": "you."}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 7, "candidatesTokenCount": 2, "totalTokenCount": 9},
			"modelVersion": "gemini-2.5-flash"
		}`))
	}))
	defer srv.Close()

	p := NewGeminiAdapter(Credential{APIKey: "g-key", BaseURL: srv.URL + "/"}, "", time.Second)
	req := ChatRequest{
		System:      "be brief",
		Turns:       []Turn{{Role: RoleUser, Text: "hi"}, {Role: RoleAssistant, Text: "hello"}, {Role: RoleUser, Text: "again"}},
		Temperature: 0.7,
		MaxTokens:   256,
	}
	res := p.Send(context.Background(), req)
	assertOneVariant(t, res)

	if !res.OK() {
		t.Fatalf("unexpected failure: %v", res.Failure)
	}
	if res.Success.Text != "Thank you." {
		t.Fatalf("text = %q", res.Success.Text)
	}
	if res.Success.Usage == nil || res.Success.Usage.TotalTokens != 9 {
		t.Fatalf("unexpected usage: %+v", res.Success.Usage)
	}
	if captured.Path != "/models/gemini-2.5-flash:generateContent" {
		t.Fatalf("path = %q", captured.Path)
	}
	if captured.APIKey != "g-key" || captured.Query != "" {
		t.Fatalf("key must travel in the header only, header=%q query=%q", captured.APIKey, captured.Query)
	}
	if captured.Body.SystemInstruction == nil || captured.Body.SystemInstruction.Parts[0].Text != "be brief" {
		t.Fatalf("system instruction not forwarded: %+v", captured.Body.SystemInstruction)
	}
	if len(captured.Body.Contents) != 3 || captured.Body.Contents[1].Role != "model" {
		t.Fatalf("unexpected contents: %+v", captured.Body.Contents)
	}
	if captured.Body.GenerationConfig == nil || captured.Body.GenerationConfig.MaxOutputTokens != 256 {
		t.Fatalf("generation config not forwarded: %+v", captured.Body.GenerationConfig)
	}
}

func TestGeminiSendWithoutUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}))
	defer srv.Close()

	res := NewGeminiAdapter(Credential{APIKey: "k", BaseURL: srv.URL}, "", time.Second).
		Send(context.Background(), userRequest("hi"))
	assertOneVariant(t, res)
	if !res.OK() || res.Success.Usage != nil {
		t.Fatalf("expected success with nil usage, got %+v", res)
	}
}

func TestGeminiSendFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   FailureKind
	}{
		{"forbidden", http.StatusForbidden, `{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`, FailureAuth},
		{"quota", http.StatusTooManyRequests, `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`, FailureRateLimited},
		{"gateway timeout", http.StatusGatewayTimeout, `oops`, FailureTimeout},
		{"no candidates", http.StatusOK, `{"candidates":[]}`, FailureUnknown},
		{"blocked", http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`, FailureInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			res := NewGeminiAdapter(Credential{APIKey: "k", BaseURL: srv.URL}, "", time.Second).
				Send(context.Background(), userRequest("hi"))
			assertOneVariant(t, res)
			if res.OK() || res.Failure.Kind != tc.want {
				t.Fatalf("expected %s, got %+v", tc.want, res)
			}
		})
	}
}
