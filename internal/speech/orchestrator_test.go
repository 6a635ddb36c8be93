package speech

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nikhilbhutani/speechwriter/internal/llm"
)

// scriptedAdapter replays results in order and repeats the last one.
type scriptedAdapter struct {
	mu       sync.Mutex
	results  []llm.ChatResult
	requests []llm.ChatRequest
	onSend   func(call int)
}

func (a *scriptedAdapter) Kind() llm.Kind { return llm.KindOpenAI }

func (a *scriptedAdapter) Send(_ context.Context, req llm.ChatRequest) llm.ChatResult {
	a.mu.Lock()
	a.requests = append(a.requests, req)
	call := len(a.requests)
	res := a.results[0]
	if len(a.results) > 1 {
		a.results = a.results[1:]
	}
	hook := a.onSend
	a.mu.Unlock()
	if hook != nil {
		hook(call)
	}
	return res
}

func (a *scriptedAdapter) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}

type fakeResolver struct {
	adapter llm.Adapter
	err     error
	t       *testing.T
	forbid  bool
}

func (r *fakeResolver) Resolve(kind llm.Kind) (llm.Adapter, llm.Descriptor, error) {
	if r.forbid {
		r.t.Fatalf("no provider should be resolved")
	}
	if r.err != nil {
		return nil, llm.Descriptor{}, r.err
	}
	return r.adapter, llm.Descriptor{Kind: r.adapter.Kind(), Available: true}, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BackoffBase = time.Millisecond
	return cfg
}

func newTestOrchestrator(adapter *scriptedAdapter) *Orchestrator {
	return New(&fakeResolver{adapter: adapter}, nil, testConfig())
}

const transcript = `OPERATOR: Good morning and welcome to the call.
JANE DOE: Thank you. This quarter we delivered record revenue across every segment.
ANALYST: Can you talk about margins?
JANE DOE: Sure, margins expanded by two points.`

var fiveUtterances = []string{
	"Thank you, operator, and good morning everyone.",
	"This quarter we delivered record revenue across every segment we operate in.",
	"Our consumer business grew double digits for the third straight quarter.",
	"We continued to invest in product quality and customer experience.",
	"Looking ahead, we remain confident in our long-term strategy.",
}

func TestExtractRetriesTransientFailuresThenFails(t *testing.T) {
	adapter := &scriptedAdapter{results: []llm.ChatResult{llm.Failed(llm.FailureRateLimited, "slow down")}}
	o := newTestOrchestrator(adapter)

	_, err := o.ExtractPreparedRemarks(context.Background(), transcript, "Jane Doe", "")
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("err = %v, want ExtractionFailed", err)
	}
	if adapter.calls() != 3 {
		t.Fatalf("expected 3 attempts, got %d", adapter.calls())
	}
	var se *Error
	if !errors.As(err, &se) || se.Attempts != 3 || se.Failure.Kind != llm.FailureRateLimited {
		t.Fatalf("unexpected error detail: %+v", se)
	}
}

func TestGenerateRetriesTransientFailuresThenFails(t *testing.T) {
	adapter := &scriptedAdapter{results: []llm.ChatResult{llm.Failed(llm.FailureTimeout, "deadline")}}
	o := newTestOrchestrator(adapter)

	_, err := o.GenerateTemplate(context.Background(), SpeakerContent{Speaker: "Jane", Utterances: fiveUtterances}, "")
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("err = %v, want GenerationFailed", err)
	}
	if adapter.calls() != 3 {
		t.Fatalf("expected 3 attempts, got %d", adapter.calls())
	}
}

func TestNonTransientFailuresAreNotRetried(t *testing.T) {
	for _, kind := range []llm.FailureKind{llm.FailureAuth, llm.FailureInvalidRequest, llm.FailureUnknown} {
		t.Run(string(kind), func(t *testing.T) {
			adapter := &scriptedAdapter{results: []llm.ChatResult{llm.Failed(kind, "no")}}
			o := newTestOrchestrator(adapter)

			_, err := o.ExtractPreparedRemarks(context.Background(), transcript, "Jane Doe", "")
			if !errors.Is(err, ErrExtractionFailed) {
				t.Fatalf("err = %v, want ExtractionFailed", err)
			}
			if adapter.calls() != 1 {
				t.Fatalf("expected a single attempt, got %d", adapter.calls())
			}
			var se *Error
			errors.As(err, &se)
			if se.Attempts-1 != 0 {
				t.Fatalf("expected zero retries, got %d", se.Attempts-1)
			}
		})
	}
}

func TestServerErrorRecoversOnRetry(t *testing.T) {
	adapter := &scriptedAdapter{results: []llm.ChatResult{
		llm.Failed(llm.FailureServer, "boom"),
		llm.Succeeded("A structured template.", "gpt-4.1-mini", nil),
	}}
	o := newTestOrchestrator(adapter)

	gen, err := o.GenerateTemplate(context.Background(), SpeakerContent{Speaker: "Jane", Utterances: fiveUtterances}, "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if gen.Attempts != 2 || gen.Text != "A structured template." {
		t.Fatalf("unexpected generation: %+v", gen)
	}
}

func TestExtractThenTemplateScenario(t *testing.T) {
	adapter := &scriptedAdapter{results: []llm.ChatResult{
		llm.Succeeded(strings.Join(fiveUtterances, "\n---\n"), "m", &llm.Usage{InputTokens: 100, OutputTokens: 50, TotalTokens: 150}),
		llm.Succeeded("## Opening\n- We delivered record revenue.", "m", nil),
	}}
	o := newTestOrchestrator(adapter)

	ext, err := o.ExtractPreparedRemarks(context.Background(), transcript, "  Jane Doe ", "")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(ext.Content.Utterances) != 5 {
		t.Fatalf("expected 5 utterances, got %d", len(ext.Content.Utterances))
	}
	if ext.Content.Speaker != "Jane Doe" {
		t.Fatalf("speaker = %q", ext.Content.Speaker)
	}
	if !strings.Contains(ext.Prompt, transcript) || !strings.Contains(ext.Prompt, "Jane Doe") {
		t.Fatalf("extraction prompt should carry transcript and speaker")
	}
	if ext.Usage == nil || ext.Usage.TotalTokens != 150 {
		t.Fatalf("usage not passed through: %+v", ext.Usage)
	}

	gen, err := o.GenerateTemplate(context.Background(), ext.Content, "")
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	if gen.Text == "" || gen.Prompt == "" {
		t.Fatalf("template and prompt must both be populated: %+v", gen)
	}
	if !strings.Contains(gen.Prompt, ext.Content.Text()) {
		t.Fatalf("template prompt should contain the joined utterances")
	}
	if gen.Usage != nil {
		t.Fatalf("missing usage should stay nil")
	}

	sent := adapter.requests[1]
	if len(sent.Turns) != 1 || sent.Turns[0].Role != llm.RoleUser || sent.System == "" {
		t.Fatalf("unexpected request shape: %+v", sent)
	}
	if sent.MaxTokens != 4096 || sent.Temperature != 0.7 {
		t.Fatalf("request hints not applied: %+v", sent)
	}
}

func TestGenerateSpeechRejectsBlankKeyMessages(t *testing.T) {
	o := New(&fakeResolver{t: t, forbid: true}, nil, testConfig())

	for _, km := range []string{"", "   \n\t "} {
		_, err := o.GenerateSpeech(context.Background(), SpeakerContent{Speaker: "Jane", Utterances: fiveUtterances}, km, llm.KindOpenAI)
		if !errors.Is(err, ErrEmptyKeyMessages) {
			t.Fatalf("err = %v, want EmptyKeyMessages", err)
		}
	}
}

func TestGenerateSpeechPrompt(t *testing.T) {
	adapter := &scriptedAdapter{results: []llm.ChatResult{llm.Succeeded("Good morning. Today...", "m", nil)}}
	o := newTestOrchestrator(adapter)

	content := SpeakerContent{Speaker: "Jane Doe", Utterances: fiveUtterances}
	gen, err := o.GenerateSpeech(context.Background(), content, "Revenue up 12%. New product launch in May.", "")
	if err != nil {
		t.Fatalf("speech: %v", err)
	}
	if !strings.Contains(gen.Prompt, "New product launch in May.") || !strings.Contains(gen.Prompt, content.Text()) {
		t.Fatalf("speech prompt must include key messages and style reference")
	}
	if !strings.Contains(adapter.requests[0].System, "Jane Doe") {
		t.Fatalf("system prompt should name the speaker")
	}
}

func TestExtractNoContent(t *testing.T) {
	cases := map[string]string{
		"sentinel":        "NO_PREPARED_REMARKS_FOUND",
		"too short":       "Thanks.",
		"only delimiters": "---\n---\n",
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			adapter := &scriptedAdapter{results: []llm.ChatResult{llm.Succeeded(reply, "m", nil)}}
			_, err := newTestOrchestrator(adapter).ExtractPreparedRemarks(context.Background(), transcript, "Jane Doe", "")
			if !errors.Is(err, ErrNoContentFound) {
				t.Fatalf("err = %v, want NoContentFound", err)
			}
		})
	}
}

func TestExtractInputChecks(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTranscriptChars = 20
	o := New(&fakeResolver{t: t, forbid: true}, nil, cfg)

	if _, err := o.ExtractPreparedRemarks(context.Background(), transcript, "Jane", ""); !errors.Is(err, ErrInputTooLarge) {
		t.Fatalf("err = %v, want InputTooLarge", err)
	}
	if _, err := o.ExtractPreparedRemarks(context.Background(), "short", "  ", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want InvalidInput", err)
	}
	if _, err := o.ExtractPreparedRemarks(context.Background(), "   ", "Jane", ""); !errors.Is(err, ErrNoContentFound) {
		t.Fatalf("err = %v, want NoContentFound", err)
	}
}

func TestRegistryErrorsSurface(t *testing.T) {
	empty := llm.NewRegistry(llm.StaticCredentials{}, llm.RegistryOptions{})
	o := New(empty, nil, testConfig())
	_, err := o.GenerateTemplate(context.Background(), SpeakerContent{Speaker: "J", Utterances: fiveUtterances}, llm.KindGemini)
	if !errors.Is(err, ErrNoProviderConfigured) {
		t.Fatalf("err = %v, want NoProviderConfigured", err)
	}

	o = New(&fakeResolver{err: llm.ErrNoProviderAvailable}, nil, testConfig())
	_, err = o.GenerateTemplate(context.Background(), SpeakerContent{Speaker: "J", Utterances: fiveUtterances}, llm.KindGemini)
	if !errors.Is(err, ErrNoProviderAvailable) {
		t.Fatalf("err = %v, want NoProviderAvailable", err)
	}
}

func TestHaltBeforeFirstAttempt(t *testing.T) {
	adapter := &scriptedAdapter{results: []llm.ChatResult{llm.Succeeded("x", "m", nil)}}
	o := newTestOrchestrator(adapter)

	halt := make(chan struct{})
	close(halt)
	_, err := o.GenerateTemplate(WithHalt(context.Background(), halt), SpeakerContent{Speaker: "J", Utterances: fiveUtterances}, "")
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want Cancelled", err)
	}
	if adapter.calls() != 0 {
		t.Fatalf("no call expected after halt, got %d", adapter.calls())
	}
}

func TestHaltStopsRetries(t *testing.T) {
	halt := make(chan struct{})
	adapter := &scriptedAdapter{
		results: []llm.ChatResult{llm.Failed(llm.FailureRateLimited, "slow")},
		onSend:  func(int) { close(halt) },
	}
	cfg := testConfig()
	cfg.BackoffBase = time.Hour
	o := New(&fakeResolver{adapter: adapter}, nil, cfg)

	done := make(chan error, 1)
	go func() {
		_, err := o.GenerateTemplate(WithHalt(context.Background(), halt), SpeakerContent{Speaker: "J", Utterances: fiveUtterances}, "")
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, ErrCancelled) {
			t.Fatalf("err = %v, want Cancelled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("halt did not interrupt the backoff")
	}
	if adapter.calls() != 1 {
		t.Fatalf("expected exactly the in-flight call, got %d", adapter.calls())
	}
}

func TestBackoffSchedule(t *testing.T) {
	o := New(&fakeResolver{}, nil, DefaultConfig())
	if o.backoff(1) != 2*time.Second || o.backoff(2) != 4*time.Second {
		t.Fatalf("unexpected backoff: %v, %v", o.backoff(1), o.backoff(2))
	}
}

func TestSplitUtterances(t *testing.T) {
	got := splitUtterances("first passage\r\nstill first\n  ---  \n\nsecond\n---\n\n---\nthird")
	want := []string{"first passage\nstill first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("got %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("passage %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestErrorKinds(t *testing.T) {
	err := newError(KindGenerationFailed, "x")
	if err.ErrorKind() != "GenerationFailed" || !err.Retryable() {
		t.Fatalf("unexpected attributes for %v", err)
	}
	if newError(KindEmptyKeyMessages, "x").Retryable() {
		t.Fatalf("EmptyKeyMessages should not be retryable")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatalf("plain errors have no kind")
	}
}
