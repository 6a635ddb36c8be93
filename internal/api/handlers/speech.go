package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/speechwriter/internal/auth"
	"github.com/nikhilbhutani/speechwriter/internal/document"
	"github.com/nikhilbhutani/speechwriter/internal/jobs"
	"github.com/nikhilbhutani/speechwriter/internal/llm"
	"github.com/nikhilbhutani/speechwriter/internal/session"
	"github.com/nikhilbhutani/speechwriter/internal/speech"
)

// Job types.
const (
	JobExtract  = "extract"
	JobTemplate = "template"
	JobSpeech   = "speech"
)

// multipart headers and the speaker/provider fields on top of the file itself
const formOverhead = 1 << 20

// UseCases is the orchestration surface the handlers drive.
type UseCases interface {
	ExtractPreparedRemarks(ctx context.Context, fullText, speakerName string, kind llm.Kind) (*speech.Extraction, error)
	GenerateTemplate(ctx context.Context, content speech.SpeakerContent, kind llm.Kind) (*speech.Generation, error)
	GenerateSpeech(ctx context.Context, content speech.SpeakerContent, keyMessages string, kind llm.Kind) (*speech.Generation, error)
}

// Providers is the read side of the LLM registry.
type Providers interface {
	Descriptors() []llm.Descriptor
	AvailableProviders(selected llm.Kind) []llm.Descriptor
	Resolve(kind llm.Kind) (llm.Adapter, llm.Descriptor, error)
}

type SpeechHandler struct {
	usecases  UseCases
	providers Providers
	runner    *jobs.Runner
	guard     session.Guard
	extractor document.TextExtractor
	maxUpload int64
}

func NewSpeechHandler(uc UseCases, providers Providers, runner *jobs.Runner, guard session.Guard, extractor document.TextExtractor, maxUpload int64) *SpeechHandler {
	return &SpeechHandler{
		usecases:  uc,
		providers: providers,
		runner:    runner,
		guard:     guard,
		extractor: extractor,
		maxUpload: maxUpload,
	}
}

// Extract accepts a transcript upload and starts an extraction job.
func (h *SpeechHandler) Extract(w http.ResponseWriter, r *http.Request) {
	limit := h.maxUpload + formOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	// Keep the whole form in memory so uploads never touch disk.
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, string(document.KindInvalidUpload), "upload is too large")
			return
		}
		writeError(w, http.StatusBadRequest, kindInvalidInput, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("pdf_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, string(document.KindInvalidUpload), "pdf_file required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, string(document.KindInvalidUpload), "could not read upload")
		return
	}
	if err := document.ValidateUpload(header.Filename, data, h.maxUpload); err != nil {
		writeErr(w, err)
		return
	}
	speaker, err := document.ValidateSpeakerName(r.FormValue("speaker_name"))
	if err != nil {
		writeErr(w, err)
		return
	}
	kind, ok := h.provider(w, r.FormValue("provider"))
	if !ok {
		return
	}

	h.submit(w, r, JobExtract, func(ctx context.Context, cancel <-chan struct{}) (*jobs.Result, error) {
		text, err := h.extractor.Extract(ctx, data)
		if err != nil {
			return nil, err
		}
		ex, err := h.usecases.ExtractPreparedRemarks(speech.WithHalt(ctx, cancel), text, speaker, kind)
		if err != nil {
			return nil, err
		}
		return &jobs.Result{
			Prompt:   ex.Prompt,
			Text:     ex.Content.Text(),
			Provider: string(ex.Provider),
			Model:    ex.Model,
			Payload:  ex.Content,
		}, nil
	})
}

type templateRequest struct {
	JobID    string `json:"job_id"`
	Provider string `json:"provider"`
}

// Template builds a speech template from a finished extraction job.
func (h *SpeechHandler) Template(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, kindInvalidInput, "invalid request body")
		return
	}
	content, ok := h.sourceContent(w, r, req.JobID, JobExtract)
	if !ok {
		return
	}
	kind, ok := h.provider(w, req.Provider)
	if !ok {
		return
	}

	h.submit(w, r, JobTemplate, func(ctx context.Context, cancel <-chan struct{}) (*jobs.Result, error) {
		gen, err := h.usecases.GenerateTemplate(speech.WithHalt(ctx, cancel), content, kind)
		if err != nil {
			return nil, err
		}
		return generationResult(gen, content), nil
	})
}

type speechRequest struct {
	JobID       string `json:"job_id"`
	KeyMessages string `json:"key_messages"`
	Provider    string `json:"provider"`
}

// Speech writes a custom speech from the caller's key messages in the style
// of the remarks carried by an extraction or template job.
func (h *SpeechHandler) Speech(w http.ResponseWriter, r *http.Request) {
	var req speechRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, kindInvalidInput, "invalid request body")
		return
	}
	keyMessages, err := document.ValidateKeyMessages(req.KeyMessages)
	if err != nil {
		writeErr(w, err)
		return
	}
	content, ok := h.sourceContent(w, r, req.JobID, JobExtract, JobTemplate)
	if !ok {
		return
	}
	kind, ok := h.provider(w, req.Provider)
	if !ok {
		return
	}

	h.submit(w, r, JobSpeech, func(ctx context.Context, cancel <-chan struct{}) (*jobs.Result, error) {
		gen, err := h.usecases.GenerateSpeech(speech.WithHalt(ctx, cancel), content, keyMessages, kind)
		if err != nil {
			return nil, err
		}
		return generationResult(gen, content), nil
	})
}

func generationResult(gen *speech.Generation, content speech.SpeakerContent) *jobs.Result {
	return &jobs.Result{
		Prompt:   gen.Prompt,
		Text:     gen.Text,
		Provider: string(gen.Provider),
		Model:    gen.Model,
		Payload:  content,
	}
}

// provider parses the requested provider and checks it can be used.
func (h *SpeechHandler) provider(w http.ResponseWriter, raw string) (llm.Kind, bool) {
	kind, err := llm.ParseKind(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, kindInvalidInput, err.Error())
		return "", false
	}
	if _, _, err := h.providers.Resolve(kind); err != nil {
		writeErr(w, err)
		return "", false
	}
	return kind, true
}

// sourceContent loads the speaker content produced by an earlier job of the
// same session.
func (h *SpeechHandler) sourceContent(w http.ResponseWriter, r *http.Request, id string, types ...string) (speech.SpeakerContent, bool) {
	if id == "" {
		writeError(w, http.StatusBadRequest, kindInvalidInput, "job_id required")
		return speech.SpeakerContent{}, false
	}
	job, ok := ownedJob(w, r, h.runner, id)
	if !ok {
		return speech.SpeakerContent{}, false
	}

	allowed := false
	for _, t := range types {
		allowed = allowed || job.Type == t
	}
	if !allowed {
		writeError(w, http.StatusBadRequest, kindInvalidInput, "job "+id+" is a "+job.Type+" job")
		return speech.SpeakerContent{}, false
	}
	if job.State != jobs.StateSucceeded {
		writeError(w, http.StatusConflict, kindJobNotReady, "job "+id+" is "+string(job.State))
		return speech.SpeakerContent{}, false
	}

	content, ok := job.Result.Payload.(speech.SpeakerContent)
	if !ok || content.Empty() {
		writeError(w, http.StatusConflict, kindContentNotAvailable, "job "+id+" has no speaker content")
		return speech.SpeakerContent{}, false
	}
	return content, true
}

// submit takes the session lease and starts the job. The lease is returned by
// ReleaseLease once the job finishes.
func (h *SpeechHandler) submit(w http.ResponseWriter, r *http.Request, jobType string, work jobs.Work) {
	sid := auth.SessionFrom(r.Context())
	lease := uuid.NewString()

	if err := h.guard.Acquire(r.Context(), sid, lease); err != nil {
		if errors.Is(err, session.ErrBusy) {
			writeErr(w, err)
			return
		}
		slog.Error("session guard unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, kindUnavailable, "session guard unavailable")
		return
	}

	id, err := h.runner.SubmitLeased(sid, lease, jobType, work)
	if err != nil {
		if rerr := h.guard.Release(context.WithoutCancel(r.Context()), sid, lease); rerr != nil {
			slog.Warn("release session lease", "error", rerr)
		}
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": id})
}

// ReleaseLease returns a job OnFinish hook that frees the session lease the
// job was submitted under.
func ReleaseLease(guard session.Guard) func(jobs.Job) {
	return func(j jobs.Job) {
		if j.Lease == "" {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := guard.Release(ctx, j.Owner, j.Lease); err != nil {
			slog.Warn("release session lease", "job_id", j.ID, "error", err)
		}
	}
}
