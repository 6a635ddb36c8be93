package handlers

import (
	"fmt"
	"mime"
	"net/http"
	"strings"
	"unicode"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/speechwriter/internal/auth"
	"github.com/nikhilbhutani/speechwriter/internal/jobs"
	"github.com/nikhilbhutani/speechwriter/internal/speech"
)

type JobHandler struct {
	runner *jobs.Runner
}

func NewJobHandler(runner *jobs.Runner) *JobHandler {
	return &JobHandler{runner: runner}
}

type jobView struct {
	jobs.Job
	Speaker string `json:"speaker,omitempty"`
}

func viewOf(j jobs.Job) jobView {
	v := jobView{Job: j}
	if j.Result != nil {
		if c, ok := j.Result.Payload.(speech.SpeakerContent); ok {
			v.Speaker = c.Speaker
		}
	}
	return v
}

func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, ok := ownedJob(w, r, h.runner, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(job))
}

func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	job, ok := ownedJob(w, r, h.runner, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	job, err := h.runner.Cancel(job.ID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(job))
}

// Delete drops a finished job and everything it produced.
func (h *JobHandler) Delete(w http.ResponseWriter, r *http.Request) {
	job, ok := ownedJob(w, r, h.runner, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if err := h.runner.Release(job.ID); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Export streams one part of a finished job as a plain-text attachment.
func (h *JobHandler) Export(w http.ResponseWriter, r *http.Request) {
	job, ok := ownedJob(w, r, h.runner, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	part := r.URL.Query().Get("part")
	if part == "" {
		part = "result"
	}
	if part != "result" && part != "prompt" && part != "remarks" {
		writeError(w, http.StatusBadRequest, kindInvalidInput, "part must be result, prompt or remarks")
		return
	}
	if job.State != jobs.StateSucceeded || job.Result == nil {
		writeError(w, http.StatusNotFound, kindContentNotAvailable, "content not available")
		return
	}

	content, _ := job.Result.Payload.(speech.SpeakerContent)
	doc, ok := exportDocument(job, content, part)
	if !ok {
		writeError(w, http.StatusNotFound, kindContentNotAvailable, "content not available")
		return
	}

	filename := fileSafe(content.Speaker) + "_" + doc.suffix + ".txt"
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "%s\nSpeaker: %s\n%s\n\n%s", doc.title, content.Speaker, strings.Repeat("=", 60), doc.body)
}

type exported struct {
	title  string
	suffix string
	body   string
}

func exportDocument(job jobs.Job, content speech.SpeakerContent, part string) (exported, bool) {
	var doc exported
	switch part {
	case "prompt":
		doc = exported{"LLM PROMPT", "prompt", job.Result.Prompt}
	case "remarks":
		doc = exported{"PREPARED REMARKS", "remarks", content.Text()}
	default:
		switch job.Type {
		case JobTemplate:
			doc = exported{"SPEECH TEMPLATE", "template", job.Result.Text}
		case JobSpeech:
			doc = exported{"CUSTOM SPEECH", "speech", job.Result.Text}
		default:
			doc = exported{"PREPARED REMARKS", "remarks", job.Result.Text}
		}
	}
	return doc, strings.TrimSpace(doc.body) != ""
}

// fileSafe keeps letters, digits, '-' and '_' and turns everything else into '_'.
func fileSafe(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Speaker"
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, name)
}

// ownedJob fetches a job belonging to the caller's session. Jobs of other
// sessions are reported as not found.
func ownedJob(w http.ResponseWriter, r *http.Request, runner *jobs.Runner, id string) (jobs.Job, bool) {
	job, err := runner.Status(id)
	if err != nil || job.Owner != auth.SessionFrom(r.Context()) {
		writeError(w, http.StatusNotFound, kindJobNotFound, "job not found")
		return jobs.Job{}, false
	}
	return job, true
}
