package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nikhilbhutani/speechwriter/internal/document"
	"github.com/nikhilbhutani/speechwriter/internal/jobs"
	"github.com/nikhilbhutani/speechwriter/internal/llm"
	"github.com/nikhilbhutani/speechwriter/internal/session"
	"github.com/nikhilbhutani/speechwriter/internal/speech"
)

// Error kinds raised by the HTTP layer itself.
const (
	kindInvalidInput        = "InvalidInput"
	kindJobNotFound         = "JobNotFound"
	kindJobNotReady         = "JobNotReady"
	kindJobActive           = "JobActive"
	kindSessionBusy         = "SessionBusy"
	kindContentNotAvailable = "ContentNotAvailable"
	kindUnavailable         = "ServiceUnavailable"
	kindInternal            = "InternalError"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Kind: kind})
}

// writeErr maps a domain error onto a status code and error body.
func writeErr(w http.ResponseWriter, err error) {
	var (
		docErr    *document.Error
		speechErr *speech.Error
	)
	switch {
	case errors.As(err, &docErr):
		writeError(w, http.StatusBadRequest, string(docErr.Kind), docErr.Error())
	case errors.As(err, &speechErr):
		writeError(w, speechStatus(speechErr.Kind), string(speechErr.Kind), speechErr.Error())
	case errors.Is(err, llm.ErrNoProviderConfigured):
		writeError(w, http.StatusServiceUnavailable, string(speech.KindNoProviderConfigured), err.Error())
	case errors.Is(err, llm.ErrNoProviderAvailable):
		writeError(w, http.StatusServiceUnavailable, string(speech.KindNoProviderAvailable), err.Error())
	case errors.Is(err, jobs.ErrJobNotFound):
		writeError(w, http.StatusNotFound, kindJobNotFound, err.Error())
	case errors.Is(err, jobs.ErrJobActive):
		writeError(w, http.StatusConflict, kindJobActive, err.Error())
	case errors.Is(err, session.ErrBusy):
		writeError(w, http.StatusConflict, kindSessionBusy, err.Error())
	case errors.Is(err, jobs.ErrRunnerClosed):
		writeError(w, http.StatusServiceUnavailable, kindUnavailable, err.Error())
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, kindInternal, "internal error")
	}
}

func speechStatus(kind speech.Kind) int {
	switch kind {
	case speech.KindNoProviderAvailable, speech.KindNoProviderConfigured:
		return http.StatusServiceUnavailable
	case speech.KindExtractionFailed, speech.KindGenerationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}
