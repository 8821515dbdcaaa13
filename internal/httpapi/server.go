// Package httpapi exposes the conversion service over HTTP: upload a
// document, poll the returned job id, download the finished audio.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/habsgoalie/text-to-audio-converter/internal/config"
	"github.com/habsgoalie/text-to-audio-converter/internal/eventstore"
	"github.com/habsgoalie/text-to-audio-converter/internal/jobs"
	"github.com/habsgoalie/text-to-audio-converter/internal/synth"
)

// Submitter is what the API needs from the pipeline.
type Submitter interface {
	Submit(uploadPath, originalName, voice string) (jobs.Job, error)
}

type Server struct {
	Cfg     config.Config
	Pipe    Submitter
	Tracker *jobs.Tracker
	Events  *eventstore.Store
	Ready   func() bool
	Log     *slog.Logger
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", s.handleReady)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/jobs", s.handleCreateJob)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Get("/jobs/{id}/download", s.handleDownload)
		r.Get("/jobs/{id}/events", s.handleJobEvents)
		r.Get("/voices", s.handleVoices)
	})

	return r
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.Ready != nil && !s.Ready() {
		writeErr(w, http.StatusServiceUnavailable, errors.New("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.Cfg.HTTP.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}

	file, header, err := r.FormFile("document")
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("missing 'document' file: %w", err))
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	switch ext {
	case ".epub", ".pdf":
	default:
		writeErr(w, http.StatusUnsupportedMediaType, fmt.Errorf("unsupported document type %q, expected .epub or .pdf", ext))
		return
	}

	voice := strings.TrimSpace(r.FormValue("voice"))
	if voice != "" && !synth.ValidVoice(voice) {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("unknown voice %q", voice))
		return
	}

	uploadPath, err := s.saveUpload(file, ext)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, fmt.Errorf("store upload: %w", err))
		return
	}

	job, err := s.Pipe.Submit(uploadPath, header.Filename, voice)
	if err != nil {
		_ = os.Remove(uploadPath)
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	s.Log.Info("upload accepted",
		slog.String("job_id", job.ID),
		slog.String("filename", header.Filename),
		slog.Int64("bytes", header.Size))

	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) saveUpload(file io.Reader, ext string) (string, error) {
	if err := os.MkdirAll(s.Cfg.Storage.UploadDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.Cfg.Storage.UploadDir, uuid.NewString()+ext)
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(path)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := s.Tracker.Get(id)
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	all := s.Tracker.List()

	if raw := strings.TrimSpace(r.URL.Query().Get("state")); raw != "" {
		state := jobs.State(raw)
		switch state {
		case jobs.StateQueued, jobs.StateProcessing, jobs.StateComplete, jobs.StateError:
		default:
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid state: %s", raw))
			return
		}
		filtered := all[:0]
		for _, job := range all {
			if job.State == state {
				filtered = append(filtered, job)
			}
		}
		all = filtered
	}

	writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := s.Tracker.Get(id)
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	if job.State != jobs.StateComplete {
		writeErr(w, http.StatusConflict, fmt.Errorf("job is %s, result not available", job.State))
		return
	}

	f, err := os.Open(job.ResultPath)
	if err != nil {
		writeErr(w, http.StatusNotFound, errors.New("result file missing"))
		return
	}
	defer f.Close()

	contentType := "audio/mpeg"
	if strings.EqualFold(filepath.Ext(job.OutputFilename), ".wav") {
		contentType = "audio/wav"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+job.OutputFilename+`"`)
	if info, err := f.Stat(); err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}
	_, _ = io.Copy(w, f)
}

func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.Tracker.Get(id); err != nil {
		// The tracker may have evicted a finished job while its timeline is
		// still in the event log, so only a missing timeline is a 404.
		if events, evErr := s.Events.ListJobEvents(r.Context(), id, 200); evErr == nil && len(events) > 0 {
			writeJSON(w, http.StatusOK, eventsResponse(events))
			return
		}
		writeErr(w, http.StatusNotFound, err)
		return
	}

	events, err := s.Events.ListJobEvents(r.Context(), id, 200)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, eventsResponse(events))
}

func eventsResponse(events []eventstore.Event) []map[string]any {
	resp := make([]map[string]any, 0, len(events))
	for _, e := range events {
		entry := map[string]any{
			"type":      e.Type,
			"state":     e.State,
			"stage":     e.Stage,
			"createdAt": e.CreatedAt,
		}
		if e.Detail != "" {
			entry["detail"] = e.Detail
		}
		if e.TotalChunks > 0 {
			entry["chunk"] = e.Chunk
			entry["totalChunks"] = e.TotalChunks
		}
		resp = append(resp, entry)
	}
	return resp
}

func (s *Server) handleVoices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"default": s.Cfg.Synth.DefaultVoice,
		"voices":  synth.Voices(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{"error": err.Error()})
}
