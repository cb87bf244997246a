package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rentfolio/rentroll/internal/logging"
	"github.com/rentfolio/rentroll/internal/rentroll"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCreateImport opens a new import session from a multipart file upload.
// On success the session is already in the mapping stage, with auto-mapped
// defaults and per-field suggestions in the response.
func (s *Server) handleCreateImport(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		writeError(w, r, http.StatusBadRequest, "file too large or invalid form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to read file")
		return
	}

	view, err := s.service.Create(header.Filename, data)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, view)
}

// handleGetImport returns the session's current stage snapshot.
func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.View(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleSetMapping replaces the session's column mapping.
func (s *Server) handleSetMapping(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Mapping rentroll.Mapping `json:"mapping"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid mapping body")
		return
	}

	view, err := s.service.SetMapping(chi.URLParam(r, "sessionID"), payload.Mapping)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handlePreview validates all rows under the current mapping and advances
// the session to the preview stage.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.Preview(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleBack moves the session one stage backward.
func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.Back(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleExecute starts importing the session's valid candidates in the
// background. The client follows along via /progress and fetches the final
// counts from /result.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := s.service.Execute(r.Context(), sessionID); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": sessionID, "status": "importing"})
}

// handleCancel stops an executing import between rows.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := s.service.Cancel(sessionID); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": sessionID, "status": "cancelling"})
}

// handleProgress streams import progress via Server-Sent Events. Supports
// resumption via the lastEventId query parameter on reconnect.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	// The event ID is the progress percentage, so a reconnecting client can
	// skip events it already rendered.
	lastEventIDStr := r.URL.Query().Get("lastEventId")
	var lastEventID int
	if lastEventIDStr != "" {
		lastEventID, _ = strconv.Atoi(lastEventIDStr)
	}

	progressCh, err := s.service.SubscribeProgress(sessionID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// ResponseController reaches the Flusher through middleware wrappers.
	rc := http.NewResponseController(w)

	logger := logging.FromContext(r.Context()).With("session_id", sessionID)
	logger.Debug("progress stream opened")

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				rc.Flush()
				return
			}

			percent := progress.Percent()
			if lastEventIDStr != "" && percent <= lastEventID {
				continue
			}

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", percent, data)
			if err := rc.Flush(); err != nil {
				logger.Debug("progress stream flush failed", "error", err)
				return
			}

		case <-r.Context().Done():
			logger.Debug("progress stream client disconnected")
			return
		}
	}
}

// handleResult blocks until execution finishes and returns the final counts
// and per-row outcomes.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.Result(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleListRuns returns import history, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// handleGetRun returns one import run.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleRollbackRun deletes every record a run created and marks the run
// rolled back.
func (s *Server) handleRollbackRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	result, err := s.runs.RollbackRun(r.Context(), runID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("import run rolled back",
		"run_id", runID,
		"leases_deleted", result.LeasesDeleted,
		"tenants_deleted", result.TenantsDeleted,
	)
	writeJSON(w, http.StatusOK, result)
}
