package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"videocreator/internal/domain"
)

// Download streams a completed task's video as an attachment.
func (a *App) Download(w http.ResponseWriter, r *http.Request) {
	a.serveResult(w, r, true)
}

// Preview streams a completed task's video inline for playback.
func (a *App) Preview(w http.ResponseWriter, r *http.Request) {
	a.serveResult(w, r, false)
}

func (a *App) serveResult(w http.ResponseWriter, r *http.Request, attachment bool) {
	taskID := chi.URLParam(r, "task_id")
	t, err := a.Manager.GetStatus(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "task not found")
			return
		}
		a.Logger.Error().Err(err).Str("task_id", taskID).Msg("download: load task failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load task")
		return
	}
	if t.State != domain.StateSucceeded || t.ResultRef == "" {
		a.error(w, http.StatusNotFound, "not_found", "video not ready")
		return
	}

	f, mime, _, err := a.Artifacts.Open(t.ResultRef)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "result file missing")
		return
	}
	defer f.Close()

	// ServeContent derives Content-Length from the seeker, including
	// partial lengths on Range requests.
	w.Header().Set("Content-Type", mime)
	if attachment {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", t.ResultRef))
	}
	http.ServeContent(w, r, t.ResultRef, t.CompletedAt, f)
}
