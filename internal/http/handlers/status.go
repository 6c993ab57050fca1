package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"videocreator/internal/domain"
)

// Status returns the latest snapshot of one task.
func (a *App) Status(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	t, err := a.Manager.GetStatus(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "task not found")
			return
		}
		a.Logger.Error().Err(err).Str("task_id", taskID).Msg("status: load failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load task")
		return
	}
	a.json(w, http.StatusOK, t)
}

// ListTasks returns snapshots of all known tasks, newest first.
func (a *App) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := a.Manager.List(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("status: list failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list tasks")
		return
	}
	if tasks == nil {
		tasks = []*domain.Task{}
	}
	a.json(w, http.StatusOK, map[string]any{"items": tasks})
}
