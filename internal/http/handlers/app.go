package handlers

import (
	"encoding/json"
	"net/http"

	"videocreator/internal/infra"
	"videocreator/internal/storage"
	"videocreator/internal/task"
)

// App bundles the dependencies the request surface needs. Handlers stay
// thin: they translate HTTP to manager/store calls and back.
type App struct {
	Manager   *task.Manager
	Artifacts *storage.Store
	Logger    infra.Logger
}

func NewApp(manager *task.Manager, artifacts *storage.Store, logger infra.Logger) *App {
	return &App{Manager: manager, Artifacts: artifacts, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, map[string]string{"error": kind, "message": message})
}
