package httpapi

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"videocreator/internal/http/handlers"
	"videocreator/internal/infra"
	"videocreator/internal/middleware"
)

// NewRouter wires the request surface. staticDir, when it exists, is served
// at the root so the bundled front end can talk to the API same-origin.
func NewRouter(app *handlers.App, logger infra.Logger, staticDir string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer, middleware.Logger(logger))

	r.Get("/healthz", app.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", app.Upload)
		r.Post("/generate", app.Generate)
		r.Get("/status/{task_id}", app.Status)
		r.Get("/download/{task_id}", app.Download)
		r.Get("/preview/{task_id}", app.Preview)
		r.Get("/tasks", app.ListTasks)
	})

	if staticDir != "" {
		if info, err := os.Stat(staticDir); err == nil && info.IsDir() {
			r.Handle("/*", http.FileServer(http.Dir(staticDir)))
		}
	}

	return r
}
