package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"videocreator/internal/domain"
)

type generateRequest struct {
	Mode      string `json:"mode"`
	Prompt    string `json:"prompt"`
	ImageRef  string `json:"image_ref"`
	VideoRef  string `json:"video_ref"`
	Ratio     string `json:"ratio"`
	Duration  int    `json:"duration"`
	Watermark bool   `json:"watermark"`
	Enhance   *bool  `json:"enhance"`
}

// Generate validates the request and registers a new task. The response
// returns as soon as the task exists; generation proceeds in the background.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Mode == "" {
		req.Mode = string(domain.ModeTextToVideo)
	}
	if req.Ratio == "" {
		req.Ratio = "16:9"
	}
	if req.Duration == 0 {
		req.Duration = domain.MinDuration
	}
	enhance := true
	if req.Enhance != nil {
		enhance = *req.Enhance
	}

	id, err := a.Manager.Create(r.Context(),
		domain.TaskMode(req.Mode),
		domain.TaskInput{Prompt: req.Prompt, ImageRef: req.ImageRef, VideoRef: req.VideoRef},
		domain.TaskParams{Ratio: req.Ratio, Duration: req.Duration, Watermark: req.Watermark, Enhance: enhance},
	)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidParameter) {
			a.error(w, http.StatusBadRequest, "invalid_parameter", err.Error())
			return
		}
		a.Logger.Error().Err(err).Msg("generate: create task failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create task")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"task_id": id, "state": string(domain.StatePending)})
}
