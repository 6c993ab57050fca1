package handlers

import (
	"errors"
	"io"
	"net/http"

	"videocreator/internal/domain"
	"videocreator/internal/storage"
)

// uploads are capped well above any reasonable source clip.
const maxUploadBytes = 256 << 20

// Upload accepts a multipart file plus a declared type ("image" or "video")
// and returns the asset reference to use in generation requests.
func (a *App) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart payload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "file field is required")
		return
	}
	defer file.Close()

	kind := storage.KindImage
	if r.FormValue("type") == "video" {
		kind = storage.KindVideo
	}

	data, err := io.ReadAll(file)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "failed to read file")
		return
	}

	ref, err := a.Artifacts.StoreUpload(data, kind, header.Filename)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedFormat) {
			a.error(w, http.StatusBadRequest, "unsupported_format", err.Error())
			return
		}
		a.Logger.Error().Err(err).Msg("upload: store failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to store upload")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"asset_ref": ref})
}
