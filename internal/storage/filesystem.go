package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"videocreator/internal/domain"
)

// UploadKind distinguishes the two accepted upload categories.
type UploadKind string

const (
	KindImage UploadKind = "image"
	KindVideo UploadKind = "video"
)

var allowedImageExts = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

var allowedVideoExts = map[string]string{
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
}

// Store persists uploaded assets and generated results on the local
// filesystem. Uploads live under uploads/, results under videos/; both are
// keyed uniquely so concurrent writers never collide. Retention of either
// is an operational concern handled outside this process.
type Store struct {
	basePath   string
	httpClient *http.Client
}

// NewStore initializes a Store rooted at basePath.
func NewStore(basePath string, httpClient *http.Client) (*Store, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(filepath.Join(basePath, "uploads"), 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure uploads dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(basePath, "videos"), 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure videos dir: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Store{basePath: basePath, httpClient: httpClient}, nil
}

// BasePath returns the configured root directory.
func (s *Store) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// StoreUpload validates and persists a user-supplied file, returning the
// asset reference callers pass back in generation requests.
func (s *Store) StoreUpload(data []byte, kind UploadKind, filename string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file", domain.ErrUnsupportedFormat)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	allowed := allowedImageExts
	if kind == KindVideo {
		allowed = allowedVideoExts
	}
	if _, ok := allowed[ext]; !ok {
		return "", fmt.Errorf("%w: extension %q for %s upload", domain.ErrUnsupportedFormat, ext, kind)
	}
	ref := uuid.NewString()[:8] + ext
	path := filepath.Join(s.basePath, "uploads", ref)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write upload: %w", err)
	}
	return ref, nil
}

// ResolveUpload returns the bytes and mime type of a previously stored
// upload, or domain.ErrNotFound when the reference is unknown.
func (s *Store) ResolveUpload(ref string) ([]byte, string, error) {
	clean, err := sanitizeKey(ref)
	if err != nil {
		return nil, "", domain.ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(s.basePath, "uploads", clean))
	if err != nil {
		return nil, "", domain.ErrNotFound
	}
	return data, mimeForExt(filepath.Ext(clean)), nil
}

// HasUpload reports whether an asset reference resolves to a stored file.
func (s *Store) HasUpload(ref string) bool {
	clean, err := sanitizeKey(ref)
	if err != nil {
		return false
	}
	_, statErr := os.Stat(filepath.Join(s.basePath, "uploads", clean))
	return statErr == nil
}

// StoreResult downloads the remote artifact into durable local storage keyed
// by the task id, so a task's result survives remote-side expiry. It returns
// the result reference served by Open.
func (s *Store) StoreResult(ctx context.Context, taskID, sourceURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("storage: create download request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("storage: download result: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("storage: download result: status %d", resp.StatusCode)
	}

	ext := resultExtension(resp.Header.Get("Content-Type"), sourceURL)
	ref := fmt.Sprintf("video_%s%s", taskID, ext)
	path := filepath.Join(s.basePath, "videos", ref)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("storage: create result file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("storage: write result file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("storage: close result file: %w", err)
	}
	return ref, nil
}

// Open returns a reader over a stored result along with its mime type and
// size, or domain.ErrNotFound.
func (s *Store) Open(ref string) (io.ReadSeekCloser, string, int64, error) {
	clean, err := sanitizeKey(ref)
	if err != nil {
		return nil, "", 0, domain.ErrNotFound
	}
	path := filepath.Join(s.basePath, "videos", clean)
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", 0, domain.ErrNotFound
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", 0, domain.ErrNotFound
	}
	return f, mimeForExt(filepath.Ext(clean)), info.Size(), nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || strings.HasPrefix(cleaned, "../") || strings.Contains(cleaned, "/") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}

func resultExtension(contentType, sourceURL string) string {
	switch {
	case strings.Contains(contentType, "webm") || strings.HasSuffix(sourceURL, ".webm"):
		return ".webm"
	default:
		return ".mp4"
	}
}

func mimeForExt(ext string) string {
	ext = strings.ToLower(ext)
	if m, ok := allowedImageExts[ext]; ok {
		return m
	}
	if m, ok := allowedVideoExts[ext]; ok {
		return m
	}
	return "application/octet-stream"
}
