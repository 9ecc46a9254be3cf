package translator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"idmltranslator/internal/models"
)

const (
	translatePath = "/api/translate"
	downloadPath  = "/api/download/"
	healthPath    = "/api/health"

	maxResponseBytes = 1 << 20
)

// ErrTranslationFailed is returned when the backend answers 2xx but does not
// report success.
var ErrTranslationFailed = errors.New("translation failed")

// APIError carries a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("translation service returned status %d", e.StatusCode)
}

// Artifact is a translated document streamed from the backend. Callers must
// close Body.
type Artifact struct {
	Name          string
	ContentType   string
	ContentLength int64
	Body          io.ReadCloser
}

// Client talks to the translation backend.
type Client struct {
	logger     *slog.Logger
	baseURL    string
	httpClient *http.Client
}

func NewClient(logger *slog.Logger, baseURL string, httpClient *http.Client) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		logger:     logger,
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
	}
}

// BaseURL returns the backend root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// DownloadPath returns the backend path serving artifact name of the given kind.
func DownloadPath(kind models.ArtifactKind, name string) string {
	return downloadPath + string(kind) + "/" + url.PathEscape(name)
}

// Translate uploads the file as multipart form data and waits for the result.
// The file is streamed; it is never buffered whole in memory.
func (c *Client) Translate(ctx context.Context, req models.TranslationRequest) (*models.TranslationResult, error) {
	if req.File.Open == nil {
		return nil, fmt.Errorf("file %q has no content", req.File.Name)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(mw, req))
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+translatePath, pr)
	if err != nil {
		_ = pr.Close()
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Info("translation requested", "file", req.File.Name, "size", req.File.Size, "target_lang", req.TargetLang, "api_key", req.APIKey != "")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("translation request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading translation response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeAPIError(resp.StatusCode, body)
		c.logger.Warn("translation rejected", "file", req.File.Name, "status", resp.StatusCode, "error", apiErr.Message)
		return nil, apiErr
	}

	var result models.TranslationResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: invalid response: %v", ErrTranslationFailed, err)
	}
	if !result.Success {
		return nil, ErrTranslationFailed
	}

	c.logger.Info("translation completed", "file", req.File.Name, "idml_file", result.IDMLFile, "word_file", result.WordFile)
	return &result, nil
}

func writeForm(mw *multipart.Writer, req models.TranslationRequest) error {
	part, err := mw.CreateFormFile("file", filepath.Base(req.File.Name))
	if err != nil {
		return fmt.Errorf("creating file part: %w", err)
	}

	src, err := req.File.Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", req.File.Name, err)
	}
	_, err = io.Copy(part, src)
	src.Close()
	if err != nil {
		return fmt.Errorf("writing file part: %w", err)
	}

	if err := mw.WriteField("target_lang", req.TargetLang); err != nil {
		return fmt.Errorf("writing target_lang: %w", err)
	}
	if req.APIKey != "" {
		if err := mw.WriteField("api_key", req.APIKey); err != nil {
			return fmt.Errorf("writing api_key: %w", err)
		}
	}
	return mw.Close()
}

func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var payload models.ErrorResponse
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Message = strings.TrimSpace(payload.Error)
	}
	return apiErr
}

// Download opens the artifact name of the given kind.
func (c *Client) Download(ctx context.Context, kind models.ArtifactKind, name string) (*Artifact, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown artifact kind %q", kind)
	}
	if name == "" || name != filepath.Base(name) {
		return nil, fmt.Errorf("invalid artifact name %q", name)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+DownloadPath(kind, name), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		return nil, decodeAPIError(resp.StatusCode, body)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType(kind)
	}
	return &Artifact{
		Name:          name,
		ContentType:   contentType,
		ContentLength: resp.ContentLength,
		Body:          resp.Body,
	}, nil
}

// DownloadTo saves the artifact into dir and returns the written path.
func (c *Client) DownloadTo(ctx context.Context, kind models.ArtifactKind, name, dir string) (string, error) {
	art, err := c.Download(ctx, kind, name)
	if err != nil {
		return "", err
	}
	defer art.Body.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	path := filepath.Join(dir, art.Name)
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := io.Copy(out, art.Body); err != nil {
		out.Close()
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", path, err)
	}

	c.logger.Info("artifact saved", "kind", kind, "path", path)
	return path, nil
}

// Health queries the backend health endpoint.
func (c *Client) Health(ctx context.Context) (*models.HealthStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("health request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading health response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp.StatusCode, body)
	}

	var status models.HealthStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("invalid health response: %w", err)
	}
	return &status, nil
}

func defaultContentType(kind models.ArtifactKind) string {
	if kind == models.ArtifactWord {
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	return "application/octet-stream"
}
