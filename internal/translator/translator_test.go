package translator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"idmltranslator/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func memFile(name, content string) models.SelectedFile {
	return models.SelectedFile{
		Name: name,
		Size: int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

type capturedForm struct {
	fileName   string
	content    string
	targetLang string
	apiKey     string
	hasAPIKey  bool
}

func newBackend(t *testing.T, got *capturedForm, status int, body string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/translate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
		} else {
			data, _ := io.ReadAll(file)
			file.Close()
			got.fileName = header.Filename
			got.content = string(data)
		}
		got.targetLang = r.FormValue("target_lang")
		_, got.hasAPIKey = r.MultipartForm.Value["api_key"]
		got.apiKey = r.FormValue("api_key")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestTranslateSuccess(t *testing.T) {
	var got capturedForm
	srv := newBackend(t, &got, http.StatusOK, `{"success":true,"idml_file":"brochure_ar.idml","word_file":"brochure_ar.docx"}`)
	client := NewClient(testLogger(), srv.URL+"/", srv.Client())

	result, err := client.Translate(context.Background(), models.TranslationRequest{
		File:       memFile("brochure.idml", "PK-content"),
		TargetLang: "ar",
		APIKey:     "secret",
	})
	if err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if result.IDMLFile != "brochure_ar.idml" || result.WordFile != "brochure_ar.docx" {
		t.Errorf("unexpected result %+v", result)
	}
	if got.fileName != "brochure.idml" || got.content != "PK-content" {
		t.Errorf("backend received file %q with %q", got.fileName, got.content)
	}
	if got.targetLang != "ar" {
		t.Errorf("target_lang = %q, want ar", got.targetLang)
	}
	if !got.hasAPIKey || got.apiKey != "secret" {
		t.Errorf("api_key = %q (present %v), want secret", got.apiKey, got.hasAPIKey)
	}
}

func TestTranslateOmitsEmptyAPIKey(t *testing.T) {
	var got capturedForm
	srv := newBackend(t, &got, http.StatusOK, `{"success":true,"idml_file":"a.idml","word_file":"a.docx"}`)
	client := NewClient(testLogger(), srv.URL, srv.Client())

	if _, err := client.Translate(context.Background(), models.TranslationRequest{
		File:       memFile("a.idml", "x"),
		TargetLang: "en",
	}); err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if got.hasAPIKey {
		t.Errorf("api_key field sent although empty")
	}
}

func TestTranslateFailures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
		wantFailed bool
	}{
		{name: "server error message", status: http.StatusBadRequest, body: `{"error": "Invalid format"}`, wantStatus: http.StatusBadRequest, wantMsg: "Invalid format"},
		{name: "non json error", status: http.StatusInternalServerError, body: `boom`, wantStatus: http.StatusInternalServerError},
		{name: "success false", status: http.StatusOK, body: `{"success":false}`, wantFailed: true},
		{name: "success missing", status: http.StatusOK, body: `{"idml_file":"a.idml"}`, wantFailed: true},
		{name: "invalid json", status: http.StatusOK, body: `not json`, wantFailed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got capturedForm
			srv := newBackend(t, &got, tt.status, tt.body)
			client := NewClient(testLogger(), srv.URL, srv.Client())

			result, err := client.Translate(context.Background(), models.TranslationRequest{File: memFile("a.idml", "x"), TargetLang: "ar"})
			if err == nil {
				t.Fatalf("expected error, got result %+v", result)
			}
			if tt.wantFailed {
				if !errors.Is(err, ErrTranslationFailed) {
					t.Errorf("error = %v, want ErrTranslationFailed", err)
				}
				return
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %T %v, want *APIError", err, err)
			}
			if apiErr.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", apiErr.StatusCode, tt.wantStatus)
			}
			if apiErr.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", apiErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestTranslateOpenError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(testLogger(), srv.URL, srv.Client())
	file := models.SelectedFile{
		Name: "a.idml",
		Open: func() (io.ReadCloser, error) { return nil, os.ErrNotExist },
	}
	if _, err := client.Translate(context.Background(), models.TranslationRequest{File: file}); err == nil {
		t.Fatal("expected error when the file cannot be opened")
	}
}

func TestDownloadPath(t *testing.T) {
	tests := []struct {
		kind models.ArtifactKind
		name string
		want string
	}{
		{models.ArtifactIDML, "brochure_ar.idml", "/api/download/idml/brochure_ar.idml"},
		{models.ArtifactWord, "brochure_ar.docx", "/api/download/word/brochure_ar.docx"},
		{models.ArtifactWord, "my file.docx", "/api/download/word/my%20file.docx"},
	}
	for _, tt := range tests {
		if got := DownloadPath(tt.kind, tt.name); got != tt.want {
			t.Errorf("DownloadPath(%s, %q) = %q, want %q", tt.kind, tt.name, got, tt.want)
		}
	}
}

func newDownloadBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/download/word/report.docx", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
		_, _ = io.WriteString(w, "docx-bytes")
	})
	mux.HandleFunc("/api/download/idml/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"File not found"}`)
	})
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"healthy","service":"IDML Arabic Translator"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDownload(t *testing.T) {
	srv := newDownloadBackend(t)
	client := NewClient(testLogger(), srv.URL, srv.Client())

	art, err := client.Download(context.Background(), models.ArtifactWord, "report.docx")
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	defer art.Body.Close()
	data, _ := io.ReadAll(art.Body)
	if string(data) != "docx-bytes" {
		t.Errorf("body = %q", data)
	}
	if !strings.HasPrefix(art.ContentType, "application/vnd.openxmlformats") {
		t.Errorf("content type = %q", art.ContentType)
	}

	_, err = client.Download(context.Background(), models.ArtifactIDML, "missing.idml")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound || apiErr.Message != "File not found" {
		t.Errorf("Download missing = %v, want 404 File not found", err)
	}
}

func TestDownloadRejectsBadInput(t *testing.T) {
	client := NewClient(testLogger(), "http://127.0.0.1:1", nil)
	if _, err := client.Download(context.Background(), models.ArtifactKind("pdf"), "a.pdf"); err == nil {
		t.Error("expected error for unknown kind")
	}
	if _, err := client.Download(context.Background(), models.ArtifactIDML, "../etc/passwd"); err == nil {
		t.Error("expected error for path traversal name")
	}
}

func TestDownloadTo(t *testing.T) {
	srv := newDownloadBackend(t)
	client := NewClient(testLogger(), srv.URL, srv.Client())
	dir := filepath.Join(t.TempDir(), "out")

	path, err := client.DownloadTo(context.Background(), models.ArtifactWord, "report.docx", dir)
	if err != nil {
		t.Fatalf("DownloadTo returned error: %v", err)
	}
	if path != filepath.Join(dir, "report.docx") {
		t.Errorf("path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading saved artifact: %v", err)
	}
	if string(data) != "docx-bytes" {
		t.Errorf("saved content = %q", data)
	}
}

func TestHealth(t *testing.T) {
	srv := newDownloadBackend(t)
	client := NewClient(testLogger(), srv.URL, srv.Client())

	status, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health returned error: %v", err)
	}
	if status.Status != "healthy" {
		t.Errorf("status = %q, want healthy", status.Status)
	}
}
