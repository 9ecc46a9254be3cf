package main

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"idmltranslator/internal/config"
	"idmltranslator/internal/form"
	"idmltranslator/internal/models"
)

func newBackend(t *testing.T, translateBody string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/translate", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		if got := r.FormValue("target_lang"); got != "en" {
			t.Errorf("target_lang = %q, want en", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, translateBody)
	})
	mux.HandleFunc("/api/download/idml/doc_translated.idml", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "idml")
	})
	mux.HandleFunc("/api/download/word/doc_translated.docx", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "docx")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(server string) *config.Config {
	return &config.Config{
		BackendURL:        server,
		DefaultTargetLang: "ar",
		ProgressInterval:  time.Hour,
	}
}

func execute(t *testing.T, cfg *config.Config, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd(cfg)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTranslateSavesArtifacts(t *testing.T) {
	var hits atomic.Int32
	srv := newBackend(t, `{"success":true,"idml_file":"doc_translated.idml","word_file":"doc_translated.docx"}`, &hits)
	input := writeFile(t, "doc.idml", "content")
	outDir := t.TempDir()

	stdout, stderr, err := execute(t, testConfig(srv.URL), "translate", input, "--lang", "en", "--output-dir", outDir)
	if err != nil {
		t.Fatalf("translate: %v\nstderr: %s", err, stderr)
	}

	for _, want := range []string{
		"Download IDML File: " + srv.URL + "/api/download/idml/doc_translated.idml",
		"Download Word Document: " + srv.URL + "/api/download/word/doc_translated.docx",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
	if !strings.Contains(stderr, "[OK] "+form.MsgSuccess) {
		t.Errorf("stderr missing success message:\n%s", stderr)
	}

	for name, want := range map[string]string{"doc_translated.idml": "idml", "doc_translated.docx": "docx"} {
		data, err := os.ReadFile(filepath.Join(outDir, name))
		if err != nil {
			t.Errorf("artifact %s: %v", name, err)
			continue
		}
		if string(data) != want {
			t.Errorf("artifact %s = %q, want %q", name, data, want)
		}
	}
}

func TestTranslateRejectsWrongExtension(t *testing.T) {
	var hits atomic.Int32
	srv := newBackend(t, `{}`, &hits)
	input := writeFile(t, "doc.pdf", "content")

	_, stderr, err := execute(t, testConfig(srv.URL), "translate", input, "--lang", "en")
	if !errors.Is(err, errReported) {
		t.Fatalf("err = %v, want errReported", err)
	}
	if !strings.Contains(stderr, "[ERROR] "+form.MsgInvalidExtension) {
		t.Errorf("stderr = %q", stderr)
	}
	if hits.Load() != 0 {
		t.Errorf("backend called %d times", hits.Load())
	}
}

func TestTranslateReportsServiceFailure(t *testing.T) {
	var hits atomic.Int32
	srv := newBackend(t, `{"success":false}`, &hits)
	input := writeFile(t, "doc.idml", "content")

	stdout, stderr, err := execute(t, testConfig(srv.URL), "translate", input, "--lang", "en")
	if !errors.Is(err, errReported) {
		t.Fatalf("err = %v, want errReported", err)
	}
	if !strings.Contains(stderr, "[ERROR] "+form.MsgFailed) {
		t.Errorf("stderr = %q", stderr)
	}
	if stdout != "" {
		t.Errorf("links printed after failure: %q", stdout)
	}
}

func TestTranslateRejectsUnknownLanguage(t *testing.T) {
	input := writeFile(t, "doc.idml", "content")
	_, _, err := execute(t, testConfig("http://127.0.0.1:1"), "translate", input, "--lang", "fr")
	if err == nil || !strings.Contains(err.Error(), "unsupported language") {
		t.Errorf("err = %v", err)
	}
}

func TestDownloadCommand(t *testing.T) {
	var hits atomic.Int32
	srv := newBackend(t, `{}`, &hits)
	outDir := t.TempDir()

	stdout, _, err := execute(t, testConfig(srv.URL), "download", "word", "doc_translated.docx", "-o", outDir)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	want := filepath.Join(outDir, "doc_translated.docx")
	if strings.TrimSpace(stdout) != want {
		t.Errorf("stdout = %q, want %q", stdout, want)
	}

	if _, _, err := execute(t, testConfig(srv.URL), "download", "pdf", "x.pdf"); err == nil {
		t.Error("unknown kind accepted")
	}
}

func TestLanguagesCommand(t *testing.T) {
	stdout, _, err := execute(t, testConfig("http://127.0.0.1:1"), "languages")
	if err != nil {
		t.Fatal(err)
	}
	for _, l := range models.Languages {
		if !strings.Contains(stdout, l.Code+"\t"+l.Name) {
			t.Errorf("languages output missing %s", l.Code)
		}
	}
}

func TestTerminalView(t *testing.T) {
	var out, errOut bytes.Buffer
	v := newTerminalView(&out, &errOut, "http://svc")

	v.ShowProgress()
	v.UpdateProgress(models.ProgressStage{Label: "Translating text content...", Percent: 40})
	v.UpdateProgress(models.ProgressStage{Label: "Translating text content...", Percent: 40})
	v.ShowMessage("Invalid format", models.SeverityError)
	v.ShowDownloads([]models.DownloadLink{{Kind: models.ArtifactWord, Label: "Download Word Document", Href: "/api/download/word/a.docx"}})

	wantErr := "[ 40%] Translating text content...\n[ERROR] Invalid format\n"
	if errOut.String() != wantErr {
		t.Errorf("stderr = %q, want %q", errOut.String(), wantErr)
	}
	if out.String() != "Download Word Document: http://svc/api/download/word/a.docx\n" {
		t.Errorf("stdout = %q", out.String())
	}
}
