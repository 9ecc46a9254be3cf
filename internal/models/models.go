package models

import "io"

// Severity selects how a notification is styled.
type Severity string

const (
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
)

// ArtifactKind identifies one of the two documents produced by the backend.
type ArtifactKind string

const (
	ArtifactIDML ArtifactKind = "idml"
	ArtifactWord ArtifactKind = "word"
)

// Valid reports whether k is a kind the backend can serve.
func (k ArtifactKind) Valid() bool {
	return k == ArtifactIDML || k == ArtifactWord
}

// SelectedFile is the document the user picked for translation.
type SelectedFile struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// TranslationRequest is built at submit time and lives for one HTTP call.
type TranslationRequest struct {
	File       SelectedFile
	TargetLang string
	APIKey     string
}

// TranslationResult is the backend's success payload.
type TranslationResult struct {
	Success  bool   `json:"success"`
	IDMLFile string `json:"idml_file"`
	WordFile string `json:"word_file"`
}

// ErrorResponse is the backend's payload for non-2xx responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthStatus is returned by the backend health endpoint.
type HealthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// ProgressStage is one checkpoint of the cosmetic progress sequence.
type ProgressStage struct {
	Label   string `json:"label"`
	Percent int    `json:"percent"`
}

// DownloadLink points at one translated artifact.
type DownloadLink struct {
	Kind  ArtifactKind `json:"kind"`
	Label string       `json:"label"`
	Href  string       `json:"href"`
}

// ViewState is a snapshot of everything the form shows. It is also the
// payload pushed to browsers over WebSocket.
type ViewState struct {
	SessionID string `json:"session_id,omitempty"`

	DropzoneVisible bool   `json:"dropzone_visible"`
	PreviewVisible  bool   `json:"preview_visible"`
	FileName        string `json:"file_name,omitempty"`
	FileSize        string `json:"file_size,omitempty"`

	SubmitEnabled bool `json:"submit_enabled"`
	SubmitLoading bool `json:"submit_loading"`

	ProgressVisible bool   `json:"progress_visible"`
	ProgressLabel   string `json:"progress_label,omitempty"`
	ProgressPercent int    `json:"progress_percent"`

	MessageVisible  bool     `json:"message_visible"`
	Message         string   `json:"message,omitempty"`
	MessageSeverity Severity `json:"message_severity,omitempty"`

	DownloadsVisible      bool           `json:"downloads_visible"`
	Downloads             []DownloadLink `json:"downloads,omitempty"`
	LegacyDownloadVisible bool           `json:"legacy_download_visible"`
}

// Language is a supported translation target.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Languages lists the targets the backend accepts. The first entry is the
// default.
var Languages = []Language{
	{Code: "ar", Name: "Arabic (العربية)"},
	{Code: "en", Name: "English"},
}

// IsSupportedLanguage reports whether code names an entry of Languages.
func IsSupportedLanguage(code string) bool {
	for _, l := range Languages {
		if l.Code == code {
			return true
		}
	}
	return false
}
