package handlers

import (
	"io"
	"os"
	"sync"
	"time"

	"idmltranslator/internal/form"
	"idmltranslator/internal/models"
)

// session is one browser form: its controller, the state the page renders
// and the upload backing the current selection.
type session struct {
	id         string
	controller *form.Controller
	view       *form.StateView

	mu         sync.Mutex
	uploadPath string
	targetLang string
	apiKey     string
	updatedAt  time.Time
}

func (s *session) touch() {
	s.mu.Lock()
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

func (s *session) lastUpdate() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

func (s *session) setOptions(targetLang, apiKey string) {
	s.mu.Lock()
	s.targetLang = targetLang
	s.apiKey = apiKey
	s.mu.Unlock()
}

func (s *session) options() form.Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return form.Options{TargetLang: s.targetLang, APIKey: s.apiKey}
}

func (s *session) language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetLang
}

// replaceUpload records path as the current upload and returns the previous one.
func (s *session) replaceUpload(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.uploadPath
	s.uploadPath = path
	return prev
}

func fileOnDisk(name, path string, size int64) models.SelectedFile {
	return models.SelectedFile{
		Name: name,
		Size: size,
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}
