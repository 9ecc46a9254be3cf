package form

import (
	"sync"

	"idmltranslator/internal/models"
)

// View is the rendering surface driven by a Controller. The controller calls
// it from one goroutine at a time.
type View interface {
	ShowFilePreview(name, size string)
	ShowDropzone()

	SetSubmitEnabled(enabled bool)
	SetSubmitLoading(loading bool)

	ShowProgress()
	UpdateProgress(stage models.ProgressStage)
	HideProgress()

	// ShowDownloads replaces any links shown before and hides the legacy
	// single download control.
	ShowDownloads(links []models.DownloadLink)
	HideDownloads()

	// ShowMessage replaces the current notification. HideMessage keeps the
	// text so it can be shown again.
	ShowMessage(text string, severity models.Severity)
	HideMessage()
}

// StateView records every View call into a models.ViewState. It is safe for
// concurrent readers; onChange, when set, receives a snapshot after each
// mutation.
type StateView struct {
	mu       sync.RWMutex
	state    models.ViewState
	onChange func(models.ViewState)
}

func NewStateView(sessionID string, onChange func(models.ViewState)) *StateView {
	return &StateView{
		state: models.ViewState{
			SessionID:       sessionID,
			DropzoneVisible: true,
		},
		onChange: onChange,
	}
}

// Snapshot returns a copy of the current state.
func (v *StateView) Snapshot() models.ViewState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return cloneState(v.state)
}

func cloneState(s models.ViewState) models.ViewState {
	s.Downloads = append([]models.DownloadLink(nil), s.Downloads...)
	return s
}

func (v *StateView) update(fn func(*models.ViewState)) {
	v.mu.Lock()
	fn(&v.state)
	snap := cloneState(v.state)
	v.mu.Unlock()

	if v.onChange != nil {
		v.onChange(snap)
	}
}

func (v *StateView) ShowFilePreview(name, size string) {
	v.update(func(s *models.ViewState) {
		s.FileName = name
		s.FileSize = size
		s.DropzoneVisible = false
		s.PreviewVisible = true
	})
}

func (v *StateView) ShowDropzone() {
	v.update(func(s *models.ViewState) {
		s.DropzoneVisible = true
		s.PreviewVisible = false
	})
}

func (v *StateView) SetSubmitEnabled(enabled bool) {
	v.update(func(s *models.ViewState) { s.SubmitEnabled = enabled })
}

func (v *StateView) SetSubmitLoading(loading bool) {
	v.update(func(s *models.ViewState) { s.SubmitLoading = loading })
}

func (v *StateView) ShowProgress() {
	v.update(func(s *models.ViewState) { s.ProgressVisible = true })
}

func (v *StateView) UpdateProgress(stage models.ProgressStage) {
	v.update(func(s *models.ViewState) {
		s.ProgressLabel = stage.Label
		s.ProgressPercent = stage.Percent
	})
}

func (v *StateView) HideProgress() {
	v.update(func(s *models.ViewState) { s.ProgressVisible = false })
}

func (v *StateView) ShowDownloads(links []models.DownloadLink) {
	v.update(func(s *models.ViewState) {
		s.Downloads = append([]models.DownloadLink(nil), links...)
		s.DownloadsVisible = true
		s.LegacyDownloadVisible = false
	})
}

func (v *StateView) HideDownloads() {
	v.update(func(s *models.ViewState) {
		s.DownloadsVisible = false
		s.LegacyDownloadVisible = false
	})
}

func (v *StateView) ShowMessage(text string, severity models.Severity) {
	v.update(func(s *models.ViewState) {
		s.Message = text
		s.MessageSeverity = severity
		s.MessageVisible = true
	})
}

func (v *StateView) HideMessage() {
	v.update(func(s *models.ViewState) { s.MessageVisible = false })
}
