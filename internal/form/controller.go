package form

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"idmltranslator/internal/models"
	"idmltranslator/internal/progress"
	"idmltranslator/internal/translator"
)

const (
	// MaxFileSize is the largest document accepted for translation.
	MaxFileSize = 50 * 1024 * 1024
	// Extension is the only accepted document suffix, compared case-insensitively.
	Extension = ".idml"
)

// User-facing messages.
const (
	MsgInvalidExtension = "Please select a valid IDML file"
	MsgFileTooLarge     = "File size exceeds 50MB limit"
	MsgNoFile           = "Please select an IDML file"
	MsgFailed           = "Translation failed"
	MsgRetry            = "Translation failed. Please try again."
	MsgSuccess          = "Translation completed successfully! Download your files below."
)

var (
	ErrInvalidExtension = errors.New("file is not an IDML document")
	ErrFileTooLarge     = errors.New("file exceeds the 50MB limit")
	ErrNoFile           = errors.New("no file selected")
	ErrSubmitInProgress = errors.New("a translation is already in progress")
)

// Translator performs one translation round trip.
type Translator interface {
	Translate(ctx context.Context, req models.TranslationRequest) (*models.TranslationResult, error)
}

// Options are the form fields sent along with the file.
type Options struct {
	TargetLang string
	APIKey     string
}

// Controller owns the form state for one session: the selected file and
// whether a submission is in flight.
type Controller struct {
	logger     *slog.Logger
	view       View
	translator Translator
	sequencer  *progress.Sequencer

	mu         sync.Mutex
	selected   *models.SelectedFile
	submitting bool
}

func NewController(logger *slog.Logger, view View, tr Translator, sequencer *progress.Sequencer) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if sequencer == nil {
		sequencer = progress.NewSequencer(progress.DefaultInterval)
	}
	c := &Controller{
		logger:     logger,
		view:       view,
		translator: tr,
		sequencer:  sequencer,
	}
	c.mu.Lock()
	c.validate()
	c.mu.Unlock()
	return c
}

// CheckFile applies the extension and size rules without touching any state.
func CheckFile(name string, size int64) error {
	if !strings.HasSuffix(strings.ToLower(name), Extension) {
		return ErrInvalidExtension
	}
	if size > MaxFileSize {
		return ErrFileTooLarge
	}
	return nil
}

// SelectFile validates file and, when it passes, makes it the selection.
// A rejected file leaves the previous selection untouched.
func (c *Controller) SelectFile(file models.SelectedFile) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := CheckFile(file.Name, file.Size); err != nil {
		msg := MsgInvalidExtension
		if errors.Is(err, ErrFileTooLarge) {
			msg = MsgFileTooLarge
		}
		c.view.ShowMessage(msg, models.SeverityError)
		c.logger.Info("file rejected", "file", file.Name, "size", file.Size, "error", err)
		return err
	}

	c.selected = &file
	c.view.ShowFilePreview(file.Name, FormatFileSize(file.Size))
	c.validate()
	c.view.HideMessage()
	c.logger.Info("file selected", "file", file.Name, "size", file.Size)
	return nil
}

// RemoveFile clears the selection and resets the result panels.
func (c *Controller) RemoveFile() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.selected = nil
	c.view.ShowDropzone()
	c.validate()
	c.view.HideProgress()
	c.view.HideDownloads()
}

// Validate re-evaluates whether the submit action is available. Callers
// invoke it after the form options change.
func (c *Controller) Validate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.validate()
}

func (c *Controller) validate() {
	c.view.SetSubmitEnabled(c.selected != nil && !c.submitting)
}

// Selected returns the current selection.
func (c *Controller) Selected() (models.SelectedFile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return models.SelectedFile{}, false
	}
	return *c.selected, true
}

// Submitting reports whether a translation is in flight.
func (c *Controller) Submitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

// Submit sends the selected file for translation and renders the outcome.
// The submit control is released on every exit path.
func (c *Controller) Submit(ctx context.Context, opts Options) (*models.TranslationResult, error) {
	run, err := c.Begin(opts)
	if err != nil {
		return nil, err
	}
	return run(ctx)
}

// Begin acquires the submitting state synchronously and returns the pending
// translation, which must be called exactly once. It fails with ErrNoFile or
// ErrSubmitInProgress without touching the translator.
func (c *Controller) Begin(opts Options) (func(context.Context) (*models.TranslationResult, error), error) {
	req, err := c.begin(opts)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (*models.TranslationResult, error) {
		return c.run(ctx, req)
	}, nil
}

func (c *Controller) run(ctx context.Context, req models.TranslationRequest) (*models.TranslationResult, error) {
	seq := c.sequencer.Start(ctx, c.advance)
	defer c.release(seq)

	result, err := c.translate(ctx, req)
	// no cosmetic tick may land after the outcome is rendered
	seq.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.logger.Warn("translation failed", "file", req.File.Name, "target_lang", req.TargetLang, "error", err)
		c.view.ShowMessage(failureMessage(err), models.SeverityError)
		c.view.HideProgress()
		return nil, err
	}

	c.view.ShowDownloads(DownloadLinks(result.IDMLFile, result.WordFile))
	c.view.UpdateProgress(progress.Complete)
	c.view.ShowMessage(MsgSuccess, models.SeveritySuccess)
	return result, nil
}

// begin acquires the submitting state.
func (c *Controller) begin(opts Options) (models.TranslationRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.selected == nil {
		c.view.ShowMessage(MsgNoFile, models.SeverityError)
		return models.TranslationRequest{}, ErrNoFile
	}
	if c.submitting {
		return models.TranslationRequest{}, ErrSubmitInProgress
	}

	c.submitting = true
	c.view.SetSubmitEnabled(false)
	c.view.SetSubmitLoading(true)
	c.view.ShowProgress()
	c.view.UpdateProgress(progress.Starting)
	c.view.HideMessage()
	c.view.HideDownloads()

	return models.TranslationRequest{
		File:       *c.selected,
		TargetLang: opts.TargetLang,
		APIKey:     strings.TrimSpace(opts.APIKey),
	}, nil
}

func (c *Controller) translate(ctx context.Context, req models.TranslationRequest) (*models.TranslationResult, error) {
	result, err := c.translator.Translate(ctx, req)
	if err != nil {
		return nil, err
	}
	if result == nil || !result.Success {
		return nil, translator.ErrTranslationFailed
	}
	return result, nil
}

func (c *Controller) advance(stage models.ProgressStage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitting {
		c.view.UpdateProgress(stage)
	}
}

func (c *Controller) release(run *progress.Run) {
	run.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false
	c.view.SetSubmitLoading(false)
	c.validate()
}

func failureMessage(err error) string {
	var apiErr *translator.APIError
	switch {
	case errors.As(err, &apiErr):
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return MsgFailed
	case errors.Is(err, translator.ErrTranslationFailed):
		return MsgFailed
	default:
		return MsgRetry
	}
}
