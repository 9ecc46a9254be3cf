package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"idmltranslator/internal/config"
	"idmltranslator/internal/form"
	"idmltranslator/internal/models"
	"idmltranslator/internal/progress"
	"idmltranslator/internal/translator"
	"idmltranslator/templates"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// multipart framing and the other form fields on top of the file itself
	formOverheadBytes = 1 << 20

	wsWriteTimeout = 5 * time.Second

	// states queued per WebSocket before the subscriber is dropped as slow
	subscriberBuffer = 32
)

type App struct {
	logger *slog.Logger

	router    *chi.Mux
	client    *translator.Client
	sequencer *progress.Sequencer

	uploadsDir    string
	defaultLang   string
	defaultAPIKey string

	mu       sync.RWMutex
	sessions map[string]*session
	subs     map[string]map[*subscriber]struct{}

	upgrader websocket.Upgrader
}

// subscriber is one WebSocket connection fed through a buffered queue.
// Only writePump touches conn for writing; send is closed by whoever
// removes the subscriber from App.subs.
type subscriber struct {
	conn *websocket.Conn
	send chan models.ViewState
}

func newSubscriber(conn *websocket.Conn) *subscriber {
	return &subscriber{conn: conn, send: make(chan models.ViewState, subscriberBuffer)}
}

func (s *subscriber) writePump() {
	defer s.conn.Close()
	for state := range s.send {
		_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := s.conn.WriteJSON(state); err != nil {
			return
		}
	}
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteTimeout))
}

func NewApp(logger *slog.Logger, client *translator.Client, cfg *config.Config) *App {
	app := &App{
		logger:        logger,
		router:        chi.NewRouter(),
		client:        client,
		sequencer:     progress.NewSequencer(cfg.ProgressInterval),
		uploadsDir:    cfg.UploadsDir,
		defaultLang:   cfg.DefaultTargetLang,
		defaultAPIKey: cfg.GoogleAPIKey,
		sessions:      make(map[string]*session),
		subs:          make(map[string]map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	app.registerRoutes()
	return app
}

func (a *App) Router() http.Handler {
	return a.router
}

func (a *App) registerRoutes() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.RealIP)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Timeout(45 * time.Minute))
	a.router.Use(a.corsMiddleware)

	a.router.Get("/", a.index)
	a.router.Post("/upload", a.upload)
	a.router.Get("/session/{id}", a.sessionPage)
	a.router.Post("/session/{id}/file", a.replaceFile)
	a.router.Post("/session/{id}/remove", a.removeFile)
	a.router.Post("/session/{id}/options", a.updateOptions)
	a.router.Post("/session/{id}/translate", a.startTranslation)
	a.router.Get("/session/{id}/state", a.sessionState)
	a.router.Get("/ws/{id}", a.sessionWS)
	a.router.Get("/api/download/{kind}/{name}", a.download)
	a.router.Get("/api/languages", a.languages)
	a.router.Get("/healthz", a.health)
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	backend := "ok"
	if _, err := a.client.Health(ctx); err != nil {
		a.logger.Warn("backend health check failed", "error", err)
		backend = "unreachable"
	}
	a.respondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"backend":   backend,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (a *App) languages(w http.ResponseWriter, r *http.Request) {
	a.respondJSON(w, http.StatusOK, models.Languages)
}

func (a *App) index(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusOK, templates.IndexPage(models.ViewState{DropzoneVisible: true}, models.Languages, a.defaultLang))
}

func (a *App) renderIndexError(w http.ResponseWriter, r *http.Request, state models.ViewState, lang string) {
	a.render(w, r, http.StatusBadRequest, templates.IndexPage(state, models.Languages, lang))
}

func (a *App) sessionPage(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.getSession(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	a.render(w, r, http.StatusOK, templates.SessionPage(sess.view.Snapshot(), models.Languages, sess.language()))
}

func (a *App) sessionState(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.getSession(chi.URLParam(r, "id"))
	if !ok {
		a.respondJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "session not found"})
		return
	}
	a.respondJSON(w, http.StatusOK, sess.view.Snapshot())
}

func (a *App) upload(w http.ResponseWriter, r *http.Request) {
	sess := a.newSession(a.defaultLang, "")
	err := a.selectUpload(w, r, sess)

	lang := a.sanitizeLanguage(multipartValue(r, "target_lang"))
	sess.setOptions(lang, strings.TrimSpace(multipartValue(r, "api_key")))

	if err != nil {
		a.dropSession(sess.id)
		a.renderIndexError(w, r, sess.view.Snapshot(), lang)
		return
	}

	a.mu.Lock()
	a.sessions[sess.id] = sess
	a.mu.Unlock()

	a.logger.Info("session created", "session_id", sess.id)
	http.Redirect(w, r, "/session/"+sess.id, http.StatusSeeOther)
}

// multipartValue reads a field parsed by selectUpload without triggering a
// second, unbounded parse of the body.
func multipartValue(r *http.Request, key string) string {
	if r.MultipartForm == nil {
		return ""
	}
	if v := r.MultipartForm.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func (a *App) replaceFile(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.getSession(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	if sess.controller.Submitting() {
		http.Error(w, "translation in progress", http.StatusConflict)
		return
	}

	if err := a.selectUpload(w, r, sess); err != nil {
		a.logger.Info("replacement rejected", "session_id", sess.id, "error", err)
	}
	http.Redirect(w, r, "/session/"+sess.id, http.StatusSeeOther)
}

// selectUpload reads the multipart "file" field and hands it to the session
// controller. Rejected files never reach the uploads directory.
func (a *App) selectUpload(w http.ResponseWriter, r *http.Request, sess *session) error {
	r.Body = http.MaxBytesReader(w, r.Body, form.MaxFileSize+formOverheadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			sess.view.ShowMessage(form.MsgFileTooLarge, models.SeverityError)
			return form.ErrFileTooLarge
		}
		a.logger.Warn("invalid multipart upload", "error", err)
		sess.view.ShowMessage(form.MsgNoFile, models.SeverityError)
		return form.ErrNoFile
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		sess.view.ShowMessage(form.MsgNoFile, models.SeverityError)
		return form.ErrNoFile
	}
	defer file.Close()

	name := filepath.Base(strings.TrimSpace(header.Filename))
	if err := form.CheckFile(name, header.Size); err != nil {
		return sess.controller.SelectFile(models.SelectedFile{Name: name, Size: header.Size})
	}

	if err := os.MkdirAll(a.uploadsDir, 0o755); err != nil {
		a.logger.Error("failed to ensure uploads dir", "error", err)
		sess.view.ShowMessage("Could not store the upload, please try again", models.SeverityError)
		return err
	}

	path := filepath.Join(a.uploadsDir, sess.id+"_"+sanitizeFileName(name))
	if err := persist(path, file); err != nil {
		a.logger.Error("failed to persist upload", "session_id", sess.id, "error", err)
		sess.view.ShowMessage("Could not store the upload, please try again", models.SeverityError)
		return err
	}

	if err := sess.controller.SelectFile(fileOnDisk(name, path, header.Size)); err != nil {
		_ = os.Remove(path)
		return err
	}
	if prev := sess.replaceUpload(path); prev != "" && prev != path {
		_ = os.Remove(prev)
	}
	sess.touch()

	a.logger.Info("upload saved", "session_id", sess.id, "file", name, "size", header.Size)
	return nil
}

func persist(path string, src io.Reader) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := out.ReadFrom(src); err != nil {
		out.Close()
		_ = os.Remove(path)
		return err
	}
	return out.Close()
}

func (a *App) removeFile(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.getSession(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	if sess.controller.Submitting() {
		http.Error(w, "translation in progress", http.StatusConflict)
		return
	}

	sess.controller.RemoveFile()
	if prev := sess.replaceUpload(""); prev != "" {
		_ = os.Remove(prev)
	}
	sess.touch()
	http.Redirect(w, r, "/session/"+sess.id, http.StatusSeeOther)
}

// applyOptions stores the language and API key posted with r on sess.
func (a *App) applyOptions(r *http.Request, sess *session) {
	apiKey := strings.TrimSpace(r.FormValue("api_key"))
	if apiKey == "" {
		apiKey = a.defaultAPIKey
	}
	sess.setOptions(a.sanitizeLanguage(r.FormValue("target_lang")), apiKey)
	sess.touch()
}

func (a *App) updateOptions(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.getSession(chi.URLParam(r, "id"))
	if !ok {
		a.respondJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "session not found"})
		return
	}
	a.applyOptions(r, sess)
	sess.controller.Validate()
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) startTranslation(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.getSession(chi.URLParam(r, "id"))
	if !ok {
		a.respondJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "session not found"})
		return
	}
	a.applyOptions(r, sess)

	run, err := sess.controller.Begin(sess.options())
	switch {
	case errors.Is(err, form.ErrNoFile):
		// the missing-file message is already rendered, no request is sent
		a.logger.Info("translation refused", "session_id", sess.id, "error", err)
		a.respondJSON(w, http.StatusConflict, models.ErrorResponse{Error: form.MsgNoFile})
		return
	case errors.Is(err, form.ErrSubmitInProgress):
		a.respondJSON(w, http.StatusAccepted, map[string]string{"status": "already_processing"})
		return
	case err != nil:
		a.logger.Error("translation not started", "session_id", sess.id, "error", err)
		a.respondJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: form.MsgRetry})
		return
	}

	go a.runTranslation(sess, run)

	if wantsHTML(r) {
		http.Redirect(w, r, "/session/"+sess.id, http.StatusSeeOther)
		return
	}
	a.respondJSON(w, http.StatusAccepted, map[string]string{"status": "started", "session_id": sess.id})
}

// runTranslation outlives the request that started it. The HTTP client's
// timeout is the only bound on the backend call.
func (a *App) runTranslation(sess *session, run func(context.Context) (*models.TranslationResult, error)) {
	opts := sess.options()
	result, err := run(context.Background())
	sess.touch()

	if err != nil {
		a.logger.Error("translation failed", "session_id", sess.id, "target_lang", opts.TargetLang, "error", err)
		return
	}
	a.logger.Info("translation completed", "session_id", sess.id, "idml_file", result.IDMLFile, "word_file", result.WordFile)
}

func (a *App) download(w http.ResponseWriter, r *http.Request) {
	kind := models.ArtifactKind(chi.URLParam(r, "kind"))
	name, err := pathParam(r, "name")
	if err != nil || !kind.Valid() {
		a.respondJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "File not found"})
		return
	}

	art, err := a.client.Download(r.Context(), kind, name)
	if err != nil {
		var apiErr *translator.APIError
		if errors.As(err, &apiErr) {
			msg := apiErr.Message
			if msg == "" {
				msg = http.StatusText(apiErr.StatusCode)
			}
			a.respondJSON(w, apiErr.StatusCode, models.ErrorResponse{Error: msg})
			return
		}
		a.logger.Error("artifact download failed", "kind", kind, "name", name, "error", err)
		a.respondJSON(w, http.StatusBadGateway, models.ErrorResponse{Error: "translation service unavailable"})
		return
	}
	defer art.Body.Close()

	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename=\""+sanitizeFileName(art.Name)+"\"")
	if art.ContentLength >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(art.ContentLength, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, art.Body); err != nil {
		a.logger.Warn("artifact stream interrupted", "kind", kind, "name", name, "error", err)
	}
}

func (a *App) sessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	sess, ok := a.getSession(sessionID)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	sub := newSubscriber(conn)

	// the snapshot is queued before any broadcast can reach sub
	a.mu.Lock()
	if a.subs[sessionID] == nil {
		a.subs[sessionID] = make(map[*subscriber]struct{})
	}
	a.subs[sessionID][sub] = struct{}{}
	sub.send <- sess.view.Snapshot()
	a.mu.Unlock()

	go sub.writePump()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	a.unsubscribe(sessionID, sub)
}

// broadcast queues state for every subscriber of the session without
// blocking. It runs under the session controller's lock, so a subscriber
// whose queue is full is dropped instead of waited on.
func (a *App) broadcast(sessionID string, state models.ViewState) {
	var slow []*subscriber

	a.mu.RLock()
	for s := range a.subs[sessionID] {
		select {
		case s.send <- state:
		default:
			slow = append(slow, s)
		}
	}
	a.mu.RUnlock()

	for _, s := range slow {
		a.logger.Warn("dropping slow websocket subscriber", "session_id", sessionID)
		a.unsubscribe(sessionID, s)
	}
}

func (a *App) unsubscribe(sessionID string, s *subscriber) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.subs[sessionID][s]; !ok {
		return
	}
	delete(a.subs[sessionID], s)
	if len(a.subs[sessionID]) == 0 {
		delete(a.subs, sessionID)
	}
	close(s.send)
}

func (a *App) newSession(lang, apiKey string) *session {
	id := uuid.NewString()
	view := form.NewStateView(id, func(state models.ViewState) {
		a.broadcast(id, state)
	})
	return &session{
		id:         id,
		view:       view,
		controller: form.NewController(a.logger.With("session_id", id), view, a.client, a.sequencer),
		targetLang: lang,
		apiKey:     apiKey,
		updatedAt:  time.Now(),
	}
}

func (a *App) getSession(id string) (*session, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	sess, ok := a.sessions[id]
	return sess, ok
}

func (a *App) dropSession(id string) {
	a.mu.Lock()
	delete(a.sessions, id)
	subs := a.subs[id]
	delete(a.subs, id)
	a.mu.Unlock()

	for s := range subs {
		close(s.send)
	}
}

func (a *App) render(w http.ResponseWriter, r *http.Request, code int, component templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := component.Render(r.Context(), w); err != nil {
		a.logger.Error("failed to render template", "error", err)
	}
}

func (a *App) respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		a.logger.Error("failed to encode json", "error", err)
	}
}

func (a *App) StartCleanupLoop(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 || ttl <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.cleanup(ttl)
			}
		}
	}()
}

func (a *App) cleanup(ttl time.Duration) {
	cutoff := time.Now().Add(-ttl)

	a.mu.RLock()
	candidates := make([]*session, 0, len(a.sessions))
	for _, sess := range a.sessions {
		candidates = append(candidates, sess)
	}
	a.mu.RUnlock()

	var stale []string
	for _, sess := range candidates {
		if sess.lastUpdate().Before(cutoff) && !sess.controller.Submitting() {
			stale = append(stale, sess.id)
		}
	}

	for _, id := range stale {
		sess, ok := a.getSession(id)
		if !ok {
			continue
		}
		a.dropSession(id)
		if path := sess.replaceUpload(""); path != "" {
			_ = os.Remove(path)
		}
	}

	if len(stale) > 0 {
		a.logger.Info("cleanup completed", "removed_sessions", len(stale))
	}
}

func (a *App) sanitizeLanguage(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if models.IsSupportedLanguage(v) {
		return v
	}
	return a.defaultLang
}

// pathParam returns the decoded value of a route parameter. chi matches on
// RawPath when the request carries one, which leaves the parameter escaped.
func pathParam(r *http.Request, key string) (string, error) {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v, nil
	}
	return url.PathUnescape(v)
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func sanitizeFileName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, name)
	if name == "" || name == "." {
		return "document.idml"
	}
	return name
}

func (a *App) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
