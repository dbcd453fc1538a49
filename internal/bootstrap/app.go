package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"upload-ai/internal/config"
	"upload-ai/internal/diagnostics"
	"upload-ai/internal/domain"
	"upload-ai/internal/engine"
	"upload-ai/internal/form"
	"upload-ai/internal/jobs"
	"upload-ai/internal/media"
	"upload-ai/internal/metrics"
	"upload-ai/internal/submit"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// formEventName is the runtime event carrying jobs.Event payloads.
const formEventName = "form:event"

// videoDialogFilter is the file input's acceptance filter.
var videoDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "MP4 video",
		Pattern:     "*.mp4",
	},
}

// formService is the orchestrator surface bound to the UI.
type formService interface {
	SelectPath(path string) (domain.FormSnapshot, error)
	SubmitAsync(prompt string) (domain.FormSnapshot, error)
	Cancel() error
	Snapshot() domain.FormSnapshot
	Events(since int64) []jobs.Event
	LastEventSeq() int64
	Close()
}

// App wires configuration, the form orchestrator and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Form        formService
	Diagnostics domain.DiagnosticReport

	assets    fs.FS
	checker   *diagnostics.Checker
	installer installer
	logger    *slog.Logger
	metrics   *metrics.Metrics
	previews  *media.PreviewRegistry
	engines   *engine.Accessor

	mu         sync.Mutex
	runtimeCtx context.Context
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	if err := ensureLocalBinOnPATH(config.AppDir()); err != nil {
		return nil, fmt.Errorf("prepare local tool path: %w", err)
	}

	if err := config.LoadDotEnv(config.DefaultEnvPath()); err != nil {
		return nil, err
	}

	store := config.NewJSONStore(config.DefaultPath())
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	settings = normalizeSettings(config.ApplyEnv(settings, os.Getenv))

	logger := config.NewLogger(settings.LogLevel, os.Stderr)
	checker := diagnostics.NewChecker()
	report := checker.Run(settings)
	for _, item := range report.Problems() {
		logger.Warn("startup check", "id", item.ID, "status", item.Status, "message", item.Message)
	}

	m := metrics.NewMetrics()
	previews := media.NewPreviewRegistry(func(live int) {
		m.LivePreviews.Set(float64(live))
	})
	engines := engine.NewAccessor(engine.Bootstrap(engine.Options{
		Path:          settings.FFmpegPath,
		WorkspaceRoot: settings.WorkspaceDir,
	}), m.ObserveBootstrap)

	app := &App{
		Settings:    settings,
		Store:       store,
		Diagnostics: report,
		assets:      assets,
		checker:     checker,
		installer:   newInstaller(),
		logger:      logger,
		metrics:     m,
		previews:    previews,
		engines:     engines,
	}
	app.Form = form.New(form.Config{
		Engines:   engines,
		Submitter: newSubmitter(settings, os.Getenv(config.EnvAPIKey), logger),
		Previews:  previews,
		Events:    jobs.NewEventBus(1000),
		Metrics:   m,
		Logger:    logger,
		Notify:    app.emit,
	})
	return app, nil
}

// newSubmitter picks the OpenAI backend when a key is configured.
func newSubmitter(settings domain.Settings, apiKey string, logger *slog.Logger) submit.Submitter {
	if strings.TrimSpace(apiKey) == "" {
		logger.Info("no API key configured, submissions are logged only")
		return submit.NewLogSubmitter(logger)
	}
	return submit.NewOpenAISubmitter(apiKey, settings.TranscriptionModel, settings.Language)
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	return wails.Run(&options.App{
		Title:       "upload.ai",
		Width:       1180,
		Height:      780,
		AssetServer: a.assetOptions(),
		OnStartup:   a.Startup,
		OnShutdown:  a.Shutdown,
		Bind:        []interface{}{a},
	})
}

// assetOptions serves the frontend plus preview URLs and /metrics.
func (a *App) assetOptions() *assetserver.Options {
	opts := &assetserver.Options{Handler: a.handler()}
	if a.assets != nil {
		opts.Assets = a.assets
	}
	return opts
}

// handler routes requests the embedded assets do not answer.
func (a *App) handler() http.Handler {
	mux := http.NewServeMux()
	if a.previews != nil {
		mux.Handle(media.PreviewPathPrefix, a.previews)
	}
	if a.metrics != nil {
		mux.Handle("/metrics", a.metrics.Handler())
	}
	if a.assets == nil {
		mux.Handle("/", http.FileServer(http.Dir("./frontend")))
	}
	return mux
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// Shutdown stops any running conversion and tears down the engine.
func (a *App) Shutdown(context.Context) {
	a.mu.Lock()
	a.runtimeCtx = nil
	a.mu.Unlock()

	if a.Form != nil {
		a.Form.Close()
	}
	if a.engines != nil {
		if err := a.engines.Close(); err != nil {
			a.log().Warn("close transcoder", "error", err)
		}
	}
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
// Transcoder changes apply on the next launch.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.refreshDiagnosticsFromSettings(normalized)
	return normalized, nil
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	return a.refreshDiagnosticsFromSettings(normalizeSettings(settings)), nil
}

// PickVideoFile opens a native file dialog restricted to MP4 video.
func (a *App) PickVideoFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select video",
		Filters: videoDialogFilter,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// SelectVideo makes path the form's source video.
func (a *App) SelectVideo(path string) (domain.FormSnapshot, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return a.Form.Snapshot(), domain.ErrNoFileSelected
	}
	return a.Form.SelectPath(path)
}

// Submit starts converting the selected video; prompt travels with the
// resulting audio.
func (a *App) Submit(prompt string) (domain.FormSnapshot, error) {
	return a.Form.SubmitAsync(strings.TrimSpace(prompt))
}

// CancelConversion aborts the running conversion, if any.
func (a *App) CancelConversion() error {
	return a.Form.Cancel()
}

// FormState returns the form snapshot for rendering.
func (a *App) FormState() domain.FormSnapshot {
	return a.Form.Snapshot()
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.Form.Events(sinceSeq)
}

// LatestEventSeq lets a freshly loaded UI skip history.
func (a *App) LatestEventSeq() int64 {
	return a.Form.LastEventSeq()
}

// emit pushes a published event to the UI.
func (a *App) emit(event jobs.Event) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, formEventName, event)
	}
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

func (a *App) log() *slog.Logger {
	if a.logger == nil {
		return slog.Default()
	}
	return a.logger
}

// normalizeSettings trims user inputs and fills empty fields with defaults.
func normalizeSettings(settings domain.Settings) domain.Settings {
	defaults := config.DefaultSettings()

	settings.FFmpegPath = strings.TrimSpace(settings.FFmpegPath)
	if settings.FFmpegPath == "" {
		settings.FFmpegPath = defaults.FFmpegPath
	}
	settings.WorkspaceDir = strings.TrimSpace(settings.WorkspaceDir)
	if settings.WorkspaceDir == "" {
		settings.WorkspaceDir = defaults.WorkspaceDir
	}
	settings.TranscriptionModel = strings.TrimSpace(settings.TranscriptionModel)
	if settings.TranscriptionModel == "" {
		settings.TranscriptionModel = defaults.TranscriptionModel
	}
	settings.Language = strings.TrimSpace(settings.Language)
	if settings.Language == "" {
		settings.Language = defaults.Language
	}
	settings.LogLevel = strings.ToLower(strings.TrimSpace(settings.LogLevel))
	if settings.LogLevel == "" {
		settings.LogLevel = defaults.LogLevel
	}
	return settings
}
