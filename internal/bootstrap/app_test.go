package bootstrap

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
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"upload-ai/internal/diagnostics"
	"upload-ai/internal/domain"
	"upload-ai/internal/engine"
	"upload-ai/internal/engine/enginetest"
	"upload-ai/internal/form"
	"upload-ai/internal/jobs"
	"upload-ai/internal/media"
	"upload-ai/internal/metrics"
	"upload-ai/internal/submit"
)

// fakeStore keeps settings in memory for App tests.
type fakeStore struct {
	settings domain.Settings
	saves    int
}

// Load returns the stored settings.
func (s *fakeStore) Load() (domain.Settings, error) {
	return s.settings, nil
}

// Save records the settings.
func (s *fakeStore) Save(settings domain.Settings) error {
	s.settings = settings
	s.saves++
	return nil
}

const mp4Header = "\x00\x00\x00\x20ftypisom\x00\x00\x02\x00isomiso2avc1mp41"

// newTestApp wires an App around a fake transcoder.
func newTestApp(t *testing.T, exec enginetest.ExecFunc) *App {
	t.Helper()

	fake := enginetest.New(exec)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	m := metrics.NewMetricsWith(reg, reg)
	previews := media.NewPreviewRegistry(func(live int) { m.LivePreviews.Set(float64(live)) })
	engines := engine.NewAccessor(func(context.Context) (engine.Engine, error) { return fake, nil }, m.ObserveBootstrap)

	app := &App{
		Store:    &fakeStore{settings: domain.Settings{WorkspaceDir: t.TempDir()}},
		logger:   logger,
		metrics:  m,
		previews: previews,
		engines:  engines,
	}
	app.Form = form.New(form.Config{
		Engines:   engines,
		Submitter: submit.NewLogSubmitter(logger),
		Previews:  previews,
		Events:    jobs.NewEventBus(100),
		Metrics:   m,
		Logger:    logger,
		Notify:    app.emit,
	})
	t.Cleanup(func() { app.Shutdown(context.Background()) })
	return app
}

func writeVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "talk.mp4")
	data := append([]byte(mp4Header), make([]byte, 512)...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}
	return path
}

// TestSubmitPublishesProgressAndResultEvents checks event flow end to end.
func TestSubmitPublishesProgressAndResultEvents(t *testing.T) {
	app := newTestApp(t, func(ctx context.Context, args []string, emit func(engine.Event)) ([]byte, error) {
		emit(engine.Event{Name: engine.EventProgress, Progress: 0.5})
		emit(engine.Event{Name: engine.EventProgress, Progress: 1})
		return []byte("mp3"), nil
	})

	snapshot, err := app.SelectVideo(writeVideo(t))
	if err != nil {
		t.Fatalf("SelectVideo() error = %v", err)
	}
	if !strings.HasPrefix(snapshot.PreviewURL, media.PreviewPathPrefix) {
		t.Fatalf("unexpected preview url %q", snapshot.PreviewURL)
	}

	if _, err := app.Submit("  what is said?  "); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitForState(t, app, domain.FormStateReady)
	waitForEvent(t, app, jobs.EventTypeResult)

	events := app.JobEvents(0)
	assertEventTypeExists(t, events, jobs.EventTypeStatus)
	assertEventTypeExists(t, events, jobs.EventTypeProgress)
	if got := app.LatestEventSeq(); got != events[len(events)-1].Seq {
		t.Fatalf("LatestEventSeq() = %d, want %d", got, events[len(events)-1].Seq)
	}
}

// TestSubmitWithoutSelectionIsRejected checks the no-file guard.
func TestSubmitWithoutSelectionIsRejected(t *testing.T) {
	app := newTestApp(t, nil)

	if _, err := app.Submit("prompt"); !errors.Is(err, domain.ErrNoFileSelected) {
		t.Fatalf("Submit() error = %v, want %v", err, domain.ErrNoFileSelected)
	}
	if _, err := app.SelectVideo("   "); !errors.Is(err, domain.ErrNoFileSelected) {
		t.Fatalf("SelectVideo() error = %v", err)
	}
	if err := app.CancelConversion(); !errors.Is(err, domain.ErrNoRunningJob) {
		t.Fatalf("CancelConversion() error = %v", err)
	}
	if got := app.FormState().State; got != domain.FormStateIdle {
		t.Fatalf("state = %s, want idle", got)
	}
}

// TestCancelConversionEndsFailed checks cancellation through the binding.
func TestCancelConversionEndsFailed(t *testing.T) {
	started := make(chan struct{}, 1)
	app := newTestApp(t, func(ctx context.Context, args []string, emit func(engine.Event)) ([]byte, error) {
		started <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	})

	if _, err := app.SelectVideo(writeVideo(t)); err != nil {
		t.Fatalf("SelectVideo() error = %v", err)
	}
	if _, err := app.Submit(""); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	<-started

	if err := app.CancelConversion(); err != nil {
		t.Fatalf("CancelConversion() error = %v", err)
	}
	snapshot := waitForState(t, app, domain.FormStateFailed)
	if snapshot.FailureKind != domain.FailureKindCancelled {
		t.Fatalf("failure kind = %s", snapshot.FailureKind)
	}
}

// TestHandlerServesPreviewAndMetrics checks the asset fallback routes.
func TestHandlerServesPreviewAndMetrics(t *testing.T) {
	app := newTestApp(t, nil)
	app.assets = os.DirFS(t.TempDir())
	snapshot, err := app.SelectVideo(writeVideo(t))
	if err != nil {
		t.Fatalf("SelectVideo() error = %v", err)
	}
	handler := app.handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, snapshot.PreviewURL, nil))
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), mp4Header) {
		t.Fatalf("preview: status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "upload_ai_live_previews 1") {
		t.Fatalf("metrics: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/preview/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown preview: status %d", rec.Code)
	}
}

// TestSaveSettingsNormalizesAndPersists checks settings defaults.
func TestSaveSettingsNormalizesAndPersists(t *testing.T) {
	app := newTestApp(t, nil)
	store := app.Store.(*fakeStore)

	saved, err := app.SaveSettings(domain.Settings{
		FFmpegPath:   "  /opt/ffmpeg  ",
		WorkspaceDir: t.TempDir(),
		LogLevel:     "DEBUG",
	})
	if err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}
	if saved.FFmpegPath != "/opt/ffmpeg" || saved.Language != "auto" || saved.LogLevel != "debug" {
		t.Fatalf("unexpected settings %+v", saved)
	}
	if saved.TranscriptionModel == "" {
		t.Fatal("expected default transcription model")
	}
	if store.saves != 1 || store.settings != saved {
		t.Fatalf("store not updated: %+v", store)
	}
}

// TestInstallOrFixDiagnosticWorkspace creates the workspace and reruns checks.
func TestInstallOrFixDiagnosticWorkspace(t *testing.T) {
	app := newTestApp(t, nil)
	dir := filepath.Join(t.TempDir(), "nested", "ws")
	app.Store = &fakeStore{settings: domain.Settings{FFmpegPath: "ffmpeg", WorkspaceDir: dir}}
	app.checker = diagnostics.NewCheckerForTests(
		func(name string) (string, error) { return "/usr/bin/" + name, nil },
		func(context.Context, string) (string, error) { return "libmp3lame", nil },
		os.MkdirAll,
		os.CreateTemp,
		os.Remove,
		func(string) string { return "" },
	)

	report, err := app.InstallOrFixDiagnostic(diagnostics.IDWorkspace)
	if err != nil {
		t.Fatalf("InstallOrFixDiagnostic() error = %v", err)
	}
	if report.HasFailures {
		t.Fatalf("unexpected failures: %+v", report.Items)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("workspace missing: %v", err)
	}

	if _, err := app.InstallOrFixDiagnostic("nope"); err == nil {
		t.Fatal("expected unsupported id error")
	}
}

// waitForState polls until the form reaches desired state or times out.
func waitForState(t *testing.T, app *App, want domain.FormState) domain.FormSnapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if snapshot := app.FormState(); snapshot.State == want {
			return snapshot
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("state = %s, want %s", app.FormState().State, want)
	return domain.FormSnapshot{}
}

// waitForEvent polls until an event of the given type is published.
func waitForEvent(t *testing.T, app *App, want jobs.EventType) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, event := range app.JobEvents(0) {
			if event.Type == want {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("event type %s not published", want)
}

// assertEventTypeExists verifies at least one event of given type exists.
func assertEventTypeExists(t *testing.T, events []jobs.Event, want jobs.EventType) {
	t.Helper()
	for _, event := range events {
		if event.Type == want {
			return
		}
	}
	t.Fatalf("event type %s not found", want)
}
