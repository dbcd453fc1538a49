// Package form drives the video input form from file selection to the
// hand-off of converted audio, one conversion at a time.
package form

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"upload-ai/internal/convert"
	"upload-ai/internal/domain"
	"upload-ai/internal/engine"
	"upload-ai/internal/jobs"
	"upload-ai/internal/media"
	"upload-ai/internal/metrics"
	"upload-ai/internal/submit"
)

// ErrClosed is returned by operations on a closed form.
var ErrClosed = errors.New("form is closed")

// engineProvider hands out the shared transcoder engine.
type engineProvider interface {
	Get(ctx context.Context) (engine.Engine, error)
}

// converter runs one conversion against an engine.
type converter interface {
	Run(ctx context.Context, eng engine.Engine, req convert.Request) (media.AudioArtifact, error)
}

// Config wires the form's collaborators. Pipeline, Events and Logger have
// defaults; Submitter and Notify are optional.
type Config struct {
	Engines   engineProvider
	Pipeline  converter
	Submitter submit.Submitter
	Previews  *media.PreviewRegistry
	Events    *jobs.EventBus
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Notify    func(jobs.Event)
}

// Form is the conversion and upload orchestrator.
type Form struct {
	engines   engineProvider
	pipeline  converter
	submitter submit.Submitter
	previews  *media.PreviewRegistry
	events    *jobs.EventBus
	metrics   *metrics.Metrics
	logger    *slog.Logger
	notify    func(jobs.Event)

	state *jobs.Manager
	// slot is held while a job occupies the engine's fixed file names.
	slot chan struct{}

	mu        sync.Mutex
	source    *media.SourceMedia
	preview   *media.PreviewHandle
	artifact  *media.AudioArtifact
	activeJob string
	cancel    context.CancelFunc
	closed    bool
}

// run is one conversion attempt.
type run struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	source *media.SourceMedia
	prompt string
}

// New creates an idle form.
func New(cfg Config) *Form {
	if cfg.Pipeline == nil {
		cfg.Pipeline = convert.NewPipeline()
	}
	if cfg.Events == nil {
		cfg.Events = jobs.NewEventBus(1000)
	}
	if cfg.Previews == nil {
		cfg.Previews = media.NewPreviewRegistry(nil)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Form{
		engines:   cfg.Engines,
		pipeline:  cfg.Pipeline,
		submitter: cfg.Submitter,
		previews:  cfg.Previews,
		events:    cfg.Events,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		notify:    cfg.Notify,
		state:     jobs.NewManager(),
		slot:      make(chan struct{}, 1),
	}
}

// SelectPath opens a video from disk and selects it.
func (f *Form) SelectPath(path string) (domain.FormSnapshot, error) {
	src, err := media.Open(path)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedMediaType) {
			f.metrics.RejectedSelections.Inc()
		}
		f.logger.Warn("file selection rejected", slog.String("path", path), slog.Any("error", err))
		return f.Snapshot(), err
	}
	return f.SelectFile(src)
}

// SelectFile replaces the current source from any state. A running
// conversion is cancelled and its results are dropped; the previous preview
// is released. No conversion starts.
func (f *Form) SelectFile(src *media.SourceMedia) (domain.FormSnapshot, error) {
	if src == nil {
		return f.Snapshot(), domain.ErrNoFileSelected
	}
	if err := media.ValidateMediaType(src.MediaType); err != nil {
		f.metrics.RejectedSelections.Inc()
		return f.Snapshot(), err
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return f.Snapshot(), ErrClosed
	}
	superseded := f.activeJob
	f.abandonLocked()
	f.preview.Release()
	f.artifact = nil
	f.source = src
	f.preview = f.previews.Acquire(src)
	f.state.SelectFile(src.Name, f.preview.URL)
	f.mu.Unlock()

	if superseded != "" {
		f.logger.Info("running conversion superseded by new selection", slog.String("job_id", superseded))
	}
	f.logger.Info("video selected",
		slog.String("file", src.Name),
		slog.String("media_type", src.MediaType),
		slog.Int64("bytes", src.Size),
	)
	f.publish(jobs.Event{
		Type:    jobs.EventTypeStatus,
		State:   domain.FormStateFileSelected,
		Message: "Video selected: " + src.Name,
	})
	return f.Snapshot(), nil
}

// Submit converts the selected video and hands the audio together with the
// prompt to the submitter. It blocks until the job reaches a terminal state.
func (f *Form) Submit(ctx context.Context, prompt string) error {
	r, err := f.begin(ctx, prompt)
	if err != nil {
		return err
	}
	return f.execute(r)
}

// SubmitAsync validates and starts a conversion, then runs it in the
// background.
func (f *Form) SubmitAsync(prompt string) (domain.FormSnapshot, error) {
	r, err := f.begin(context.Background(), prompt)
	if err != nil {
		return f.Snapshot(), err
	}

	go func() {
		_ = f.execute(r)
	}()
	return f.Snapshot(), nil
}

// Cancel aborts the running conversion. The job ends failed with the
// cancelled kind; anything it produces afterwards is dropped.
func (f *Form) Cancel() error {
	f.mu.Lock()
	jobID := f.activeJob
	if jobID == "" {
		f.mu.Unlock()
		return domain.ErrNoRunningJob
	}
	f.abandonLocked()
	_ = f.state.Fail(jobID, domain.FailureKindCancelled, domain.ErrConversionCancelled.Error())
	f.mu.Unlock()

	f.metrics.ConversionsFailed.WithLabelValues(string(domain.FailureKindCancelled)).Inc()
	f.logger.Info("conversion cancelled", slog.String("job_id", jobID))
	f.publish(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeStatus,
		State:   domain.FormStateFailed,
		Message: "Conversion cancelled",
	})
	return nil
}

// Snapshot returns the state for the rendering layer.
func (f *Form) Snapshot() domain.FormSnapshot {
	return f.state.Current()
}

// Artifact returns the audio of the last successful job, if any.
func (f *Form) Artifact() (media.AudioArtifact, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.artifact == nil {
		return media.AudioArtifact{}, false
	}
	return *f.artifact, true
}

// Events returns events with sequence greater than since.
func (f *Form) Events(since int64) []jobs.Event {
	return f.events.Since(since)
}

// LastEventSeq returns the newest event sequence number.
func (f *Form) LastEventSeq() int64 {
	return f.events.LastSeq()
}

// Close cancels any running job, releases the preview and returns to idle.
func (f *Form) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	f.abandonLocked()
	f.preview.Release()
	f.preview = nil
	f.source = nil
	f.artifact = nil
	f.state.Reset()
}

// begin performs the synchronous part of a submit: guards and the
// transition to converting.
func (f *Form) begin(parent context.Context, prompt string) (*run, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrClosed
	}
	if f.source == nil {
		f.mu.Unlock()
		f.logger.Warn("submit rejected", slog.Any("error", domain.ErrNoFileSelected))
		return nil, domain.ErrNoFileSelected
	}
	if err := media.ValidateMediaType(f.source.MediaType); err != nil {
		f.mu.Unlock()
		return nil, err
	}

	jobID := uuid.NewString()
	if err := f.state.Start(jobID); err != nil {
		f.mu.Unlock()
		f.logger.Warn("submit rejected", slog.Any("error", err))
		return nil, err
	}

	ctx, cancel := context.WithCancel(parent)
	r := &run{
		id:     jobID,
		ctx:    ctx,
		cancel: cancel,
		source: f.source,
		prompt: prompt,
	}
	f.activeJob = jobID
	f.cancel = cancel
	f.artifact = nil
	f.mu.Unlock()

	f.metrics.ConversionsStarted.Inc()
	f.logger.Info("conversion started", slog.String("job_id", jobID), slog.String("file", r.source.Name))
	f.publish(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeStatus,
		State:   domain.FormStateConverting,
		Message: "Conversion started",
	})
	return r, nil
}

// execute runs the conversion and maps its outcome onto the state machine.
func (f *Form) execute(r *run) error {
	defer r.cancel()

	started := time.Now()
	artifact, err := f.transcode(r)
	f.metrics.ConversionDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		return f.fail(r, err)
	}
	return f.complete(r, artifact)
}

// transcode waits for the engine and the engine slot, then runs the pipeline.
func (f *Form) transcode(r *run) (media.AudioArtifact, error) {
	eng, err := f.engines.Get(r.ctx)
	if err != nil {
		return media.AudioArtifact{}, err
	}

	select {
	case f.slot <- struct{}{}:
	case <-r.ctx.Done():
		return media.AudioArtifact{}, r.ctx.Err()
	}
	defer func() { <-f.slot }()

	var tracker jobs.ProgressTracker
	return f.pipeline.Run(r.ctx, eng, convert.Request{
		Source: r.source,
		OnStage: func(stage string) {
			f.logger.Debug("conversion stage", slog.String("job_id", r.id), slog.String("stage", stage))
		},
		OnProgress: func(fraction float64) {
			value, ok := tracker.Observe(fraction)
			if !ok {
				return
			}
			f.mu.Lock()
			defer f.mu.Unlock()
			if f.activeJob != r.id || !f.state.Progress(r.id, value) {
				return
			}
			f.publish(jobs.Event{
				JobID:    r.id,
				Type:     jobs.EventTypeProgress,
				State:    domain.FormStateConverting,
				Progress: value,
			})
		},
		OnLog: func(line string) {
			f.logger.Debug("transcoder", slog.String("job_id", r.id), slog.String("line", line))
		},
	})
}

// fail records a terminal failure unless the job was superseded.
func (f *Form) fail(r *run, err error) error {
	kind, returned := classify(err)

	f.mu.Lock()
	owned := f.activeJob == r.id
	if owned {
		f.activeJob = ""
		f.cancel = nil
		f.artifact = nil
		_ = f.state.Fail(r.id, kind, returned.Error())
	}
	f.mu.Unlock()

	if !owned {
		f.logger.Debug("dropping outcome of superseded job", slog.String("job_id", r.id), slog.Any("error", err))
		return returned
	}

	f.metrics.ConversionsFailed.WithLabelValues(string(kind)).Inc()
	f.logger.Error("conversion failed",
		slog.String("job_id", r.id),
		slog.String("kind", string(kind)),
		slog.Any("error", err),
	)
	f.publish(jobs.Event{
		JobID:   r.id,
		Type:    jobs.EventTypeStatus,
		State:   domain.FormStateFailed,
		Message: "Conversion failed",
	})

	failure := jobs.Event{
		JobID:   r.id,
		Type:    jobs.EventTypeError,
		State:   domain.FormStateFailed,
		Message: returned.Error(),
	}
	var pipelineErr *convert.PipelineError
	if errors.As(err, &pipelineErr) && pipelineErr.CommandLog.Command != "" {
		failure.Command = pipelineErr.CommandLog.Command
		failure.Args = pipelineErr.CommandLog.Args
		failure.ExitCode = pipelineErr.CommandLog.ExitCode
		failure.Stderr = pipelineErr.CommandLog.Stderr
	}
	f.publish(failure)
	return returned
}

// complete exposes the artifact and hands it to the submitter.
func (f *Form) complete(r *run, artifact media.AudioArtifact) error {
	f.mu.Lock()
	owned := f.activeJob == r.id
	if owned {
		f.activeJob = ""
		f.cancel = nil
		f.artifact = &artifact
		_ = f.state.Complete(r.id, artifact.Info())
	}
	f.mu.Unlock()

	if !owned {
		f.logger.Debug("dropping artifact of superseded job", slog.String("job_id", r.id))
		return fmt.Errorf("job %s: %w", r.id, domain.ErrConversionCancelled)
	}

	f.metrics.ConversionsSucceeded.Inc()
	f.metrics.ArtifactSize.Observe(float64(len(artifact.Data)))
	f.logger.Info("conversion finished",
		slog.String("job_id", r.id),
		slog.String("artifact", artifact.Name),
		slog.Int("bytes", len(artifact.Data)),
	)
	f.publish(jobs.Event{
		JobID:    r.id,
		Type:     jobs.EventTypeStatus,
		State:    domain.FormStateReady,
		Progress: 1,
		Message:  "Audio ready",
		Artifact: artifact.Name,
	})

	if f.submitter == nil {
		return nil
	}

	result, err := f.submitter.Submit(r.ctx, artifact, r.prompt)
	if err != nil {
		f.metrics.Submissions.WithLabelValues("error").Inc()
		f.logger.Error("submission failed", slog.String("job_id", r.id), slog.Any("error", err))
		f.publish(jobs.Event{
			JobID:   r.id,
			Type:    jobs.EventTypeError,
			State:   domain.FormStateReady,
			Message: fmt.Sprintf("submission failed: %v", err),
		})
		return fmt.Errorf("submit audio: %w", err)
	}

	f.metrics.Submissions.WithLabelValues("ok").Inc()
	f.publish(jobs.Event{
		JobID:      r.id,
		Type:       jobs.EventTypeResult,
		State:      domain.FormStateReady,
		Progress:   1,
		Message:    "Audio submitted",
		Artifact:   artifact.Name,
		Transcript: result.Transcript,
	})
	return nil
}

// abandonLocked cancels the running job and forgets it. Caller holds mu.
func (f *Form) abandonLocked() {
	if f.cancel != nil {
		f.cancel()
	}
	f.cancel = nil
	f.activeJob = ""
}

func (f *Form) publish(event jobs.Event) {
	published := f.events.Publish(event)
	if f.notify != nil {
		f.notify(published)
	}
}

// classify maps a job error to its failure kind and the error returned to
// callers.
func classify(err error) (domain.FailureKind, error) {
	switch {
	case errors.Is(err, context.Canceled):
		return domain.FailureKindCancelled, fmt.Errorf("%w: %w", domain.ErrConversionCancelled, err)
	case errors.Is(err, domain.ErrEngineInit):
		return domain.FailureKindEngineInit, err
	case errors.Is(err, domain.ErrConversionExec):
		return domain.FailureKindConversionExec, err
	default:
		return domain.FailureKindConversionExec, fmt.Errorf("%w: %w", domain.ErrConversionExec, err)
	}
}
