// Package convert extracts the audio track of a video through the transcoder
// engine.
package convert

import (
	"context"
	"errors"
	"fmt"

	"upload-ai/internal/domain"
	"upload-ai/internal/engine"
	"upload-ai/internal/media"
)

// Slot names and output identity are fixed; one job occupies them at a time.
const (
	InputName         = "input.mp4"
	OutputName        = "output.mp3"
	ArtifactName      = "audio.mp3"
	ArtifactMediaType = "audio/mpeg"
)

// Pipeline stages reported in PipelineError.
const (
	StageLoading  = "loading"
	StageWriting  = "writing"
	StageEncoding = "encoding"
	StageReading  = "reading"
)

// Request contains the source media and execution callbacks for one run.
type Request struct {
	Source     *media.SourceMedia
	OnStage    func(stage string)
	OnProgress func(fraction float64)
	OnLog      func(line string)
}

// PipelineError is a stage-aware error with optional command context.
type PipelineError struct {
	Stage      string            `json:"stage"`
	Message    string            `json:"message"`
	CommandLog engine.CommandLog `json:"commandLog"`
	Err        error             `json:"-"`
}

// Error formats pipeline failures for logs and UI.
func (e *PipelineError) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}

	return fmt.Sprintf(
		"%s: %s (cmd=%s exit=%d)",
		e.Stage,
		e.Message,
		e.CommandLog.Command,
		e.CommandLog.ExitCode,
	)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is classifies every pipeline failure as a conversion failure.
func (e *PipelineError) Is(target error) bool {
	return target == domain.ErrConversionExec
}

// Pipeline orchestrates write, encode and read-back against one engine.
type Pipeline struct{}

// NewPipeline constructs the conversion pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Run converts req.Source into an MP3 artifact using eng.
func (p *Pipeline) Run(ctx context.Context, eng engine.Engine, req Request) (media.AudioArtifact, error) {
	if req.Source == nil {
		return media.AudioArtifact{}, domain.ErrNoFileSelected
	}

	clearSlots(eng)
	defer clearSlots(eng)

	emitStage(req.OnStage, StageLoading)
	data, err := req.Source.Load()
	if err != nil {
		return media.AudioArtifact{}, &PipelineError{
			Stage:   StageLoading,
			Message: fmt.Sprintf("cannot read source media: %s", req.Source.Name),
			Err:     err,
		}
	}
	if err := ctx.Err(); err != nil {
		return media.AudioArtifact{}, &PipelineError{Stage: StageLoading, Message: "conversion interrupted", Err: err}
	}

	emitStage(req.OnStage, StageWriting)
	if err := eng.WriteFile(InputName, data); err != nil {
		return media.AudioArtifact{}, &PipelineError{
			Stage:   StageWriting,
			Message: "failed to write input into transcoder",
			Err:     err,
		}
	}

	if req.OnProgress != nil {
		off := eng.On(engine.EventProgress, func(ev engine.Event) {
			req.OnProgress(ev.Progress)
		})
		defer off()
	}
	if req.OnLog != nil {
		off := eng.On(engine.EventLog, func(ev engine.Event) {
			req.OnLog(ev.Message)
		})
		defer off()
	}

	emitStage(req.OnStage, StageEncoding)
	if err := eng.Exec(ctx, BuildArgs()...); err != nil {
		pErr := &PipelineError{
			Stage:   StageEncoding,
			Message: "audio extraction failed",
			Err:     err,
		}
		var execErr *engine.ExecError
		if errors.As(err, &execErr) {
			pErr.CommandLog = execErr.CommandLog
		}
		return media.AudioArtifact{}, pErr
	}

	emitStage(req.OnStage, StageReading)
	out, err := eng.ReadFile(OutputName)
	if err != nil {
		return media.AudioArtifact{}, &PipelineError{
			Stage:   StageReading,
			Message: "transcoder completed but output is missing",
			Err:     err,
		}
	}
	if len(out) == 0 {
		return media.AudioArtifact{}, &PipelineError{
			Stage:   StageReading,
			Message: "transcoder produced an empty output",
		}
	}

	return media.AudioArtifact{
		Name:      ArtifactName,
		MediaType: ArtifactMediaType,
		Data:      out,
	}, nil
}

// BuildArgs returns the audio-only, low-bitrate MP3 encode command.
func BuildArgs() []string {
	return []string{
		"-i", InputName,
		"-map", "0:a",
		"-b:a", "20k",
		"-acodec", "libmp3lame",
		OutputName,
	}
}

// clearSlots removes stale slot content.
func clearSlots(eng engine.Engine) {
	_ = eng.DeleteFile(InputName)
	_ = eng.DeleteFile(OutputName)
}

// emitStage forwards stage updates when callback is configured.
func emitStage(cb func(stage string), stage string) {
	if cb != nil {
		cb(stage)
	}
}
