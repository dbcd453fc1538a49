package diagnostics

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"upload-ai/internal/domain"
)

// Item IDs reported by Run.
const (
	IDFFmpeg     = "tool_ffmpeg"
	IDEncoder    = "encoder_libmp3lame"
	IDWorkspace  = "workspace_dir"
	IDSubmission = "submission_backend"
)

const encoderProbeTimeout = 10 * time.Second

// Checker validates the transcoder binary, its encoders and the workspace.
type Checker struct {
	lookPath     func(string) (string, error)
	listEncoders func(ctx context.Context, binary string) (string, error)
	mkdirAll     func(string, os.FileMode) error
	createTemp   func(string, string) (*os.File, error)
	remove       func(string) error
	getenv       func(string) string
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		lookPath:     exec.LookPath,
		listEncoders: ffmpegEncoders,
		mkdirAll:     os.MkdirAll,
		createTemp:   os.CreateTemp,
		remove:       os.Remove,
		getenv:       os.Getenv,
	}
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	ffmpeg, binary := c.checkFFmpeg(settings.FFmpegPath)
	items := []domain.DiagnosticItem{
		ffmpeg,
		c.checkEncoder(binary),
		c.checkWorkspace(settings.WorkspaceDir),
		c.checkSubmission(),
	}

	return domain.NewDiagnosticReport(items, time.Now())
}

// checkFFmpeg resolves the configured transcoder binary.
func (c *Checker) checkFFmpeg(configured string) (domain.DiagnosticItem, string) {
	name := strings.TrimSpace(configured)
	if name == "" {
		name = "ffmpeg"
	}

	path, err := c.lookPath(name)
	if err != nil {
		return domain.DiagnosticItem{
			ID:      IDFFmpeg,
			Name:    "ffmpeg",
			Status:  domain.DiagnosticStatusFail,
			Message: fmt.Sprintf("Transcoder not found: %s", name),
			Hint:    "Install ffmpeg and ensure the binary is on PATH, or set its full path in settings.",
		}, ""
	}

	return domain.DiagnosticItem{
		ID:      IDFFmpeg,
		Name:    "ffmpeg",
		Status:  domain.DiagnosticStatusPass,
		Message: fmt.Sprintf("Found at %s", path),
	}, path
}

// checkEncoder confirms the binary can produce MP3 audio.
func (c *Checker) checkEncoder(binary string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   IDEncoder,
		Name: "MP3 encoder",
	}

	if binary == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Skipped: ffmpeg is not available."
		item.Hint = "Fix the ffmpeg check first."
		return item
	}

	ctx, cancel := context.WithTimeout(context.Background(), encoderProbeTimeout)
	defer cancel()

	out, err := c.listEncoders(ctx, binary)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot list encoders: %v", err)
		item.Hint = "Check that the configured ffmpeg binary runs."
		return item
	}
	if !strings.Contains(out, "libmp3lame") {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "ffmpeg was built without libmp3lame."
		item.Hint = "Install an ffmpeg build that includes the LAME MP3 encoder."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = "libmp3lame is available."
	return item
}

// checkWorkspace validates workspace directory existence and write access.
func (c *Checker) checkWorkspace(dir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   IDWorkspace,
		Name: "Transcoder workspace",
	}

	if strings.TrimSpace(dir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Workspace directory is empty."
		item.Hint = "Set a directory where the transcoder can stage temporary files."
		return item
	}

	if err := c.mkdirAll(dir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create workspace directory: %s", dir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(dir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Workspace directory is not writable: %s", dir)
		item.Hint = "Choose a writable directory for temporary conversion files."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", dir)
	return item
}

// checkSubmission reports whether converted audio reaches a backend.
func (c *Checker) checkSubmission() domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   IDSubmission,
		Name: "Submission backend",
	}
	if strings.TrimSpace(c.getenv("OPENAI_API_KEY")) == "" {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = "OPENAI_API_KEY is not set; submissions are only logged."
		item.Hint = "Export OPENAI_API_KEY or add it to ~/.upload-ai/.env, then restart the app."
		return item
	}
	item.Status = domain.DiagnosticStatusPass
	item.Message = "OpenAI transcription is configured."
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	listEncoders func(ctx context.Context, binary string) (string, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
	getenv func(string) string,
) *Checker {
	return &Checker{
		lookPath:     lookPath,
		listEncoders: listEncoders,
		mkdirAll:     mkdirAll,
		createTemp:   createTemp,
		remove:       remove,
		getenv:       getenv,
	}
}

func ffmpegEncoders(ctx context.Context, binary string) (string, error) {
	out, err := exec.CommandContext(ctx, binary, "-hide_banner", "-encoders").Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}
