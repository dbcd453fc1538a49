// Package submit hands finished audio and the user's prompt to the AI
// backend.
package submit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"upload-ai/internal/media"
)

// Result is what the backend returned for one submission.
type Result struct {
	Transcript string
}

// Submitter receives the audio artifact together with the prompt text.
type Submitter interface {
	Submit(ctx context.Context, artifact media.AudioArtifact, prompt string) (Result, error)
}

// LogSubmitter records submissions without contacting any backend.
type LogSubmitter struct {
	logger *slog.Logger
}

// NewLogSubmitter creates a submitter that only logs.
func NewLogSubmitter(logger *slog.Logger) *LogSubmitter {
	return &LogSubmitter{logger: logger}
}

// Submit logs the artifact metadata and prompt.
func (s *LogSubmitter) Submit(ctx context.Context, artifact media.AudioArtifact, prompt string) (Result, error) {
	s.logger.InfoContext(ctx, "audio ready for submission",
		slog.String("artifact", artifact.Name),
		slog.String("media_type", artifact.MediaType),
		slog.Int("bytes", len(artifact.Data)),
		slog.String("prompt", prompt),
	)
	return Result{}, nil
}

// transcriber is the slice of the OpenAI client this package uses.
type transcriber interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
}

// OpenAISubmitter uploads the artifact to the OpenAI transcription endpoint,
// passing the prompt as transcription guidance.
type OpenAISubmitter struct {
	client   transcriber
	model    string
	language string
}

// NewOpenAISubmitter creates a submitter for the given API key.
func NewOpenAISubmitter(apiKey, model, language string) *OpenAISubmitter {
	return newOpenAISubmitter(openai.NewClient(apiKey), model, language)
}

func newOpenAISubmitter(client transcriber, model, language string) *OpenAISubmitter {
	if strings.TrimSpace(model) == "" {
		model = openai.Whisper1
	}
	return &OpenAISubmitter{
		client:   client,
		model:    model,
		language: normalizeLanguage(language),
	}
}

// Submit sends the artifact and returns the transcript.
func (s *OpenAISubmitter) Submit(ctx context.Context, artifact media.AudioArtifact, prompt string) (Result, error) {
	resp, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    s.model,
		FilePath: artifact.Name,
		Reader:   artifact.Reader(),
		Prompt:   strings.TrimSpace(prompt),
		Language: s.language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return Result{}, fmt.Errorf("create transcription: %w", err)
	}
	return Result{Transcript: strings.TrimSpace(resp.Text)}, nil
}

// normalizeLanguage maps "auto" and empty language to no override.
func normalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}
