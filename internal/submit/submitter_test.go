package submit

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"upload-ai/internal/media"
)

// fakeTranscriber captures requests and returns a canned response.
type fakeTranscriber struct {
	req  openai.AudioRequest
	body []byte
	resp openai.AudioResponse
	err  error
}

// CreateTranscription records the request and payload.
func (f *fakeTranscriber) CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error) {
	f.req = req
	if req.Reader != nil {
		f.body, _ = io.ReadAll(req.Reader)
	}
	return f.resp, f.err
}

func testArtifact() media.AudioArtifact {
	return media.AudioArtifact{Name: "audio.mp3", MediaType: "audio/mpeg", Data: []byte("mp3")}
}

// TestOpenAISubmitterSendsArtifactAndPrompt checks request mapping.
func TestOpenAISubmitterSendsArtifactAndPrompt(t *testing.T) {
	fake := &fakeTranscriber{resp: openai.AudioResponse{Text: "  hello world \n"}}
	submitter := newOpenAISubmitter(fake, "", "auto")

	result, err := submitter.Submit(context.Background(), testArtifact(), " react, hooks ")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if result.Transcript != "hello world" {
		t.Fatalf("transcript = %q", result.Transcript)
	}
	if fake.req.Model != openai.Whisper1 {
		t.Fatalf("model = %q, want %q", fake.req.Model, openai.Whisper1)
	}
	if fake.req.FilePath != "audio.mp3" {
		t.Fatalf("file path = %q", fake.req.FilePath)
	}
	if fake.req.Prompt != "react, hooks" {
		t.Fatalf("prompt = %q", fake.req.Prompt)
	}
	if fake.req.Language != "" {
		t.Fatalf("auto language should not be sent, got %q", fake.req.Language)
	}
	if string(fake.body) != "mp3" {
		t.Fatalf("body = %q", fake.body)
	}
}

// TestOpenAISubmitterFixedLanguage checks explicit language passthrough.
func TestOpenAISubmitterFixedLanguage(t *testing.T) {
	fake := &fakeTranscriber{}
	submitter := newOpenAISubmitter(fake, "whisper-large", "pt")

	if _, err := submitter.Submit(context.Background(), testArtifact(), ""); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if fake.req.Language != "pt" || fake.req.Model != "whisper-large" {
		t.Fatalf("request = %+v", fake.req)
	}
}

// TestOpenAISubmitterError checks backend errors are wrapped.
func TestOpenAISubmitterError(t *testing.T) {
	backendErr := errors.New("rate limited")
	submitter := newOpenAISubmitter(&fakeTranscriber{err: backendErr}, "", "")

	if _, err := submitter.Submit(context.Background(), testArtifact(), ""); !errors.Is(err, backendErr) {
		t.Fatalf("error = %v, want %v", err, backendErr)
	}
}

// TestLogSubmitter checks the logging collaborator records the prompt.
func TestLogSubmitter(t *testing.T) {
	var buf bytes.Buffer
	submitter := NewLogSubmitter(slog.New(slog.NewTextHandler(&buf, nil)))

	if _, err := submitter.Submit(context.Background(), testArtifact(), "transcribe this"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "audio.mp3") || !strings.Contains(out, "transcribe this") {
		t.Fatalf("log output = %q", out)
	}
}
