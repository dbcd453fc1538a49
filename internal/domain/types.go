package domain

// FormState is the lifecycle position of the video input form.
type FormState string

const (
	FormStateIdle         FormState = "idle"
	FormStateFileSelected FormState = "file_selected"
	FormStateConverting   FormState = "converting"
	FormStateReady        FormState = "ready"
	FormStateFailed       FormState = "failed"
)

// FailureKind classifies why the last conversion ended in failed state.
type FailureKind string

const (
	FailureKindEngineInit     FailureKind = "engine_init"
	FailureKindConversionExec FailureKind = "conversion_exec"
	FailureKindCancelled      FailureKind = "cancelled"
)

// Settings contains user-selectable runtime configuration.
type Settings struct {
	FFmpegPath         string `json:"ffmpegPath"`
	WorkspaceDir       string `json:"workspaceDir"`
	TranscriptionModel string `json:"transcriptionModel"`
	Language           string `json:"language"`
	LogLevel           string `json:"logLevel"`
}

// ArtifactInfo describes a finished audio artifact without its payload.
type ArtifactInfo struct {
	Name      string `json:"name"`
	MediaType string `json:"mediaType"`
	Size      int    `json:"size"`
}

// FormSnapshot is the state handed to the rendering layer.
type FormSnapshot struct {
	State       FormState     `json:"state"`
	JobID       string        `json:"jobId,omitempty"`
	FileName    string        `json:"fileName,omitempty"`
	PreviewURL  string        `json:"previewUrl,omitempty"`
	Progress    float64       `json:"progress"`
	Artifact    *ArtifactInfo `json:"artifact,omitempty"`
	Error       string        `json:"error,omitempty"`
	FailureKind FailureKind   `json:"failureKind,omitempty"`
}
