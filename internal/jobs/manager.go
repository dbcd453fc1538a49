package jobs

import (
	"fmt"
	"sync"

	"upload-ai/internal/domain"
)

// Manager tracks the form state machine and the single allowed active job.
type Manager struct {
	mu      sync.RWMutex
	current domain.FormSnapshot
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.FormSnapshot{
			State: domain.FormStateIdle,
		},
	}
}

// SelectFile moves to file_selected from any state, discarding the previous
// job, artifact and error.
func (m *Manager) SelectFile(fileName, previewURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = domain.FormSnapshot{
		State:      domain.FormStateFileSelected,
		FileName:   fileName,
		PreviewURL: previewURL,
	}
}

// Start creates a new job with progress reset and moves it to converting.
func (m *Manager) Start(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.current.State {
	case domain.FormStateIdle:
		return domain.ErrNoFileSelected
	case domain.FormStateConverting:
		return domain.ErrJobAlreadyRunning
	}
	if !isValidTransition(m.current.State, domain.FormStateConverting) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.State, domain.FormStateConverting)
	}

	m.current.State = domain.FormStateConverting
	m.current.JobID = jobID
	m.current.Progress = 0
	m.current.Artifact = nil
	m.current.Error = ""
	m.current.FailureKind = ""
	return nil
}

// Progress records a fraction for the running job. Updates for any other
// job are dropped and reported as false.
func (m *Manager) Progress(jobID string, fraction float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.owns(jobID) {
		return false
	}
	m.current.Progress = fraction
	return true
}

// Complete moves the running job to ready with its artifact.
func (m *Manager) Complete(jobID string, artifact domain.ArtifactInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.owns(jobID) {
		return fmt.Errorf("job %s is no longer active", jobID)
	}
	m.current.State = domain.FormStateReady
	m.current.Artifact = &artifact
	return nil
}

// Fail moves the running job to failed with a human-readable reason.
func (m *Manager) Fail(jobID string, kind domain.FailureKind, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.owns(jobID) {
		return fmt.Errorf("job %s is no longer active", jobID)
	}
	m.current.State = domain.FormStateFailed
	m.current.Artifact = nil
	m.current.FailureKind = kind
	m.current.Error = reason
	return nil
}

// Current returns a snapshot of the form state.
func (m *Manager) Current() domain.FormSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := m.current
	if snapshot.Artifact != nil {
		artifact := *snapshot.Artifact
		snapshot.Artifact = &artifact
	}
	return snapshot
}

// Reset clears everything and returns manager to idle.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = domain.FormSnapshot{State: domain.FormStateIdle}
}

// IsRunning reports whether a conversion is active.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.State == domain.FormStateConverting
}

// owns reports whether jobID is the converting job. Caller holds mu.
func (m *Manager) owns(jobID string) bool {
	return jobID != "" && m.current.JobID == jobID && m.current.State == domain.FormStateConverting
}

// isValidTransition enforces the allowed form state machine edges.
// Selecting a file is legal from every state and bypasses this table.
func isValidTransition(from, to domain.FormState) bool {
	switch from {
	case domain.FormStateIdle:
		return to == domain.FormStateFileSelected
	case domain.FormStateFileSelected:
		return to == domain.FormStateConverting || to == domain.FormStateFileSelected
	case domain.FormStateConverting:
		return to == domain.FormStateReady || to == domain.FormStateFailed || to == domain.FormStateFileSelected
	case domain.FormStateReady, domain.FormStateFailed:
		return to == domain.FormStateConverting || to == domain.FormStateFileSelected || to == domain.FormStateIdle
	default:
		return false
	}
}
