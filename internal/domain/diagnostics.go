package domain

import "time"

// DiagnosticStatus indicates whether a single startup check passed. Warn
// items degrade a feature without blocking conversion.
type DiagnosticStatus string

const (
	DiagnosticStatusPass DiagnosticStatus = "pass"
	DiagnosticStatusWarn DiagnosticStatus = "warn"
	DiagnosticStatusFail DiagnosticStatus = "fail"
)

// DiagnosticItem is one startup check result with optional hint.
type DiagnosticItem struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Status  DiagnosticStatus `json:"status"`
	Message string           `json:"message"`
	Hint    string           `json:"hint,omitempty"`
}

// DiagnosticReport aggregates startup checks for UI and API responses.
type DiagnosticReport struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	HasFailures bool             `json:"hasFailures"`
	Items       []DiagnosticItem `json:"items"`
}

// NewDiagnosticReport stamps items and flags the report when any failed.
func NewDiagnosticReport(items []DiagnosticItem, at time.Time) DiagnosticReport {
	report := DiagnosticReport{GeneratedAt: at.UTC(), Items: items}
	for _, item := range items {
		if item.Status == DiagnosticStatusFail {
			report.HasFailures = true
			break
		}
	}
	return report
}

// Problems returns the items that did not pass.
func (r DiagnosticReport) Problems() []DiagnosticItem {
	var out []DiagnosticItem
	for _, item := range r.Items {
		if item.Status != DiagnosticStatusPass {
			out = append(out, item)
		}
	}
	return out
}
