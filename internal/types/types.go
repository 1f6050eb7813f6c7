// Package types provides shared type definitions for the application.
package types

// Status is the dictation status sent to the UI on every transition.
type Status struct {
	State     string `json:"state"`
	LastError string `json:"last_error,omitempty"`
}

// Transcript is a finished dictation, as emitted after insertion and listed
// in the history.
type Transcript struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	Language     string `json:"language,omitempty"`
	LanguageName string `json:"languageName,omitempty"`
	CreatedAt    int64  `json:"createdAt"` // Unix milliseconds
}

// APIKeyStatus reports whether the active provider can be called.
type APIKeyStatus struct {
	Provider   string `json:"provider"`
	Configured bool   `json:"configured"`
}
