package models

// These structs define the JSON payloads exchanged between the intake,
// status and download functions, the workflow and the research runner.

// UploadedFile names a file that has already been written to blob storage.
type UploadedFile struct {
	StoredPath       string `json:"storedPath"`
	OriginalFilename string `json:"originalFilename"`
}

// StartSessionRequest is the input for the session-intake function.
type StartSessionRequest struct {
	Query     string         `json:"query"`
	Documents []UploadedFile `json:"documents"`
}

// StartSessionResponse is the output of the session-intake function.
type StartSessionResponse struct {
	SessionID string        `json:"sessionId"`
	Status    SessionStatus `json:"status"`
}

// RunSessionEvent is the CloudEvent data consumed by the research runner.
type RunSessionEvent struct {
	SessionID string `json:"sessionId"`
}

// SessionStatusResponse is the output of the session-status function.
type SessionStatusResponse struct {
	Session   *Session    `json:"session"`
	Documents []*Document `json:"documents"`
}
