package models

import "time"

// SessionStatus is the overall state of a research session.
type SessionStatus string

const (
	SessionPending     SessionStatus = "pending"
	SessionProcessing  SessionStatus = "processing"
	SessionSummarizing SessionStatus = "summarizing"
	SessionCompleted   SessionStatus = "completed"
	SessionFailed      SessionStatus = "failed"
)

// pending -> failed covers a run that breaks before its first status write.
var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionPending:     {SessionProcessing, SessionFailed},
	SessionProcessing:  {SessionSummarizing, SessionFailed},
	SessionSummarizing: {SessionCompleted, SessionFailed},
}

// Terminal reports whether the session can no longer change status.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionFailed
}

// CanTransitionTo reports whether the session state machine allows s -> next.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	for _, allowed := range sessionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Session is one user research request: a query over a set of documents.
type Session struct {
	ID             string        `firestore:"-" json:"id"`
	Query          string        `firestore:"query" json:"query"`
	Status         SessionStatus `firestore:"status" json:"status"`
	ReportFilename string        `firestore:"reportFilename,omitempty" json:"reportFilename,omitempty"`
	ErrorMessage   string        `firestore:"errorMessage,omitempty" json:"errorMessage,omitempty"`
	CreatedAt      time.Time     `firestore:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time     `firestore:"updatedAt" json:"updatedAt"`
}

// SessionUpdate is a partial update of a session record. Nil fields are
// left untouched; a pointer to "" clears a string field.
type SessionUpdate struct {
	Status         *SessionStatus
	ErrorMessage   *string
	ReportFilename *string
}

// Apply copies the set fields of u onto s.
func (u SessionUpdate) Apply(s *Session, now time.Time) {
	if u.Status != nil {
		s.Status = *u.Status
	}
	if u.ErrorMessage != nil {
		s.ErrorMessage = *u.ErrorMessage
	}
	if u.ReportFilename != nil {
		s.ReportFilename = *u.ReportFilename
	}
	s.UpdatedAt = now
}

// Ptr returns a pointer to v. It keeps update literals short.
func Ptr[T any](v T) *T {
	return &v
}
