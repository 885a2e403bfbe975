package models

import (
	"errors"
	"time"
)

// ErrInvalidTransition is returned when a status change is not allowed by
// the session or document state machine.
var ErrInvalidTransition = errors.New("invalid status transition")

// DocumentStatus is the per-document processing state.
type DocumentStatus string

const (
	DocumentUploaded   DocumentStatus = "uploaded"
	DocumentConverting DocumentStatus = "converting"
	DocumentConverted  DocumentStatus = "converted"
	DocumentProcessing DocumentStatus = "processing"
	DocumentProcessed  DocumentStatus = "processed"
	DocumentError      DocumentStatus = "error"
)

var documentTransitions = map[DocumentStatus][]DocumentStatus{
	DocumentUploaded:   {DocumentConverting},
	DocumentConverting: {DocumentConverted, DocumentError},
	DocumentConverted:  {DocumentProcessing},
	DocumentProcessing: {DocumentProcessed, DocumentError},
}

// Terminal reports whether no further transition can leave this status.
func (s DocumentStatus) Terminal() bool {
	return s == DocumentProcessed || s == DocumentError
}

// CanTransitionTo reports whether the document state machine allows s -> next.
func (s DocumentStatus) CanTransitionTo(next DocumentStatus) bool {
	for _, allowed := range documentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Document is one uploaded file belonging to a research session.
// The owning Session controls its lifetime.
type Document struct {
	ID               string         `firestore:"-" json:"id"`
	SessionID        string         `firestore:"sessionId" json:"sessionId"`
	StoredPath       string         `firestore:"storedPath" json:"storedPath"`
	OriginalFilename string         `firestore:"originalFilename" json:"originalFilename"`
	Status           DocumentStatus `firestore:"status" json:"status"`
	ExtractedText    string         `firestore:"extractedText,omitempty" json:"extractedText,omitempty"`
	ProcessingLog    string         `firestore:"processingLog,omitempty" json:"processingLog,omitempty"`
	CreatedAt        time.Time      `firestore:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time      `firestore:"updatedAt" json:"updatedAt"`
}

// DocumentUpdate is a partial update of a document record. Nil fields are
// left untouched.
type DocumentUpdate struct {
	Status        *DocumentStatus
	ExtractedText *string
	ProcessingLog *string
}

// Apply copies the set fields of u onto d.
func (u DocumentUpdate) Apply(d *Document, now time.Time) {
	if u.Status != nil {
		d.Status = *u.Status
	}
	if u.ExtractedText != nil {
		d.ExtractedText = *u.ExtractedText
	}
	if u.ProcessingLog != nil {
		d.ProcessingLog = *u.ProcessingLog
	}
	d.UpdatedAt = now
}
