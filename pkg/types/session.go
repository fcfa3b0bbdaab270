// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition is returned when a status change would move a session
// or result backwards.
var ErrInvalidTransition = errors.New("invalid status transition")

// SessionStatus is the lifecycle state of a search session.
type SessionStatus string

const (
	SessionPending    SessionStatus = "pending"
	SessionProcessing SessionStatus = "processing"
	SessionCompleted  SessionStatus = "completed"
	SessionFailed     SessionStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionFailed
}

// CanTransition reports whether a session in state s may move to next.
// Sessions only move forward; Completed and Failed are final.
func (s SessionStatus) CanTransition(next SessionStatus) bool {
	switch s {
	case SessionPending:
		return next == SessionProcessing || next == SessionFailed
	case SessionProcessing:
		return next == SessionCompleted || next == SessionFailed
	}
	return false
}

// DownloadStatus is the state of a single result's document.
type DownloadStatus string

const (
	DownloadPending    DownloadStatus = "pending"
	DownloadDownloaded DownloadStatus = "downloaded"
	DownloadFailed     DownloadStatus = "failed"
	DownloadSkipped    DownloadStatus = "skipped"
)

// CanTransition reports whether a result in state d may move to next.
// Downloaded -> Failed is allowed: it records a document rejected after
// evaluation.
func (d DownloadStatus) CanTransition(next DownloadStatus) bool {
	switch d {
	case DownloadPending:
		return next == DownloadDownloaded || next == DownloadFailed || next == DownloadSkipped
	case DownloadDownloaded:
		return next == DownloadFailed
	}
	return false
}

// CheckTransition wraps ErrInvalidTransition with the offending states.
func CheckTransition[S interface {
	~string
	CanTransition(S) bool
}](from, to S) error {
	if from.CanTransition(to) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// SessionRecord tracks one startSearch invocation.
type SessionRecord struct {
	ID            int64         `json:"id" yaml:"id"`
	OriginalQuery string        `json:"original_query" yaml:"original_query"`
	Criteria      string        `json:"criteria,omitempty" yaml:"criteria,omitempty"`
	Languages     []string      `json:"languages" yaml:"languages"`
	Engines       []string      `json:"engines" yaml:"engines"`
	Status        SessionStatus `json:"status" yaml:"status"`

	// Error holds the failure message when Status is SessionFailed.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// ResultRecord is one URL admitted into a session.
// At most one record exists per (SessionID, URL).
type ResultRecord struct {
	ID        int64  `json:"id" yaml:"id"`
	SessionID int64  `json:"session_id" yaml:"session_id"`
	Language  string `json:"language" yaml:"language"`
	Query     string `json:"query" yaml:"query"`
	Engine    string `json:"engine" yaml:"engine"`
	URL       string `json:"url" yaml:"url"`
	Title     string `json:"title" yaml:"title"`
	Snippet   string `json:"snippet,omitempty" yaml:"snippet,omitempty"`

	// FilePath is empty until the document is downloaded and is cleared
	// again when the document is rejected.
	FilePath string `json:"file_path,omitempty" yaml:"file_path,omitempty"`
	FileType string `json:"file_type,omitempty" yaml:"file_type,omitempty"`
	FileSize int64  `json:"file_size,omitempty" yaml:"file_size,omitempty"`

	DownloadStatus DownloadStatus `json:"download_status" yaml:"download_status"`

	// RelevanceScore is the evaluator's score; nil when not evaluated.
	RelevanceScore *float64 `json:"relevance_score,omitempty" yaml:"relevance_score,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// SessionSummary aggregates the result records of one session.
type SessionSummary struct {
	Session    SessionRecord          `json:"session" yaml:"session"`
	Total      int                    `json:"total" yaml:"total"`
	ByStatus   map[DownloadStatus]int `json:"by_status" yaml:"by_status"`
	ByLanguage map[string]int         `json:"by_language" yaml:"by_language"`
	ByEngine   map[string]int         `json:"by_engine" yaml:"by_engine"`
}
