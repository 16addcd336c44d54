package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus represents the lifecycle state of an asynchronous grading submission.
type SubmissionStatus string

const (
	StatusQueued    SubmissionStatus = "QUEUED"
	StatusRunning   SubmissionStatus = "RUNNING"
	StatusCompleted SubmissionStatus = "COMPLETED"
	StatusFailed    SubmissionStatus = "FAILED"
)

// IsTerminal returns true if the status represents a final state.
func (s SubmissionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Submission is a grading run queued for the worker.
// DataFiles are declarations; the worker resolves their content from the asset store.
type Submission struct {
	ID        uuid.UUID        `json:"submission_id"`
	LessonID  string           `json:"lesson_id"`
	Code      string           `json:"code"`
	TestCases []TestCase       `json:"test_cases"`
	DataFiles []DataFile       `json:"data_files"`
	TimeoutMs int              `json:"timeout_ms"`
	Status    SubmissionStatus `json:"status"`
	Results   *TestRunResults  `json:"results,omitempty"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Timeout converts TimeoutMs to a duration; zero means the configured default.
func (s *Submission) Timeout() time.Duration {
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

// SubmissionMessage wraps a queued submission with its broker acknowledgement callbacks.
type SubmissionMessage struct {
	Submission *Submission
	Ack        func() error
	Nack       func(requeue bool) error
}

// RunRequest is the body of a synchronous run call.
type RunRequest struct {
	Code      string     `json:"code" binding:"required"`
	Stdin     string     `json:"stdin"`
	TimeoutMs *int       `json:"timeout_ms,omitempty"`
	DataFiles []DataFile `json:"data_files"`
}

// GradeSubmissionRequest is the body of a synchronous grading call.
type GradeSubmissionRequest struct {
	Code      string     `json:"code" binding:"required"`
	TestCases []TestCase `json:"test_cases"`
	TimeoutMs *int       `json:"timeout_ms,omitempty"`
	DataFiles []DataFile `json:"data_files"`
}

// SubmitRequest is the body of an asynchronous grading submission.
type SubmitRequest struct {
	LessonID  string     `json:"lesson_id" binding:"required"`
	Code      string     `json:"code" binding:"required"`
	TestCases []TestCase `json:"test_cases"`
	TimeoutMs *int       `json:"timeout_ms,omitempty"`
	DataFiles []DataFile `json:"data_files"`
}

// SubmitResponse is returned after a successful submission.
type SubmitResponse struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	Status       string    `json:"status"`
}

// RuntimeInfo describes the interpreter and the limits a deployment grades with.
type RuntimeInfo struct {
	Language         string `json:"language"`
	Interpreter      string `json:"interpreter"`
	Version          string `json:"version"`
	DefaultTimeoutMs int64  `json:"default_timeout_ms"`
	MaxTimeoutMs     int64  `json:"max_timeout_ms"`
	MaxTestCases     int    `json:"max_test_cases"`
}
