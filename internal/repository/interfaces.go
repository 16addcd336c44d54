package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/dkedar7/pyshala/internal/domain"
)

// Executor runs a single program invocation.
type Executor interface {
	// Execute returns learner failures inside the result and environment failures as errors.
	Execute(ctx context.Context, req *domain.ExecutionRequest) (*domain.ExecutionResult, error)
}

// SubmissionRepository defines the interface for persisting grading submissions.
type SubmissionRepository interface {
	// Create inserts a new submission record.
	Create(ctx context.Context, sub *domain.Submission) error

	// GetByID retrieves a submission by its UUID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error)

	// UpdateStatus atomically updates the status of a submission.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SubmissionStatus) error

	// SetResults stores the grading verdicts and marks the submission COMPLETED.
	SetResults(ctx context.Context, id uuid.UUID, results *domain.TestRunResults) error

	// SetFailed marks the submission FAILED with a reason.
	SetFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// IdempotencyStore defines the interface for distributed deduplication locks.
type IdempotencyStore interface {
	// AcquireLock attempts to acquire an exclusive processing lock for a submission.
	// Returns true if the lock was acquired (first time), false if already locked (duplicate).
	AcquireLock(ctx context.Context, id uuid.UUID) (bool, error)

	// ReleaseLock releases the processing lock with a TTL for eventual cleanup.
	ReleaseLock(ctx context.Context, id uuid.UUID) error
}

// AssetStore holds the data files that ship with a lesson.
type AssetStore interface {
	// Fetch returns the bytes stored for path under the lesson, or domain.ErrAssetNotFound.
	Fetch(ctx context.Context, lessonID, path string) ([]byte, error)
}
