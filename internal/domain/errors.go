package domain

import "errors"

var (
	// ErrInfrastructure marks failures of the execution environment itself
	// (workspace, interpreter, spawn), as opposed to failures of learner code.
	ErrInfrastructure = errors.New("execution infrastructure failure")

	// ErrInterpreterNotFound is returned when the configured interpreter cannot be started.
	ErrInterpreterNotFound = errors.New("interpreter not found")

	// ErrInvalidDataFile is returned for data files whose path is unusable.
	ErrInvalidDataFile = errors.New("invalid data file")

	// ErrDataFileContentMissing is returned when a declared data file has no content.
	ErrDataFileContentMissing = errors.New("data file content missing")

	// ErrEmptySourceCode is returned when source code is empty.
	ErrEmptySourceCode = errors.New("source code cannot be empty")

	// ErrPayloadTooLarge is returned when the source code exceeds the size limit.
	ErrPayloadTooLarge = errors.New("source code payload exceeds maximum size (1MB)")

	// ErrTooManyTestCases is returned when a grading request carries too many cases.
	ErrTooManyTestCases = errors.New("too many test cases")

	// ErrSubmissionNotFound is returned when a submission cannot be found by ID.
	ErrSubmissionNotFound = errors.New("submission not found")

	// ErrPublishFailed is returned when the message broker publish fails.
	ErrPublishFailed = errors.New("failed to publish submission to message queue")

	// ErrAssetNotFound is returned when the asset store has no object for a data file.
	ErrAssetNotFound = errors.New("lesson asset not found")
)

// IsInfrastructure reports whether err is an environment-level failure.
func IsInfrastructure(err error) bool {
	return errors.Is(err, ErrInfrastructure)
}
