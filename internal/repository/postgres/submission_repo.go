package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkedar7/pyshala/internal/domain"
	"github.com/dkedar7/pyshala/internal/repository"
)

// Ensure pgSubmissionRepo implements repository.SubmissionRepository.
var _ repository.SubmissionRepository = (*pgSubmissionRepo)(nil)

type pgSubmissionRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresSubmissionRepository creates a new PostgreSQL-backed submission repository.
func NewPostgresSubmissionRepository(pool *pgxpool.Pool) repository.SubmissionRepository {
	return &pgSubmissionRepo{pool: pool}
}

func (r *pgSubmissionRepo) Create(ctx context.Context, sub *domain.Submission) error {
	query := `
		INSERT INTO grading_submissions (submission_id, lesson_id, code, test_cases, data_files, timeout_ms, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	testCases, err := json.Marshal(nonNil(sub.TestCases))
	if err != nil {
		return fmt.Errorf("postgres: encode test cases: %w", err)
	}
	// Only declarations are stored; content lives in the asset store.
	dataFiles, err := json.Marshal(nonNil(domain.Declarations(sub.DataFiles)))
	if err != nil {
		return fmt.Errorf("postgres: encode data files: %w", err)
	}

	now := time.Now().UTC()
	_, err = r.pool.Exec(ctx, query,
		sub.ID, sub.LessonID, sub.Code, testCases, dataFiles,
		sub.TimeoutMs, sub.Status, now, now,
	)
	if err != nil {
		return fmt.Errorf("postgres: create submission: %w", err)
	}
	sub.CreatedAt = now
	sub.UpdatedAt = now
	return nil
}

func (r *pgSubmissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	query := `
		SELECT submission_id, lesson_id, code, test_cases, data_files, timeout_ms,
		       status, results, COALESCE(error, ''), created_at, updated_at
		FROM grading_submissions
		WHERE submission_id = $1`

	sub := &domain.Submission{}
	var testCases, dataFiles, results []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&sub.ID, &sub.LessonID, &sub.Code, &testCases, &dataFiles, &sub.TimeoutMs,
		&sub.Status, &results, &sub.Error, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSubmissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get submission by id: %w", err)
	}

	if err := json.Unmarshal(testCases, &sub.TestCases); err != nil {
		return nil, fmt.Errorf("postgres: decode test cases: %w", err)
	}
	if err := json.Unmarshal(dataFiles, &sub.DataFiles); err != nil {
		return nil, fmt.Errorf("postgres: decode data files: %w", err)
	}
	if results != nil {
		sub.Results = &domain.TestRunResults{}
		if err := json.Unmarshal(results, sub.Results); err != nil {
			return nil, fmt.Errorf("postgres: decode results: %w", err)
		}
	}
	return sub, nil
}

func (r *pgSubmissionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SubmissionStatus) error {
	query := `UPDATE grading_submissions SET status = $1, updated_at = $2 WHERE submission_id = $3`
	tag, err := r.pool.Exec(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("postgres: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSubmissionNotFound
	}
	return nil
}

func (r *pgSubmissionRepo) SetResults(ctx context.Context, id uuid.UUID, results *domain.TestRunResults) error {
	encoded, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("postgres: encode results: %w", err)
	}

	query := `
		UPDATE grading_submissions
		SET results = $1, status = $2, error = NULL, updated_at = $3
		WHERE submission_id = $4`

	tag, err := r.pool.Exec(ctx, query, encoded, domain.StatusCompleted, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("postgres: set results: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSubmissionNotFound
	}
	return nil
}

func (r *pgSubmissionRepo) SetFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `UPDATE grading_submissions SET status = $1, error = $2, updated_at = $3 WHERE submission_id = $4`
	tag, err := r.pool.Exec(ctx, query, domain.StatusFailed, reason, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("postgres: set failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSubmissionNotFound
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
