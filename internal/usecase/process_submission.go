package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dkedar7/pyshala/internal/domain"
	"github.com/dkedar7/pyshala/internal/metrics"
	"github.com/dkedar7/pyshala/internal/repository"
)

// ProcessSubmissionUsecase orchestrates grading of one queued submission inside the worker.
type ProcessSubmissionUsecase struct {
	repo       repository.SubmissionRepository
	idempotent repository.IdempotencyStore
	assets     repository.AssetStore
	grader     Grader
	logger     *zap.Logger
}

// NewProcessSubmissionUsecase creates a new ProcessSubmissionUsecase.
func NewProcessSubmissionUsecase(
	repo repository.SubmissionRepository,
	idempotent repository.IdempotencyStore,
	assets repository.AssetStore,
	grader Grader,
	logger *zap.Logger,
) *ProcessSubmissionUsecase {
	return &ProcessSubmissionUsecase{
		repo:       repo,
		idempotent: idempotent,
		assets:     assets,
		grader:     grader,
		logger:     logger,
	}
}

// Execute processes a single submission: idempotency check → RUNNING → resolve data files →
// grade → store results. Returns (isDuplicate, error). A nil error means the message can be
// acknowledged, including when the submission was marked FAILED for a reason retrying cannot fix.
func (uc *ProcessSubmissionUsecase) Execute(ctx context.Context, sub *domain.Submission) (bool, error) {
	log := uc.logger.With(zap.String("submission_id", sub.ID.String()), zap.String("lesson_id", sub.LessonID))

	// Step 1: Idempotency check
	acquired, err := uc.idempotent.AcquireLock(ctx, sub.ID)
	if err != nil {
		log.Error("Failed to acquire idempotency lock", zap.Error(err))
		return false, err
	}
	if !acquired {
		log.Info("Duplicate message detected, skipping")
		return true, nil
	}

	// Step 2: Mark RUNNING
	if err := uc.repo.UpdateStatus(ctx, sub.ID, domain.StatusRunning); err != nil {
		log.Error("Failed to update submission status", zap.Error(err))
		return false, err
	}

	// Step 3: Materialize data files from the lesson assets
	files, err := uc.resolveDataFiles(ctx, sub)
	if err != nil {
		if errors.Is(err, domain.ErrAssetNotFound) || errors.Is(err, domain.ErrInvalidDataFile) {
			log.Warn("Submission references unusable data files", zap.Error(err))
			return false, uc.fail(ctx, sub, err, nil)
		}
		log.Error("Failed to fetch lesson assets", zap.Error(err))
		return false, uc.fail(ctx, sub, err, err)
	}

	// Step 4: Grade
	results, err := uc.grader.RunTests(ctx, &domain.GradeRequest{
		Code:      sub.Code,
		TestCases: sub.TestCases,
		DataFiles: files,
		Timeout:   sub.Timeout(),
	})
	if err != nil {
		log.Error("Grading failed", zap.Error(err))
		if domain.IsInfrastructure(err) {
			return false, uc.fail(ctx, sub, err, err)
		}
		return false, uc.fail(ctx, sub, err, nil)
	}

	// Step 5: Store results
	if err := uc.repo.SetResults(ctx, sub.ID, results); err != nil {
		log.Error("Failed to store results", zap.Error(err))
		return false, err
	}
	metrics.SubmissionsTotal.WithLabelValues(string(domain.StatusCompleted)).Inc()

	// Step 6: Release idempotency lock (set TTL for eventual cleanup)
	_ = uc.idempotent.ReleaseLock(ctx, sub.ID)

	log.Info("Submission graded",
		zap.Int("passed", results.PassedCount),
		zap.Int("total", results.TotalTests),
	)

	return false, nil
}

func (uc *ProcessSubmissionUsecase) resolveDataFiles(ctx context.Context, sub *domain.Submission) ([]domain.DataFile, error) {
	if err := domain.ValidateDataFileLayout(sub.DataFiles); err != nil {
		return nil, err
	}
	files := make([]domain.DataFile, 0, len(sub.DataFiles))
	for _, decl := range sub.DataFiles {
		content, err := uc.assets.Fetch(ctx, sub.LessonID, decl.CleanPath())
		if err != nil {
			return nil, fmt.Errorf("data file %q: %w", decl.Path, err)
		}
		if content == nil {
			content = []byte{}
		}
		files = append(files, domain.NewDataFile(decl.Name, decl.Path, content))
	}
	return files, nil
}

// fail marks the submission FAILED and returns ret. Persisting the failure takes precedence over ret.
func (uc *ProcessSubmissionUsecase) fail(ctx context.Context, sub *domain.Submission, cause, ret error) error {
	metrics.SubmissionsTotal.WithLabelValues(string(domain.StatusFailed)).Inc()
	if err := uc.repo.SetFailed(ctx, sub.ID, cause.Error()); err != nil {
		uc.logger.Error("Failed to mark submission failed",
			zap.String("submission_id", sub.ID.String()),
			zap.Error(err),
		)
		return err
	}
	if ret == nil {
		_ = uc.idempotent.ReleaseLock(ctx, sub.ID)
	}
	return ret
}
