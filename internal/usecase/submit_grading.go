package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dkedar7/pyshala/internal/domain"
	"github.com/dkedar7/pyshala/internal/publisher"
	"github.com/dkedar7/pyshala/internal/repository"
)

// SubmitGradingUsecase queues a grading run for the worker.
type SubmitGradingUsecase struct {
	repo      repository.SubmissionRepository
	publisher publisher.Publisher
	limits    Limits
	logger    *zap.Logger
}

// NewSubmitGradingUsecase creates a new SubmitGradingUsecase.
func NewSubmitGradingUsecase(repo repository.SubmissionRepository, pub publisher.Publisher, limits Limits, logger *zap.Logger) *SubmitGradingUsecase {
	return &SubmitGradingUsecase{
		repo:      repo,
		publisher: pub,
		limits:    limits.withDefaults(),
		logger:    logger,
	}
}

// Execute validates the submission, persists it, publishes it, and returns its ID.
// Data files are declarations; their content is resolved by the worker.
func (uc *SubmitGradingUsecase) Execute(ctx context.Context, req *domain.SubmitRequest) (*domain.SubmitResponse, error) {
	if err := validateCode(req.Code); err != nil {
		return nil, err
	}
	if err := uc.limits.checkTestCases(req.TestCases); err != nil {
		return nil, err
	}
	if err := domain.ValidateDataFileLayout(req.DataFiles); err != nil {
		return nil, err
	}

	// Generate UUIDv7 (time-ordered)
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate UUIDv7: %w", err)
	}

	now := time.Now().UTC()
	sub := &domain.Submission{
		ID:        id,
		LessonID:  req.LessonID,
		Code:      req.Code,
		TestCases: req.TestCases,
		DataFiles: domain.Declarations(req.DataFiles),
		TimeoutMs: int(uc.limits.timeout(req.TimeoutMs).Milliseconds()),
		Status:    domain.StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Persist to PostgreSQL
	if err := uc.repo.Create(ctx, sub); err != nil {
		uc.logger.Error("Failed to create submission in database", zap.Error(err), zap.String("submission_id", id.String()))
		return nil, fmt.Errorf("create submission: %w", err)
	}

	// Publish to RabbitMQ
	if err := uc.publisher.Publish(ctx, sub); err != nil {
		uc.logger.Error("Failed to publish submission to queue", zap.Error(err), zap.String("submission_id", id.String()))
		// Mark FAILED since the submission won't be processed
		if failErr := uc.repo.SetFailed(ctx, id, domain.ErrPublishFailed.Error()); failErr != nil {
			uc.logger.Error("Failed to mark unpublished submission as failed",
				zap.Error(failErr),
				zap.String("submission_id", id.String()),
			)
		}
		return nil, domain.ErrPublishFailed
	}

	uc.logger.Info("Submission queued",
		zap.String("submission_id", id.String()),
		zap.String("lesson_id", req.LessonID),
		zap.Int("test_cases", len(req.TestCases)),
	)

	return &domain.SubmitResponse{
		SubmissionID: id,
		Status:       string(domain.StatusQueued),
	}, nil
}
