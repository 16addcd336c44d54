package usecase

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dkedar7/pyshala/internal/domain"
	"github.com/dkedar7/pyshala/internal/repository"
)

// GetSubmissionUsecase handles fetching submission status and results.
type GetSubmissionUsecase struct {
	repo   repository.SubmissionRepository
	logger *zap.Logger
}

// NewGetSubmissionUsecase creates a new GetSubmissionUsecase.
func NewGetSubmissionUsecase(repo repository.SubmissionRepository, logger *zap.Logger) *GetSubmissionUsecase {
	return &GetSubmissionUsecase{
		repo:   repo,
		logger: logger,
	}
}

// Execute retrieves a submission by its ID.
func (uc *GetSubmissionUsecase) Execute(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	sub, err := uc.repo.GetByID(ctx, id)
	if errors.Is(err, domain.ErrSubmissionNotFound) {
		uc.logger.Debug("Submission not found", zap.String("submission_id", id.String()))
		return nil, domain.ErrSubmissionNotFound
	}
	if err != nil {
		uc.logger.Error("Failed to load submission", zap.String("submission_id", id.String()), zap.Error(err))
		return nil, err
	}
	return sub, nil
}
