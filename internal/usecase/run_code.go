package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/dkedar7/pyshala/internal/domain"
	"github.com/dkedar7/pyshala/internal/repository"
)

// RunCodeUsecase backs the "Run" button: one execution with the learner's stdin.
type RunCodeUsecase struct {
	executor repository.Executor
	limits   Limits
	logger   *zap.Logger
}

// NewRunCodeUsecase creates a new RunCodeUsecase.
func NewRunCodeUsecase(exec repository.Executor, limits Limits, logger *zap.Logger) *RunCodeUsecase {
	return &RunCodeUsecase{
		executor: exec,
		limits:   limits.withDefaults(),
		logger:   logger,
	}
}

// Execute validates the request and runs the code once.
func (uc *RunCodeUsecase) Execute(ctx context.Context, req *domain.RunRequest) (*domain.ExecutionResult, error) {
	if err := validateCode(req.Code); err != nil {
		return nil, err
	}

	result, err := uc.executor.Execute(ctx, &domain.ExecutionRequest{
		Code:      req.Code,
		Stdin:     req.Stdin,
		Timeout:   uc.limits.timeout(req.TimeoutMs),
		DataFiles: req.DataFiles,
	})
	if err != nil {
		uc.logger.Error("Run failed", zap.Error(err))
		return nil, err
	}
	return result, nil
}
