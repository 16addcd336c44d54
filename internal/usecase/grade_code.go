package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/dkedar7/pyshala/internal/domain"
)

// GradeCodeUsecase backs the "Run Tests" button: synchronous grading.
type GradeCodeUsecase struct {
	grader Grader
	limits Limits
	logger *zap.Logger
}

// NewGradeCodeUsecase creates a new GradeCodeUsecase.
func NewGradeCodeUsecase(grader Grader, limits Limits, logger *zap.Logger) *GradeCodeUsecase {
	return &GradeCodeUsecase{
		grader: grader,
		limits: limits.withDefaults(),
		logger: logger,
	}
}

// Execute validates the request and grades the code against every test case.
func (uc *GradeCodeUsecase) Execute(ctx context.Context, req *domain.GradeSubmissionRequest) (*domain.TestRunResults, error) {
	if err := validateCode(req.Code); err != nil {
		return nil, err
	}
	if err := uc.limits.checkTestCases(req.TestCases); err != nil {
		return nil, err
	}

	results, err := uc.grader.RunTests(ctx, &domain.GradeRequest{
		Code:      req.Code,
		TestCases: req.TestCases,
		DataFiles: req.DataFiles,
		Timeout:   uc.limits.timeout(req.TimeoutMs),
	})
	if err != nil {
		uc.logger.Error("Grading failed", zap.Error(err))
		return nil, err
	}
	return results, nil
}
