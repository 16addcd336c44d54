package harness

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dkedar7/pyshala/internal/domain"
	"github.com/dkedar7/pyshala/internal/metrics"
	"github.com/dkedar7/pyshala/internal/repository"
)

const defaultParallelism = 4

// Harness grades a submission by running it once per test case.
type Harness struct {
	executor    repository.Executor
	parallelism int
	logger      *zap.Logger
}

// New creates a Harness. Non-positive parallelism falls back to the default.
func New(exec repository.Executor, parallelism int, logger *zap.Logger) *Harness {
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}
	return &Harness{
		executor:    exec,
		parallelism: parallelism,
		logger:      logger,
	}
}

// RunTests executes the code against every test case and returns the verdicts in input order.
// Each case gets its own workspace with freshly staged data files. An error is returned only
// for unusable data files or a failure of the execution environment; in the latter case
// the remaining cases are abandoned.
func (h *Harness) RunTests(ctx context.Context, req *domain.GradeRequest) (*domain.TestRunResults, error) {
	if err := domain.ValidateDataFiles(req.DataFiles); err != nil {
		return nil, err
	}

	startTime := time.Now()
	results := make([]domain.TestResult, len(req.TestCases))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.parallelism)

	for i := range req.TestCases {
		g.Go(func() error {
			res, err := h.runCase(gctx, req, req.TestCases[i])
			if err != nil {
				return fmt.Errorf("test case %d: %w", i+1, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		h.logger.Error("Grading aborted", zap.Int("test_cases", len(req.TestCases)), zap.Error(err))
		return nil, err
	}

	summary := domain.NewTestRunResults(results)

	h.logger.Info("Grading completed",
		zap.Int("passed", summary.PassedCount),
		zap.Int("total", summary.TotalTests),
		zap.Duration("elapsed", time.Since(startTime)),
	)

	return summary, nil
}

func (h *Harness) runCase(ctx context.Context, req *domain.GradeRequest, tc domain.TestCase) (domain.TestResult, error) {
	exec, err := h.executor.Execute(ctx, &domain.ExecutionRequest{
		Code:      req.Code,
		Stdin:     tc.Stdin,
		Timeout:   req.Timeout,
		DataFiles: req.DataFiles,
	})
	if err != nil {
		return domain.TestResult{}, err
	}

	res := domain.TestResult{
		ActualOutput:   exec.Stdout,
		ExpectedOutput: tc.ExpectedOutput,
		Description:    tc.Description,
		Hidden:         tc.Hidden,
	}

	if !exec.IsSuccess() {
		res.ErrorMessage = exec.ErrorMessage()
		res.TimedOut = exec.TimedOut
		metrics.TestCasesTotal.WithLabelValues(verdictError).Inc()
		return res, nil
	}

	res.Passed = outputsMatch(exec.Stdout, tc.ExpectedOutput)
	if res.Passed {
		metrics.TestCasesTotal.WithLabelValues(verdictPassed).Inc()
	} else {
		metrics.TestCasesTotal.WithLabelValues(verdictFailed).Inc()
	}
	return res, nil
}

const (
	verdictPassed = "passed"
	verdictFailed = "failed"
	verdictError  = "error"
)
