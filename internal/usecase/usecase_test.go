package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dkedar7/pyshala/internal/domain"
	pubmock "github.com/dkedar7/pyshala/internal/publisher/mock"
	"github.com/dkedar7/pyshala/internal/repository/mock"
	"github.com/dkedar7/pyshala/internal/usecase"
)

// grader adapts a function to usecase.Grader.
type grader func(ctx context.Context, req *domain.GradeRequest) (*domain.TestRunResults, error)

func (g grader) RunTests(ctx context.Context, req *domain.GradeRequest) (*domain.TestRunResults, error) {
	return g(ctx, req)
}

func passingGrader(calls *[]*domain.GradeRequest) grader {
	return func(ctx context.Context, req *domain.GradeRequest) (*domain.TestRunResults, error) {
		if calls != nil {
			*calls = append(*calls, req)
		}
		results := make([]domain.TestResult, len(req.TestCases))
		for i, tc := range req.TestCases {
			results[i] = domain.TestResult{Passed: true, ActualOutput: tc.ExpectedOutput, ExpectedOutput: tc.ExpectedOutput}
		}
		return domain.NewTestRunResults(results), nil
	}
}

func intPtr(v int) *int { return &v }

// ---- RunCode ----

func TestRunCode_Success(t *testing.T) {
	exec := &mock.Executor{}
	uc := usecase.NewRunCodeUsecase(exec, usecase.Limits{}, zap.NewNop())

	res, err := uc.Execute(context.Background(), &domain.RunRequest{Code: "print('Hello, World!')", Stdin: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stdout != "Hello, World!\n" {
		t.Errorf("unexpected stdout %q", res.Stdout)
	}
	if len(exec.ExecuteCalls) != 1 {
		t.Fatalf("expected 1 execute call, got %d", len(exec.ExecuteCalls))
	}
	if exec.ExecuteCalls[0].Stdin != "x" {
		t.Errorf("stdin not forwarded: %q", exec.ExecuteCalls[0].Stdin)
	}
	if exec.ExecuteCalls[0].Timeout != 0 {
		t.Errorf("expected executor default timeout, got %s", exec.ExecuteCalls[0].Timeout)
	}
}

func TestRunCode_EmptyCode(t *testing.T) {
	exec := &mock.Executor{}
	uc := usecase.NewRunCodeUsecase(exec, usecase.Limits{}, zap.NewNop())

	_, err := uc.Execute(context.Background(), &domain.RunRequest{Code: "   \n\t"})
	if !errors.Is(err, domain.ErrEmptySourceCode) {
		t.Fatalf("expected ErrEmptySourceCode, got %v", err)
	}
	if len(exec.ExecuteCalls) != 0 {
		t.Error("executor must not be called for empty code")
	}
}

func TestRunCode_PayloadTooLarge(t *testing.T) {
	uc := usecase.NewRunCodeUsecase(&mock.Executor{}, usecase.Limits{}, zap.NewNop())

	_, err := uc.Execute(context.Background(), &domain.RunRequest{Code: strings.Repeat("x", 1<<20+1)})
	if !errors.Is(err, domain.ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestRunCode_TimeoutIsClamped(t *testing.T) {
	tests := []struct {
		name string
		ms   *int
		want time.Duration
	}{
		{"absent", nil, 0},
		{"negative", intPtr(-5), 0},
		{"within bounds", intPtr(1500), 1500 * time.Millisecond},
		{"above max", intPtr(120000), 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &mock.Executor{}
			uc := usecase.NewRunCodeUsecase(exec, usecase.Limits{MaxTimeout: 5 * time.Second}, zap.NewNop())

			if _, err := uc.Execute(context.Background(), &domain.RunRequest{Code: "pass", TimeoutMs: tt.ms}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := exec.ExecuteCalls[0].Timeout; got != tt.want {
				t.Errorf("expected timeout %s, got %s", tt.want, got)
			}
		})
	}
}

func TestRunCode_InfrastructureError(t *testing.T) {
	exec := &mock.Executor{
		ExecuteFn: func(ctx context.Context, req *domain.ExecutionRequest) (*domain.ExecutionResult, error) {
			return nil, fmt.Errorf("%w: disk full", domain.ErrInfrastructure)
		},
	}
	uc := usecase.NewRunCodeUsecase(exec, usecase.Limits{}, zap.NewNop())

	_, err := uc.Execute(context.Background(), &domain.RunRequest{Code: "print(1)"})
	if !domain.IsInfrastructure(err) {
		t.Fatalf("expected infrastructure error, got %v", err)
	}
}

// ---- GradeCode ----

func TestGradeCode_Success(t *testing.T) {
	var calls []*domain.GradeRequest
	uc := usecase.NewGradeCodeUsecase(passingGrader(&calls), usecase.Limits{}, zap.NewNop())

	res, err := uc.Execute(context.Background(), &domain.GradeSubmissionRequest{
		Code:      "print(input())",
		TestCases: []domain.TestCase{{Stdin: "a", ExpectedOutput: "a"}, {Stdin: "b", ExpectedOutput: "b"}},
		TimeoutMs: intPtr(2000),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.AllPassed() || res.TotalTests != 2 {
		t.Errorf("unexpected results: %+v", res)
	}
	if len(calls) != 1 || calls[0].Timeout != 2*time.Second {
		t.Errorf("grader not called with the request timeout: %+v", calls)
	}
}

func TestGradeCode_TooManyTestCases(t *testing.T) {
	uc := usecase.NewGradeCodeUsecase(passingGrader(nil), usecase.Limits{MaxTestCases: 2}, zap.NewNop())

	_, err := uc.Execute(context.Background(), &domain.GradeSubmissionRequest{
		Code:      "pass",
		TestCases: make([]domain.TestCase, 3),
	})
	if !errors.Is(err, domain.ErrTooManyTestCases) {
		t.Fatalf("expected ErrTooManyTestCases, got %v", err)
	}
}

func TestGradeCode_PropagatesDataFileErrors(t *testing.T) {
	g := grader(func(ctx context.Context, req *domain.GradeRequest) (*domain.TestRunResults, error) {
		return nil, domain.ValidateDataFiles(req.DataFiles)
	})
	uc := usecase.NewGradeCodeUsecase(g, usecase.Limits{}, zap.NewNop())

	_, err := uc.Execute(context.Background(), &domain.GradeSubmissionRequest{
		Code:      "pass",
		DataFiles: []domain.DataFile{{Name: "a", Path: "a.txt"}},
	})
	if !errors.Is(err, domain.ErrDataFileContentMissing) {
		t.Fatalf("expected ErrDataFileContentMissing, got %v", err)
	}
}

// ---- SubmitGrading ----

func TestSubmitGrading_Success(t *testing.T) {
	repo := mock.NewSubmissionRepository()
	pub := pubmock.NewMockPublisher()
	uc := usecase.NewSubmitGradingUsecase(repo, pub, usecase.Limits{}, zap.NewNop())

	resp, err := uc.Execute(context.Background(), &domain.SubmitRequest{
		LessonID:  "basics/lesson-01",
		Code:      "print(open('data.csv').read())",
		TestCases: []domain.TestCase{{ExpectedOutput: "a,b"}},
		DataFiles: []domain.DataFile{domain.NewDataFile("data.csv", "data.csv", []byte("ignored"))},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != "QUEUED" {
		t.Errorf("expected QUEUED, got %s", resp.Status)
	}
	if resp.SubmissionID.Version() != 7 {
		t.Errorf("expected UUIDv7, got version %d", resp.SubmissionID.Version())
	}

	stored, err := repo.GetByID(context.Background(), resp.SubmissionID)
	if err != nil {
		t.Fatalf("submission not persisted: %v", err)
	}
	if stored.Status != domain.StatusQueued {
		t.Errorf("expected stored status QUEUED, got %s", stored.Status)
	}
	if len(pub.Published) != 1 {
		t.Fatalf("expected 1 published submission, got %d", len(pub.Published))
	}
	if pub.Published[0].DataFiles[0].Content != nil {
		t.Error("published data files must be declarations only")
	}
}

func TestSubmitGrading_RejectsEscapingDataFile(t *testing.T) {
	pub := pubmock.NewMockPublisher()
	uc := usecase.NewSubmitGradingUsecase(mock.NewSubmissionRepository(), pub, usecase.Limits{}, zap.NewNop())

	_, err := uc.Execute(context.Background(), &domain.SubmitRequest{
		LessonID:  "l",
		Code:      "pass",
		DataFiles: []domain.DataFile{{Name: "x", Path: "../../etc/passwd"}},
	})
	if !errors.Is(err, domain.ErrInvalidDataFile) {
		t.Fatalf("expected ErrInvalidDataFile, got %v", err)
	}
	if len(pub.Published) != 0 {
		t.Error("nothing should be published")
	}
}

func TestSubmitGrading_RejectsConflictingDataFiles(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
	}{
		{"duplicate", []string{"data.csv", "./data.csv"}},
		{"file and child", []string{"a", "a/b"}},
		{"script name", []string{"main.py"}},
		{"under script name", []string{"main.py/x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := mock.NewSubmissionRepository()
			pub := pubmock.NewMockPublisher()
			uc := usecase.NewSubmitGradingUsecase(repo, pub, usecase.Limits{}, zap.NewNop())

			var files []domain.DataFile
			for _, p := range tt.paths {
				files = append(files, domain.DataFile{Name: p, Path: p})
			}
			_, err := uc.Execute(context.Background(), &domain.SubmitRequest{LessonID: "l", Code: "pass", DataFiles: files})
			if !errors.Is(err, domain.ErrInvalidDataFile) {
				t.Fatalf("expected ErrInvalidDataFile, got %v", err)
			}
			if len(pub.Published) != 0 {
				t.Error("nothing should be published")
			}
		})
	}
}

func TestSubmitGrading_PublishFailure(t *testing.T) {
	repo := mock.NewSubmissionRepository()
	pub := &pubmock.MockPublisher{
		PublishFn: func(ctx context.Context, sub *domain.Submission) error {
			return errors.New("connection refused")
		},
	}
	uc := usecase.NewSubmitGradingUsecase(repo, pub, usecase.Limits{}, zap.NewNop())

	_, err := uc.Execute(context.Background(), &domain.SubmitRequest{LessonID: "l", Code: "pass"})
	if !errors.Is(err, domain.ErrPublishFailed) {
		t.Fatalf("expected ErrPublishFailed, got %v", err)
	}
	if len(repo.Failures) != 1 {
		t.Fatalf("expected submission marked FAILED, got %d failures", len(repo.Failures))
	}
}

func TestSubmitGrading_PublishFailureWhenMarkingFailedAlsoFails(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	repo := mock.NewSubmissionRepository()
	repo.SetFailedFn = func(ctx context.Context, id uuid.UUID, reason string) error {
		return errors.New("db down")
	}
	pub := &pubmock.MockPublisher{
		PublishFn: func(ctx context.Context, sub *domain.Submission) error {
			return errors.New("connection refused")
		},
	}
	uc := usecase.NewSubmitGradingUsecase(repo, pub, usecase.Limits{}, zap.New(core))

	_, err := uc.Execute(context.Background(), &domain.SubmitRequest{LessonID: "l", Code: "pass"})
	if !errors.Is(err, domain.ErrPublishFailed) {
		t.Fatalf("expected ErrPublishFailed, got %v", err)
	}
	if logs.FilterMessage("Failed to mark unpublished submission as failed").Len() != 1 {
		t.Errorf("expected the SetFailed error to be logged, got %v", logs.All())
	}
}

func TestSubmitGrading_CreateFailure(t *testing.T) {
	repo := mock.NewSubmissionRepository()
	repo.CreateFn = func(ctx context.Context, sub *domain.Submission) error {
		return errors.New("db down")
	}
	pub := pubmock.NewMockPublisher()
	uc := usecase.NewSubmitGradingUsecase(repo, pub, usecase.Limits{}, zap.NewNop())

	_, err := uc.Execute(context.Background(), &domain.SubmitRequest{LessonID: "l", Code: "pass"})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(pub.Published) != 0 {
		t.Error("nothing should be published when persisting fails")
	}
}

// ---- GetSubmission ----

func TestGetSubmission_NotFound(t *testing.T) {
	uc := usecase.NewGetSubmissionUsecase(mock.NewSubmissionRepository(), zap.NewNop())

	_, err := uc.Execute(context.Background(), uuid.New())
	if !errors.Is(err, domain.ErrSubmissionNotFound) {
		t.Fatalf("expected ErrSubmissionNotFound, got %v", err)
	}
}

func TestGetSubmission_RepositoryError(t *testing.T) {
	repo := mock.NewSubmissionRepository()
	repo.GetByIDFn = func(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
		return nil, errors.New("postgres: connection reset")
	}
	uc := usecase.NewGetSubmissionUsecase(repo, zap.NewNop())

	_, err := uc.Execute(context.Background(), uuid.New())
	if err == nil || errors.Is(err, domain.ErrSubmissionNotFound) {
		t.Fatalf("expected a non-404 error, got %v", err)
	}
}

// ---- ProcessSubmission ----

func newQueuedSubmission(t *testing.T, repo *mock.SubmissionRepository) *domain.Submission {
	t.Helper()
	sub := &domain.Submission{
		ID:        uuid.New(),
		LessonID:  "basics/lesson-01",
		Code:      "print(open('data/in.txt').read())",
		TestCases: []domain.TestCase{{ExpectedOutput: "hello"}},
		DataFiles: []domain.DataFile{{Name: "in.txt", Path: "data/in.txt"}},
		TimeoutMs: 1500,
		Status:    domain.StatusQueued,
	}
	if err := repo.Create(context.Background(), sub); err != nil {
		t.Fatalf("seed submission: %v", err)
	}
	return sub
}

func TestProcessSubmission_Success(t *testing.T) {
	repo := mock.NewSubmissionRepository()
	idem := &mock.IdempotencyStore{}
	assets := &mock.AssetStore{Objects: map[string][]byte{"basics/lesson-01/data/in.txt": []byte("hello")}}
	var calls []*domain.GradeRequest
	uc := usecase.NewProcessSubmissionUsecase(repo, idem, assets, passingGrader(&calls), zap.NewNop())

	sub := newQueuedSubmission(t, repo)
	isDup, err := uc.Execute(context.Background(), sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if isDup {
		t.Fatal("expected not duplicate")
	}

	// Verify status was updated to RUNNING.
	if len(repo.StatusUpdates) != 1 || repo.StatusUpdates[0].Status != domain.StatusRunning {
		t.Fatalf("expected a single RUNNING update, got %+v", repo.StatusUpdates)
	}

	// Verify the data file content was resolved from the asset store.
	if len(calls) != 1 {
		t.Fatalf("expected 1 grading call, got %d", len(calls))
	}
	if got := string(calls[0].DataFiles[0].Content); got != "hello" {
		t.Errorf("expected resolved content %q, got %q", "hello", got)
	}
	if calls[0].Timeout != 1500*time.Millisecond {
		t.Errorf("expected submission timeout, got %s", calls[0].Timeout)
	}

	stored, _ := repo.GetByID(context.Background(), sub.ID)
	if stored.Status != domain.StatusCompleted || stored.Results == nil || !stored.Results.AllPassed() {
		t.Errorf("expected COMPLETED with passing results, got %+v", stored)
	}

	// Verify lock was acquired and released.
	if len(idem.AcquireCalls) != 1 || len(idem.ReleaseCalls) != 1 {
		t.Errorf("expected 1 acquire and 1 release, got %d/%d", len(idem.AcquireCalls), len(idem.ReleaseCalls))
	}
}

func TestProcessSubmission_Duplicate(t *testing.T) {
	repo := mock.NewSubmissionRepository()
	idem := &mock.IdempotencyStore{
		AcquireLockFn: func(ctx context.Context, id uuid.UUID) (bool, error) {
			return false, nil // lock not acquired = duplicate
		},
	}
	var calls []*domain.GradeRequest
	uc := usecase.NewProcessSubmissionUsecase(repo, idem, &mock.AssetStore{}, passingGrader(&calls), zap.NewNop())

	isDup, err := uc.Execute(context.Background(), newQueuedSubmission(t, repo))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !isDup {
		t.Fatal("expected duplicate")
	}
	if len(repo.StatusUpdates) != 0 || len(calls) != 0 {
		t.Error("duplicate must not be graded")
	}
}

func TestProcessSubmission_LockError(t *testing.T) {
	repo := mock.NewSubmissionRepository()
	idem := &mock.IdempotencyStore{
		AcquireLockFn: func(ctx context.Context, id uuid.UUID) (bool, error) {
			return false, errors.New("redis: connection refused")
		},
	}
	uc := usecase.NewProcessSubmissionUsecase(repo, idem, &mock.AssetStore{}, passingGrader(nil), zap.NewNop())

	if _, err := uc.Execute(context.Background(), newQueuedSubmission(t, repo)); err == nil {
		t.Fatal("expected error")
	}
}

func TestProcessSubmission_MissingAssetFailsWithoutRetry(t *testing.T) {
	repo := mock.NewSubmissionRepository()
	idem := &mock.IdempotencyStore{}
	var calls []*domain.GradeRequest
	uc := usecase.NewProcessSubmissionUsecase(repo, idem, &mock.AssetStore{}, passingGrader(&calls), zap.NewNop())

	sub := newQueuedSubmission(t, repo)
	_, err := uc.Execute(context.Background(), sub)
	if err != nil {
		t.Fatalf("a missing asset is final and must be acknowledged, got %v", err)
	}
	if len(calls) != 0 {
		t.Error("grader must not run without data files")
	}

	stored, _ := repo.GetByID(context.Background(), sub.ID)
	if stored.Status != domain.StatusFailed {
		t.Fatalf("expected FAILED, got %s", stored.Status)
	}
	if !strings.Contains(stored.Error, "data/in.txt") {
		t.Errorf("failure reason should name the file, got %q", stored.Error)
	}
}

func TestProcessSubmission_InfrastructureErrorIsReturned(t *testing.T) {
	repo := mock.NewSubmissionRepository()
	idem := &mock.IdempotencyStore{}
	assets := &mock.AssetStore{Objects: map[string][]byte{"basics/lesson-01/data/in.txt": []byte("hello")}}
	g := grader(func(ctx context.Context, req *domain.GradeRequest) (*domain.TestRunResults, error) {
		return nil, fmt.Errorf("%w: %w", domain.ErrInfrastructure, domain.ErrInterpreterNotFound)
	})
	uc := usecase.NewProcessSubmissionUsecase(repo, idem, assets, g, zap.NewNop())

	sub := newQueuedSubmission(t, repo)
	_, err := uc.Execute(context.Background(), sub)
	if !domain.IsInfrastructure(err) {
		t.Fatalf("expected infrastructure error, got %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), sub.ID)
	if stored.Status != domain.StatusFailed {
		t.Errorf("expected FAILED, got %s", stored.Status)
	}
	if len(repo.Results) != 0 {
		t.Error("no results should be stored")
	}
}

func TestProcessSubmission_StatusUpdateFails(t *testing.T) {
	repo := mock.NewSubmissionRepository()
	repo.UpdateStatusFn = func(ctx context.Context, id uuid.UUID, status domain.SubmissionStatus) error {
		return domain.ErrSubmissionNotFound
	}
	var calls []*domain.GradeRequest
	uc := usecase.NewProcessSubmissionUsecase(repo, &mock.IdempotencyStore{}, &mock.AssetStore{}, passingGrader(&calls), zap.NewNop())

	_, err := uc.Execute(context.Background(), newQueuedSubmission(t, repo))
	if !errors.Is(err, domain.ErrSubmissionNotFound) {
		t.Fatalf("expected ErrSubmissionNotFound, got %v", err)
	}
	if len(calls) != 0 {
		t.Error("grader must not run")
	}
}
