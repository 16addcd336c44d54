package mock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dkedar7/pyshala/internal/domain"
	"github.com/dkedar7/pyshala/internal/repository"
)

// ---- SubmissionRepository mock ----

var _ repository.SubmissionRepository = (*SubmissionRepository)(nil)

// SubmissionRepository is an in-memory test double for repository.SubmissionRepository.
type SubmissionRepository struct {
	mu          sync.Mutex
	submissions map[uuid.UUID]*domain.Submission

	CreateFn       func(ctx context.Context, sub *domain.Submission) error
	GetByIDFn      func(ctx context.Context, id uuid.UUID) (*domain.Submission, error)
	UpdateStatusFn func(ctx context.Context, id uuid.UUID, status domain.SubmissionStatus) error
	SetResultsFn   func(ctx context.Context, id uuid.UUID, results *domain.TestRunResults) error
	SetFailedFn    func(ctx context.Context, id uuid.UUID, reason string) error

	// Recorded calls for assertions.
	StatusUpdates []StatusUpdate
	Results       []ResultUpdate
	Failures      []FailureUpdate
}

type StatusUpdate struct {
	ID     uuid.UUID
	Status domain.SubmissionStatus
}

type ResultUpdate struct {
	ID      uuid.UUID
	Results *domain.TestRunResults
}

type FailureUpdate struct {
	ID     uuid.UUID
	Reason string
}

// NewSubmissionRepository creates an empty in-memory submission store.
func NewSubmissionRepository() *SubmissionRepository {
	return &SubmissionRepository{submissions: make(map[uuid.UUID]*domain.Submission)}
}

func (m *SubmissionRepository) Create(ctx context.Context, sub *domain.Submission) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, sub)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submissions == nil {
		m.submissions = make(map[uuid.UUID]*domain.Submission)
	}
	cp := *sub
	m.submissions[sub.ID] = &cp
	return nil
}

func (m *SubmissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.submissions[id]
	if !ok {
		return nil, domain.ErrSubmissionNotFound
	}
	cp := *sub
	return &cp, nil
}

func (m *SubmissionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SubmissionStatus) error {
	m.mu.Lock()
	m.StatusUpdates = append(m.StatusUpdates, StatusUpdate{ID: id, Status: status})
	m.mutate(id, func(s *domain.Submission) { s.Status = status })
	m.mu.Unlock()
	if m.UpdateStatusFn != nil {
		return m.UpdateStatusFn(ctx, id, status)
	}
	return nil
}

func (m *SubmissionRepository) SetResults(ctx context.Context, id uuid.UUID, results *domain.TestRunResults) error {
	m.mu.Lock()
	m.Results = append(m.Results, ResultUpdate{ID: id, Results: results})
	m.mutate(id, func(s *domain.Submission) {
		s.Status = domain.StatusCompleted
		s.Results = results
	})
	m.mu.Unlock()
	if m.SetResultsFn != nil {
		return m.SetResultsFn(ctx, id, results)
	}
	return nil
}

func (m *SubmissionRepository) SetFailed(ctx context.Context, id uuid.UUID, reason string) error {
	m.mu.Lock()
	m.Failures = append(m.Failures, FailureUpdate{ID: id, Reason: reason})
	m.mutate(id, func(s *domain.Submission) {
		s.Status = domain.StatusFailed
		s.Error = reason
	})
	m.mu.Unlock()
	if m.SetFailedFn != nil {
		return m.SetFailedFn(ctx, id, reason)
	}
	return nil
}

// mutate must be called with mu held.
func (m *SubmissionRepository) mutate(id uuid.UUID, fn func(*domain.Submission)) {
	if sub, ok := m.submissions[id]; ok {
		fn(sub)
		sub.UpdatedAt = time.Now().UTC()
	}
}

// ---- IdempotencyStore mock ----

var _ repository.IdempotencyStore = (*IdempotencyStore)(nil)

// IdempotencyStore is a test double for repository.IdempotencyStore.
type IdempotencyStore struct {
	mu sync.Mutex

	AcquireLockFn func(ctx context.Context, id uuid.UUID) (bool, error)
	ReleaseLockFn func(ctx context.Context, id uuid.UUID) error

	AcquireCalls []uuid.UUID
	ReleaseCalls []uuid.UUID
}

func (m *IdempotencyStore) AcquireLock(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	m.AcquireCalls = append(m.AcquireCalls, id)
	m.mu.Unlock()
	if m.AcquireLockFn != nil {
		return m.AcquireLockFn(ctx, id)
	}
	return true, nil // default: lock acquired
}

func (m *IdempotencyStore) ReleaseLock(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	m.ReleaseCalls = append(m.ReleaseCalls, id)
	m.mu.Unlock()
	if m.ReleaseLockFn != nil {
		return m.ReleaseLockFn(ctx, id)
	}
	return nil
}

// ---- AssetStore mock ----

var _ repository.AssetStore = (*AssetStore)(nil)

// AssetStore serves lesson assets from a map keyed by "<lesson_id>/<path>".
type AssetStore struct {
	mu sync.Mutex

	Objects map[string][]byte
	FetchFn func(ctx context.Context, lessonID, path string) ([]byte, error)

	FetchCalls []string
}

func (m *AssetStore) Fetch(ctx context.Context, lessonID, path string) ([]byte, error) {
	key := lessonID + "/" + path
	m.mu.Lock()
	m.FetchCalls = append(m.FetchCalls, key)
	m.mu.Unlock()
	if m.FetchFn != nil {
		return m.FetchFn(ctx, lessonID, path)
	}
	data, ok := m.Objects[key]
	if !ok {
		return nil, domain.ErrAssetNotFound
	}
	return data, nil
}

// ---- Executor mock ----

var _ repository.Executor = (*Executor)(nil)

// Executor is a test double for repository.Executor.
type Executor struct {
	mu sync.Mutex

	ExecuteFn func(ctx context.Context, req *domain.ExecutionRequest) (*domain.ExecutionResult, error)

	ExecuteCalls []*domain.ExecutionRequest
}

func (m *Executor) Execute(ctx context.Context, req *domain.ExecutionRequest) (*domain.ExecutionResult, error) {
	m.mu.Lock()
	m.ExecuteCalls = append(m.ExecuteCalls, req)
	m.mu.Unlock()
	if m.ExecuteFn != nil {
		return m.ExecuteFn(ctx, req)
	}
	return &domain.ExecutionResult{
		Stdout:   "Hello, World!\n",
		ExitCode: 0,
		Duration: 42 * time.Millisecond,
	}, nil
}

// Calls returns a snapshot of the recorded requests.
func (m *Executor) Calls() []*domain.ExecutionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.ExecutionRequest(nil), m.ExecuteCalls...)
}
