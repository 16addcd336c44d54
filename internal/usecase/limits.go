package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dkedar7/pyshala/internal/domain"
)

const (
	maxSourceCodeSize   = 1 << 20 // 1 MB
	defaultMaxTestCases = 100
	defaultMaxTimeout   = 30 * time.Second
)

// Grader runs a program against a list of test cases.
type Grader interface {
	RunTests(ctx context.Context, req *domain.GradeRequest) (*domain.TestRunResults, error)
}

// Limits bound what a single request may ask of the executor.
type Limits struct {
	MaxTimeout   time.Duration
	MaxTestCases int
}

func (l Limits) withDefaults() Limits {
	if l.MaxTimeout <= 0 {
		l.MaxTimeout = defaultMaxTimeout
	}
	if l.MaxTestCases <= 0 {
		l.MaxTestCases = defaultMaxTestCases
	}
	return l
}

// timeout turns an optional client value into a deadline override. Zero keeps the executor default.
func (l Limits) timeout(ms *int) time.Duration {
	if ms == nil || *ms <= 0 {
		return 0
	}
	return min(time.Duration(*ms)*time.Millisecond, l.MaxTimeout)
}

func (l Limits) checkTestCases(cases []domain.TestCase) error {
	if len(cases) > l.MaxTestCases {
		return fmt.Errorf("%w: %d > %d", domain.ErrTooManyTestCases, len(cases), l.MaxTestCases)
	}
	return nil
}

func validateCode(code string) error {
	if strings.TrimSpace(code) == "" {
		return domain.ErrEmptySourceCode
	}
	if len(code) > maxSourceCodeSize {
		return domain.ErrPayloadTooLarge
	}
	return nil
}
