package harness_test

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dkedar7/pyshala/internal/domain"
	"github.com/dkedar7/pyshala/internal/executor"
	"github.com/dkedar7/pyshala/internal/harness"
	"github.com/dkedar7/pyshala/internal/repository/mock"
)

func newPythonHarness(t *testing.T) *harness.Harness {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	exe := executor.NewLocalExecutor(executor.Options{
		Timeout:  5 * time.Second,
		WorkRoot: t.TempDir(),
	}, zap.NewNop())
	return harness.New(exe, 4, zap.NewNop())
}

func echoExecutor() *mock.Executor {
	return &mock.Executor{
		ExecuteFn: func(ctx context.Context, req *domain.ExecutionRequest) (*domain.ExecutionResult, error) {
			return &domain.ExecutionResult{Stdout: req.Stdin}, nil
		},
	}
}

func TestRunTests_SquareProgram(t *testing.T) {
	h := newPythonHarness(t)

	res, err := h.RunTests(context.Background(), &domain.GradeRequest{
		Code: "n = int(input())\nprint(n * n)",
		TestCases: []domain.TestCase{
			{Stdin: "5", ExpectedOutput: "25"},
			{Stdin: "3", ExpectedOutput: "9"},
		},
	})
	require.NoError(t, err)

	assert.True(t, res.AllPassed())
	assert.Equal(t, 2, res.PassedCount)
	assert.Equal(t, 2, res.TotalTests)
	assert.Equal(t, "25\n", res.Results[0].ActualOutput)
}

func TestRunTests_OneFailure(t *testing.T) {
	h := newPythonHarness(t)

	res, err := h.RunTests(context.Background(), &domain.GradeRequest{
		Code: "n = int(input())\nprint(n * n)",
		TestCases: []domain.TestCase{
			{Stdin: "5", ExpectedOutput: "25"},
			{Stdin: "3", ExpectedOutput: "10"},
		},
	})
	require.NoError(t, err)

	assert.False(t, res.AllPassed())
	assert.Equal(t, 1, res.PassedCount)
	assert.Equal(t, 2, res.TotalTests)
	assert.False(t, res.Results[1].Passed)
	assert.Empty(t, res.Results[1].ErrorMessage, "a mismatch is not an execution error")
	assert.Equal(t, "9\n", res.Results[1].ActualOutput)
}

func TestRunTests_ErrorInCode(t *testing.T) {
	h := newPythonHarness(t)

	res, err := h.RunTests(context.Background(), &domain.GradeRequest{
		Code:      "print('partial')\nraise ValueError('bad')",
		TestCases: []domain.TestCase{{ExpectedOutput: "partial"}},
	})
	require.NoError(t, err)

	require.Len(t, res.Results, 1)
	r := res.Results[0]
	assert.False(t, r.Passed)
	assert.Contains(t, r.ErrorMessage, "ValueError")
	assert.Equal(t, "partial\n", r.ActualOutput)
	assert.False(t, res.AllPassed())
}

func TestRunTests_Timeout(t *testing.T) {
	h := newPythonHarness(t)

	res, err := h.RunTests(context.Background(), &domain.GradeRequest{
		Code:      "import time\ntime.sleep(10)",
		Timeout:   300 * time.Millisecond,
		TestCases: []domain.TestCase{{ExpectedOutput: ""}},
	})
	require.NoError(t, err)

	r := res.Results[0]
	assert.False(t, r.Passed, "a timed out case never passes even when expected output is empty")
	assert.True(t, r.TimedOut)
	assert.Equal(t, "Execution timed out", r.ErrorMessage)
}

func TestRunTests_DataFilesStagedPerCase(t *testing.T) {
	h := newPythonHarness(t)

	code := `
import os
with open('data/input.txt') as f:
    print(f.read().strip())
print(os.path.exists('scratch.txt'))
open('scratch.txt', 'w').write('x')
`
	res, err := h.RunTests(context.Background(), &domain.GradeRequest{
		Code:      code,
		DataFiles: []domain.DataFile{domain.NewDataFile("input.txt", "data/input.txt", []byte("hello world\n"))},
		TestCases: []domain.TestCase{
			{ExpectedOutput: "hello world\nFalse"},
			{ExpectedOutput: "hello world\nFalse"},
		},
	})
	require.NoError(t, err)
	assert.True(t, res.AllPassed())
}

func TestRunTests_NoTestCases(t *testing.T) {
	exe := &mock.Executor{}
	h := harness.New(exe, 2, zap.NewNop())

	res, err := h.RunTests(context.Background(), &domain.GradeRequest{Code: "print(1)"})
	require.NoError(t, err)

	assert.Equal(t, 0, res.TotalTests)
	assert.Equal(t, 0, res.PassedCount)
	assert.True(t, res.AllPassed())
	assert.NotNil(t, res.Results)
	assert.Empty(t, exe.Calls())
}

func TestRunTests_TrailingWhitespace(t *testing.T) {
	tests := []struct {
		name     string
		actual   string
		expected string
		want     bool
	}{
		{"trailing newline", "hello\n", "hello", true},
		{"trailing spaces and tabs on both", "hello \t\n\n", "hello\n  ", true},
		{"internal whitespace differs", "a b\n", "a  b", false},
		{"leading whitespace is significant", " hello", "hello", false},
		{"inner blank line is significant", "a\n\nb", "a\nb", false},
		{"trailing spaces on inner line", "a  \nb", "a\nb", false},
		{"both empty", "", "", true},
		{"only whitespace vs empty", "\n\n", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exe := &mock.Executor{
				ExecuteFn: func(ctx context.Context, req *domain.ExecutionRequest) (*domain.ExecutionResult, error) {
					return &domain.ExecutionResult{Stdout: tt.actual}, nil
				},
			}
			h := harness.New(exe, 1, zap.NewNop())

			res, err := h.RunTests(context.Background(), &domain.GradeRequest{
				TestCases: []domain.TestCase{{ExpectedOutput: tt.expected}},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Results[0].Passed)
			assert.Equal(t, tt.actual, res.Results[0].ActualOutput, "actual output is reported verbatim")
			assert.Equal(t, tt.expected, res.Results[0].ExpectedOutput)
		})
	}
}

func TestRunTests_HiddenAndDescriptionPassThrough(t *testing.T) {
	h := harness.New(echoExecutor(), 2, zap.NewNop())

	cases := []domain.TestCase{
		{Stdin: "1", ExpectedOutput: "1", Description: "visible pass"},
		{Stdin: "2", ExpectedOutput: "1", Description: "hidden fail", Hidden: true},
		{Stdin: "3", ExpectedOutput: "3", Hidden: true},
	}
	res, err := h.RunTests(context.Background(), &domain.GradeRequest{TestCases: cases})
	require.NoError(t, err)

	for i, tc := range cases {
		assert.Equal(t, tc.Hidden, res.Results[i].Hidden, "case %d", i)
		assert.Equal(t, tc.Description, res.Results[i].Description, "case %d", i)
	}
	assert.Equal(t, 2, res.PassedCount)
}

func TestRunTests_PreservesOrderUnderParallelism(t *testing.T) {
	var inFlight, peak atomic.Int32
	exe := &mock.Executor{
		ExecuteFn: func(ctx context.Context, req *domain.ExecutionRequest) (*domain.ExecutionResult, error) {
			cur := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			// Later cases finish first.
			n, _ := strconv.Atoi(req.Stdin)
			time.Sleep(time.Duration(20-n) * 2 * time.Millisecond)
			return &domain.ExecutionResult{Stdout: req.Stdin + "\n"}, nil
		},
	}
	h := harness.New(exe, 3, zap.NewNop())

	var cases []domain.TestCase
	for i := 0; i < 20; i++ {
		cases = append(cases, domain.TestCase{Stdin: strconv.Itoa(i), ExpectedOutput: strconv.Itoa(i)})
	}

	res, err := h.RunTests(context.Background(), &domain.GradeRequest{TestCases: cases})
	require.NoError(t, err)

	require.Len(t, res.Results, 20)
	for i, r := range res.Results {
		assert.Equal(t, fmt.Sprintf("%d\n", i), r.ActualOutput)
		assert.True(t, r.Passed)
	}
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Len(t, exe.Calls(), 20)
}

func TestRunTests_PassesRequestToExecutor(t *testing.T) {
	exe := echoExecutor()
	h := harness.New(exe, 1, zap.NewNop())

	files := []domain.DataFile{domain.NewDataFile("a", "a.txt", []byte("x"))}
	_, err := h.RunTests(context.Background(), &domain.GradeRequest{
		Code:      "print(input())",
		Timeout:   2 * time.Second,
		DataFiles: files,
		TestCases: []domain.TestCase{{Stdin: "hi", ExpectedOutput: "hi"}},
	})
	require.NoError(t, err)

	calls := exe.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "print(input())", calls[0].Code)
	assert.Equal(t, "hi", calls[0].Stdin)
	assert.Equal(t, 2*time.Second, calls[0].Timeout)
	assert.Equal(t, files, calls[0].DataFiles)
}

func TestRunTests_InfrastructureErrorFailsWholeRun(t *testing.T) {
	exe := &mock.Executor{
		ExecuteFn: func(ctx context.Context, req *domain.ExecutionRequest) (*domain.ExecutionResult, error) {
			if req.Stdin == "2" {
				return nil, fmt.Errorf("%w: %w", domain.ErrInfrastructure, domain.ErrInterpreterNotFound)
			}
			return &domain.ExecutionResult{Stdout: req.Stdin}, nil
		},
	}
	h := harness.New(exe, 1, zap.NewNop())

	res, err := h.RunTests(context.Background(), &domain.GradeRequest{
		TestCases: []domain.TestCase{{Stdin: "1"}, {Stdin: "2"}, {Stdin: "3"}},
	})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, domain.IsInfrastructure(err))
	assert.True(t, errors.Is(err, domain.ErrInterpreterNotFound))
}

func TestRunTests_RejectsDataFilesBeforeRunning(t *testing.T) {
	exe := &mock.Executor{}
	h := harness.New(exe, 1, zap.NewNop())

	_, err := h.RunTests(context.Background(), &domain.GradeRequest{
		DataFiles: []domain.DataFile{{Name: "x", Path: "x.txt"}},
		TestCases: []domain.TestCase{{}},
	})
	assert.ErrorIs(t, err, domain.ErrDataFileContentMissing)
	assert.Empty(t, exe.Calls())

	_, err = h.RunTests(context.Background(), &domain.GradeRequest{
		DataFiles: []domain.DataFile{domain.NewDataFile("x", "../x.txt", []byte("x"))},
		TestCases: []domain.TestCase{{}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidDataFile)
	assert.Empty(t, exe.Calls())
}
