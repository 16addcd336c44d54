package executor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dkedar7/pyshala/internal/domain"
	"github.com/dkedar7/pyshala/internal/metrics"
)

const (
	defaultPythonPath     = "python3"
	defaultTimeout        = 10 * time.Second
	defaultMaxOutputBytes = 1 << 20 // 1 MB

	// waitDelay bounds how long Wait keeps draining pipes held open by stray descendants.
	waitDelay = 500 * time.Millisecond

	fallbackPath = "/usr/local/bin:/usr/bin:/bin"

	versionTimeout = 5 * time.Second
)

// Options configure a LocalExecutor. Zero fields fall back to defaults.
type Options struct {
	PythonPath     string
	Timeout        time.Duration
	MaxOutputBytes int
	// WorkRoot is the parent directory of per-call workspaces; empty means os.TempDir.
	WorkRoot string
}

// LocalExecutor runs learner code in an interpreter subprocess inside a throwaway workspace.
// It holds no per-call state and is safe for concurrent use.
type LocalExecutor struct {
	pythonPath     string
	timeout        time.Duration
	maxOutputBytes int
	workRoot       string
	logger         *zap.Logger
}

// NewLocalExecutor creates a new executor.
func NewLocalExecutor(opts Options, logger *zap.Logger) *LocalExecutor {
	e := &LocalExecutor{
		pythonPath:     opts.PythonPath,
		timeout:        opts.Timeout,
		maxOutputBytes: opts.MaxOutputBytes,
		workRoot:       opts.WorkRoot,
		logger:         logger,
	}
	if e.pythonPath == "" {
		e.pythonPath = defaultPythonPath
	}
	if e.timeout <= 0 {
		e.timeout = defaultTimeout
	}
	if e.maxOutputBytes <= 0 {
		e.maxOutputBytes = defaultMaxOutputBytes
	}
	return e
}

// Timeout returns the configured default deadline.
func (e *LocalExecutor) Timeout() time.Duration {
	return e.timeout
}

// PythonPath returns the interpreter the executor runs.
func (e *LocalExecutor) PythonPath() string {
	return e.pythonPath
}

// Version asks the interpreter for its version, e.g. "Python 3.12.1".
func (e *LocalExecutor) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, e.pythonPath, "--version").CombinedOutput()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %w: %s", domain.ErrInfrastructure, domain.ErrInterpreterNotFound, e.pythonPath)
		}
		return "", fmt.Errorf("%w: interpreter version: %w", domain.ErrInfrastructure, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Execute runs one program invocation and returns its result. Failures of the learner
// code are reported inside the result; a non-nil error means the environment failed
// (it wraps domain.ErrInfrastructure) or the data files were unusable.
func (e *LocalExecutor) Execute(ctx context.Context, req *domain.ExecutionRequest) (*domain.ExecutionResult, error) {
	if err := domain.ValidateDataFiles(req.DataFiles); err != nil {
		return nil, err
	}

	ws, err := newWorkspace(e.workRoot)
	if err != nil {
		metrics.ExecutionsTotal.WithLabelValues(metrics.OutcomeInfraError).Inc()
		return nil, fmt.Errorf("%w: %w", domain.ErrInfrastructure, err)
	}
	defer e.removeWorkspace(ws)

	if err := ws.stage(req.DataFiles); err != nil {
		metrics.ExecutionsTotal.WithLabelValues(metrics.OutcomeInfraError).Inc()
		return nil, fmt.Errorf("%w: %w", domain.ErrInfrastructure, err)
	}
	if err := ws.writeScript(req.Code); err != nil {
		metrics.ExecutionsTotal.WithLabelValues(metrics.OutcomeInfraError).Inc()
		return nil, fmt.Errorf("%w: %w", domain.ErrInfrastructure, err)
	}

	timeout := e.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}

	result, err := e.run(ctx, ws, req.Stdin, timeout)
	if err != nil {
		metrics.ExecutionsTotal.WithLabelValues(metrics.OutcomeInfraError).Inc()
		return nil, err
	}

	metrics.ExecutionsTotal.WithLabelValues(outcomeOf(result)).Inc()
	metrics.ExecutionDuration.Observe(result.Duration.Seconds())
	return result, nil
}

func (e *LocalExecutor) run(ctx context.Context, ws *workspace, stdin string, timeout time.Duration) (*domain.ExecutionResult, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(timeoutCtx, e.pythonPath, scriptName)
	cmd.Dir = ws.dir
	cmd.Env = childEnv(ws.dir)
	cmd.Stdin = strings.NewReader(stdin)

	// Separate writers get separate copy goroutines, so neither stream can block the other.
	stdout := newLimitedBuffer(e.maxOutputBytes)
	stderr := newLimitedBuffer(e.maxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	proc := newProcess(cmd)
	var cancelled, deadlineHit atomic.Bool
	cmd.Cancel = func() error {
		cancelled.Store(true)
		deadlineHit.Store(ctx.Err() == nil)
		return proc.terminate()
	}
	cmd.WaitDelay = waitDelay

	startTime := time.Now()
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w: %s: %w", domain.ErrInfrastructure, domain.ErrInterpreterNotFound, e.pythonPath, err)
		}
		return nil, fmt.Errorf("%w: start interpreter: %w", domain.ErrInfrastructure, err)
	}

	waitErr := cmd.Wait()
	elapsed := time.Since(startTime)

	// Reap descendants that outlived the interpreter.
	if err := proc.terminate(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		e.logger.Warn("Failed to terminate process group", zap.String("workspace", ws.dir), zap.Error(err))
	}

	if cancelled.Load() && !deadlineHit.Load() {
		return nil, fmt.Errorf("%w: execution aborted: %w", domain.ErrInfrastructure, context.Cause(ctx))
	}

	result := &domain.ExecutionResult{
		Stdout:   stdout.Text(),
		Stderr:   stderr.Text(),
		ExitCode: exitCode(cmd.ProcessState),
		Duration: elapsed,
	}

	if deadlineHit.Load() {
		result.TimedOut = true
		result.ExitCode = domain.TimedOutExitCode
	} else if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) && !errors.Is(waitErr, exec.ErrWaitDelay) {
			return nil, fmt.Errorf("%w: wait for interpreter: %w", domain.ErrInfrastructure, waitErr)
		}
	}

	e.logger.Debug("Execution completed",
		zap.String("workspace", ws.dir),
		zap.Duration("elapsed", elapsed),
		zap.Int("exit_code", result.ExitCode),
		zap.Bool("timed_out", result.TimedOut),
	)

	return result, nil
}

// removeWorkspace runs on every exit path of Execute, panics included.
func (e *LocalExecutor) removeWorkspace(ws *workspace) {
	if err := ws.remove(); err != nil {
		metrics.WorkspaceCleanupFailures.Inc()
		e.logger.Error("Failed to remove workspace", zap.String("workspace", ws.dir), zap.Error(err))
	}
}

// childEnv is the whole environment of learner code; the server's own is not inherited.
func childEnv(workDir string) []string {
	path := os.Getenv("PATH")
	if path == "" {
		path = fallbackPath
	}
	return []string{
		"PATH=" + path,
		"HOME=" + workDir,
		"LANG=C.UTF-8",
		"PYTHONIOENCODING=utf-8",
		"PYTHONUNBUFFERED=1",
		"PYTHONDONTWRITEBYTECODE=1",
	}
}

func outcomeOf(r *domain.ExecutionResult) string {
	switch {
	case r.TimedOut:
		return metrics.OutcomeTimeout
	case r.IsSuccess():
		return metrics.OutcomeSuccess
	}
	return metrics.OutcomeFailure
}
