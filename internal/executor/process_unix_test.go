//go:build unix

package executor

import (
	"bytes"
	"context"
	"os"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkedar7/pyshala/internal/domain"
)

// processAlive treats zombies as dead: they are gone as far as learner code is concerned.
func processAlive(pid int) bool {
	stat, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return syscall.Kill(pid, 0) == nil
	}
	// Format: pid (comm) state ...
	idx := bytes.LastIndexByte(stat, ')')
	if idx < 0 || idx+2 >= len(stat) {
		return true
	}
	return stat[idx+2] != 'Z'
}

func TestExecute_TimeoutKillsProcessGroup(t *testing.T) {
	exe, root := newTestExecutor(t, Options{Timeout: 800 * time.Millisecond})

	code := `
import subprocess, sys, time
child = subprocess.Popen([sys.executable, '-c', 'import time; time.sleep(30)'])
print(child.pid)
time.sleep(30)
`
	result, err := exe.Execute(context.Background(), &domain.ExecutionRequest{Code: code})
	require.NoError(t, err)
	require.True(t, result.TimedOut)

	pid, err := strconv.Atoi(strings.TrimSpace(result.Stdout))
	require.NoError(t, err, "child pid not printed: %q", result.Stdout)

	assert.Eventually(t, func() bool { return !processAlive(pid) }, 3*time.Second, 50*time.Millisecond,
		"forked child %d outlived the timeout", pid)
	assertNoWorkspaces(t, root)
}

func TestExecute_ReapsBackgroundChildrenOnNormalExit(t *testing.T) {
	exe, _ := newTestExecutor(t, Options{})

	code := `
import subprocess, sys
child = subprocess.Popen([sys.executable, '-c', 'import time; time.sleep(30)'],
                         stdout=subprocess.DEVNULL, stderr=subprocess.DEVNULL)
print(child.pid)
`
	result, err := exe.Execute(context.Background(), &domain.ExecutionRequest{Code: code})
	require.NoError(t, err)
	require.True(t, result.IsSuccess(), result.Stderr)

	pid, err := strconv.Atoi(strings.TrimSpace(result.Stdout))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return !processAlive(pid) }, 3*time.Second, 50*time.Millisecond)
}

func TestExecute_WorkspaceRemovedWhenGroupKillFails(t *testing.T) {
	exe, root := newTestExecutor(t, Options{Timeout: 300 * time.Millisecond})

	var calls int
	signalGroup = func(pid int, sig syscall.Signal) error {
		calls++
		return syscall.EPERM
	}
	t.Cleanup(func() { signalGroup = syscall.Kill })

	result, err := exe.Execute(context.Background(), &domain.ExecutionRequest{Code: "import time\ntime.sleep(10)"})
	require.NoError(t, err)

	assert.True(t, result.TimedOut)
	assert.Equal(t, domain.TimedOutExitCode, result.ExitCode)
	assert.GreaterOrEqual(t, calls, 1)
	assertNoWorkspaces(t, root)
}

func TestExecute_SignalledProcessReportsNegativeSignal(t *testing.T) {
	exe, _ := newTestExecutor(t, Options{})

	result, err := exe.Execute(context.Background(), &domain.ExecutionRequest{
		Code: "import os, signal\nos.kill(os.getpid(), signal.SIGTERM)",
	})
	require.NoError(t, err)

	assert.False(t, result.TimedOut)
	assert.Equal(t, -int(syscall.SIGTERM), result.ExitCode)
	assert.Equal(t, "Process exited with code -15", result.ErrorMessage())
}
