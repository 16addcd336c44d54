//go:build unix

package executor

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// signalGroup is swapped in tests to simulate a failing kill.
var signalGroup = syscall.Kill

// process owns the OS handle of one interpreter run.
type process struct {
	cmd *exec.Cmd
}

// newProcess puts the child in its own process group so terminate reaches forked descendants.
func newProcess(cmd *exec.Cmd) *process {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return &process{cmd: cmd}
}

// terminate SIGKILLs the whole process group. If the group cannot be signalled the
// leader is killed directly so Wait still returns.
func (p *process) terminate() error {
	if p.cmd.Process == nil {
		return nil
	}
	err := signalGroup(-p.cmd.Process.Pid, syscall.SIGKILL)
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.ESRCH) {
		return os.ErrProcessDone
	}
	if killErr := p.cmd.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
		return errors.Join(err, killErr)
	}
	return err
}

// exitCode mirrors the interpreter convention: signal deaths report -signal.
func exitCode(state *os.ProcessState) int {
	if state == nil {
		return -1
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal())
	}
	return state.ExitCode()
}
