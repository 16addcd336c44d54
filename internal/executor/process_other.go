//go:build !unix

package executor

import (
	"os"
	"os/exec"
)

// process owns the OS handle of one interpreter run. Without process groups only
// the interpreter itself can be terminated.
type process struct {
	cmd *exec.Cmd
}

func newProcess(cmd *exec.Cmd) *process {
	return &process{cmd: cmd}
}

func (p *process) terminate() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

func exitCode(state *os.ProcessState) int {
	if state == nil {
		return -1
	}
	return state.ExitCode()
}
