package executor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dkedar7/pyshala/internal/domain"
)

const (
	workspacePrefix = "pyshala-*"
	scriptName      = domain.ScriptName
)

// workspace is the call-scoped scratch directory of one execution.
type workspace struct {
	dir string
}

// newWorkspace creates a uniquely named directory under root (os.TempDir when empty).
func newWorkspace(root string) (*workspace, error) {
	if root != "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("create work root: %w", err)
		}
	}
	dir, err := os.MkdirTemp(root, workspacePrefix)
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	return &workspace{dir: dir}, nil
}

// stage writes every data file at its relative path, byte for byte.
func (w *workspace) stage(files []domain.DataFile) error {
	for _, f := range files {
		target := filepath.Join(w.dir, filepath.FromSlash(f.CleanPath()))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("stage %s: %w", f.Path, err)
		}
		if err := os.WriteFile(target, f.Content, 0o644); err != nil {
			return fmt.Errorf("stage %s: %w", f.Path, err)
		}
	}
	return nil
}

// writeScript stores the learner code as the program to run.
func (w *workspace) writeScript(code string) error {
	if err := os.WriteFile(filepath.Join(w.dir, scriptName), []byte(code), 0o644); err != nil {
		return fmt.Errorf("write source: %w", err)
	}
	return nil
}

func (w *workspace) remove() error {
	return os.RemoveAll(w.dir)
}
