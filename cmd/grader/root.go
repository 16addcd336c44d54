package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/dkedar7/pyshala/internal/config"
	"github.com/dkedar7/pyshala/internal/domain"
	"github.com/dkedar7/pyshala/internal/executor"
)

// errUnsuccessful is returned after the JSON report when the program failed or a test did not pass.
var errUnsuccessful = errors.New("unsuccessful")

type globalFlags struct {
	timeout   time.Duration
	dataPaths []string
	verbose   bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "grader",
		Short: "Run and grade Python lesson programs locally",
		Long: `grader executes a learner's Python program the way the lesson platform does:
in a throwaway workspace with optional data files, a deadline and captured output.
Results are printed as JSON. The exit status is 0 only when the run succeeded
or every test case passed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.String("python", "", "Python interpreter (overrides EXECUTOR_PYTHON_PATH)")
	pf.DurationVarP(&flags.timeout, "timeout", "t", 0, "Per-execution deadline, e.g. 5s (default EXECUTOR_TIMEOUT)")
	pf.StringArrayVar(&flags.dataPaths, "data", nil, "Data file to stage next to the script (can be used multiple times)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Log engine activity to stderr")
	_ = viper.BindPFlag("EXECUTOR_PYTHON_PATH", pf.Lookup("python"))

	rootCmd.AddCommand(newRunCmd(flags))
	rootCmd.AddCommand(newGradeCmd(flags))
	return rootCmd
}

// engine is the configured executor shared by the subcommands.
type engine struct {
	cfg    *config.Config
	exec   *executor.LocalExecutor
	logger *zap.Logger
}

func (f *globalFlags) engine() (*engine, error) {
	if f.timeout < 0 {
		return nil, fmt.Errorf("timeout must not be negative, got %s", f.timeout)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := zap.NewNop()
	if f.verbose {
		if logger, err = zap.NewProduction(); err != nil {
			return nil, err
		}
	}

	exec := executor.NewLocalExecutor(executor.Options{
		PythonPath:     cfg.Executor.PythonPath,
		Timeout:        cfg.Executor.Timeout,
		MaxOutputBytes: cfg.Executor.MaxOutputBytes,
		WorkRoot:       cfg.Executor.WorkRoot,
	}, logger)
	return &engine{cfg: cfg, exec: exec, logger: logger}, nil
}

// dataFiles loads every --data path. A relative path inside the current directory is
// staged at the same relative path; anything else is staged under its base name.
func (f *globalFlags) dataFiles() ([]domain.DataFile, error) {
	files := make([]domain.DataFile, 0, len(f.dataPaths))
	for _, p := range f.dataPaths {
		df, err := localDataFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, df)
	}
	return files, nil
}

func localDataFile(p string) (domain.DataFile, error) {
	content, err := os.ReadFile(p)
	if err != nil {
		return domain.DataFile{}, fmt.Errorf("data file: %w", err)
	}
	df := domain.NewDataFile(filepath.Base(p), filepath.ToSlash(p), content)
	if df.ValidatePath() != nil {
		df.Path = filepath.Base(p)
	}
	return df, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
