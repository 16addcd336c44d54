package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dkedar7/pyshala/internal/casefile"
	"github.com/dkedar7/pyshala/internal/domain"
	"github.com/dkedar7/pyshala/internal/harness"
)

func newGradeCmd(flags *globalFlags) *cobra.Command {
	var casesPath string

	cmd := &cobra.Command{
		Use:   "grade FILE",
		Short: "Run a program against every test case and print the verdicts",
		Example: `  grader grade solution.py --cases lesson/cases.yaml
  grader grade solution.py --cases cases.yaml --data extra.txt --timeout 2s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			cases, err := casefile.Load(casesPath)
			if err != nil {
				return err
			}
			extra, err := flags.dataFiles()
			if err != nil {
				return err
			}

			eng, err := flags.engine()
			if err != nil {
				return err
			}
			defer eng.logger.Sync()

			h := harness.New(eng.exec, eng.cfg.Executor.Parallelism, eng.logger)
			results, err := h.RunTests(cmd.Context(), &domain.GradeRequest{
				Code:      string(code),
				TestCases: cases.TestCases,
				DataFiles: append(cases.DataFiles, extra...),
				Timeout:   flags.timeout,
			})
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
				return err
			}
			if !results.AllPassed() {
				return errUnsuccessful
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&casesPath, "cases", "c", "", "YAML file with test_cases and data_files")
	_ = cmd.MarkFlagRequired("cases")
	return cmd
}
