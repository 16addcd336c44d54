package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dkedar7/pyshala/internal/domain"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	var (
		stdin     string
		stdinFile string
	)

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Execute a program once and print the execution result",
		Example: `  grader run solution.py
  grader run solution.py --stdin "3"
  grader run solution.py --stdin-file input.txt --data data/numbers.csv --timeout 5s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if stdinFile != "" {
				data, err := os.ReadFile(stdinFile)
				if err != nil {
					return err
				}
				stdin = string(data)
			}
			dataFiles, err := flags.dataFiles()
			if err != nil {
				return err
			}

			eng, err := flags.engine()
			if err != nil {
				return err
			}
			defer eng.logger.Sync()

			result, err := eng.exec.Execute(cmd.Context(), &domain.ExecutionRequest{
				Code:      string(code),
				Stdin:     stdin,
				Timeout:   flags.timeout,
				DataFiles: dataFiles,
			})
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.IsSuccess() {
				return errUnsuccessful
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&stdin, "stdin", "", "Text fed to the program's standard input")
	cmd.Flags().StringVar(&stdinFile, "stdin-file", "", "File fed to the program's standard input")
	cmd.MarkFlagsMutuallyExclusive("stdin", "stdin-file")
	return cmd
}
