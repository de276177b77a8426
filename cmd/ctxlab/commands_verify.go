package main

import (
	"github.com/spf13/cobra"

	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/verify"
)

type verifyOptions struct {
	results   string
	progress  string
	documents string
}

// buildVerifyCmd 创建 verify 命令
func buildVerifyCmd(root *rootOptions) *cobra.Command {
	opts := &verifyOptions{}
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Grade the results file and write the progress report",
		Long: `Run the six lesson checks against the results file and write the progress
report. Exits with status 0 on PASS and 1 on FAIL.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.results, "results", "", "Results file (default from config)")
	cmd.Flags().StringVar(&opts.progress, "progress", "", "Progress report file (default from config)")
	cmd.Flags().StringVar(&opts.documents, "documents", "", "Documents file (default from config)")
	return cmd
}

func runVerify(cmd *cobra.Command, root *rootOptions, opts *verifyOptions) error {
	a, err := newApp(cmd, root)
	if err != nil {
		return err
	}
	defer a.close()

	paths := a.cfg.Paths
	if opts.results != "" {
		paths.Results = opts.results
	}
	if opts.progress != "" {
		paths.Progress = opts.progress
	}
	if opts.documents != "" {
		paths.Documents = opts.documents
	}

	v := verify.New(
		verify.WithResultsPath(paths.Results),
		verify.WithProgressPath(paths.Progress),
		verify.WithDocumentsPath(paths.Documents),
		verify.WithOutput(cmd.OutOrStdout()),
		verify.WithLogger(a.logger),
		verify.WithTelemetry(a.telemetry.Tracer(), a.telemetry.Metrics()),
	)
	report, err := v.Run(cmd.Context())
	if err != nil {
		return err
	}
	if !report.Passed() {
		return errVerificationFailed
	}
	return nil
}
