package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/config"
	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/evaluation"
	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/rag"
)

type evaluateOptions struct {
	documents     string
	questions     string
	output        string
	strategies    []string
	tokenLimit    int
	maxQuestions  int
	scoringMethod string
}

// buildEvaluateCmd 创建 evaluate 命令
func buildEvaluateCmd(root *rootOptions) *cobra.Command {
	opts := &evaluateOptions{}
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run every strategy over the question set and write the results file",
		Long: `Assemble context with each strategy, generate an answer for every question,
score it against the ground truth and write the aggregated results.

Examples:
  ctxlab evaluate
  ctxlab evaluate --strategies naive,sandwich,dynamic_allocation --max-questions 5
  ctxlab evaluate --scoring-method semantic --token-limit 2000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(cmd, root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.documents, "documents", "", "Documents file (default from config)")
	cmd.Flags().StringVar(&opts.questions, "questions", "", "Questions file (default from config)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Results file (default from config)")
	cmd.Flags().StringSliceVarP(&opts.strategies, "strategies", "s", nil, "Strategies to evaluate (default: all)")
	cmd.Flags().IntVar(&opts.tokenLimit, "token-limit", 0, "Context token limit (default from config)")
	cmd.Flags().IntVar(&opts.maxQuestions, "max-questions", -1, "Evaluate only the first N questions")
	cmd.Flags().StringVar(&opts.scoringMethod, "scoring-method", "", "semantic, llm_judge or hybrid")
	return cmd
}

// apply 命令行参数覆盖配置
func (o *evaluateOptions) apply(cfg *config.Config) {
	if o.documents != "" {
		cfg.Paths.Documents = o.documents
	}
	if o.questions != "" {
		cfg.Paths.Questions = o.questions
	}
	if o.output != "" {
		cfg.Paths.Results = o.output
	}
	if o.tokenLimit > 0 {
		cfg.Assembly.TokenLimit = o.tokenLimit
	}
	if o.maxQuestions >= 0 {
		cfg.Evaluation.MaxQuestions = o.maxQuestions
	}
	if o.scoringMethod != "" {
		cfg.Evaluation.ScoringMethod = config.ScoringMethod(o.scoringMethod)
	}
}

func runEvaluate(cmd *cobra.Command, root *rootOptions, opts *evaluateOptions) error {
	a, err := newApp(cmd, root)
	if err != nil {
		return err
	}
	defer a.close()

	opts.apply(a.cfg)
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	ctx := cmd.Context()

	docs, err := a.loadCorpus(a.cfg.Paths.Documents)
	if err != nil {
		return err
	}
	questions, err := rag.LoadQuestions(a.cfg.Paths.Questions)
	if err != nil {
		return err
	}

	generator, err := a.provider(a.cfg.LLM)
	if err != nil {
		return err
	}
	defer closeProvider(a, generator)

	embedder, embedProvider, err := a.embedder()
	if err != nil {
		return err
	}
	defer closeProvider(a, embedProvider)

	counter := a.tokenCounter()
	strategies, err := a.strategies(opts.strategies, embedder, generator, counter)
	if err != nil {
		return err
	}

	evaluator, err := evaluation.NewEvaluator(generator, embedder,
		append(evaluation.FromConfig(a.cfg.Evaluation), evaluation.WithLogger(a.logger))...,
	)
	if err != nil {
		return err
	}

	embedCfg := a.cfg.EmbeddingLLM()
	runner, err := evaluation.NewRunner(evaluator, strategies, evaluation.RunConfig{
		TokenLimit:     a.cfg.Assembly.TokenLimit,
		MaxQuestions:   a.cfg.Evaluation.MaxQuestions,
		Method:         a.cfg.Evaluation.ScoringMethod,
		Model:          a.cfg.LLM.Model,
		EmbeddingModel: embedCfg.EmbeddingModel,
	},
		evaluation.WithRunLogger(a.logger),
		evaluation.WithTelemetry(a.telemetry.Tracer(), a.telemetry.Metrics()),
		evaluation.WithContextCounter(counter),
		evaluation.WithRunProgress(progressPrinter(cmd.ErrOrStderr())),
	)
	if err != nil {
		return err
	}

	results, err := runner.Run(ctx, docs, questions)
	if err != nil {
		return err
	}
	if err := evaluation.WriteResults(a.cfg.Paths.Results, results); err != nil {
		return err
	}

	printSummary(cmd.OutOrStdout(), results)
	fmt.Fprintf(cmd.OutOrStdout(), "\nResults written to %s\n", a.cfg.Paths.Results)
	return nil
}

// progressPrinter 每个策略完成一题时覆盖输出同一行
func progressPrinter(w io.Writer) evaluation.ProgressFunc {
	return func(strategy string, done, total int) {
		fmt.Fprintf(w, "\r  %-22s %d/%d", strategy, done, total)
		if done == total {
			fmt.Fprintln(w)
		}
	}
}

func printSummary(w io.Writer, results *evaluation.Results) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STRATEGY\tACCURACY\tAVG TOKENS\tACCURACY +/-\tTOKENS -")
	for _, name := range results.StrategyNames() {
		r := results.Strategies[name]
		fmt.Fprintf(tw, "%s\t%.3f\t%.1f\t%s\t%s\n",
			name, r.AccuracyOr(0), r.AvgTokensOr(0),
			percent(r.AccuracyImprovement), percent(r.TokenReduction))
	}
	tw.Flush()
}

func percent(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%+.1f%%", *v*100)
}
