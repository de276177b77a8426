package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/llm"
)

type assembleOptions struct {
	query      string
	strategy   string
	tokenLimit int
	documents  string
}

// buildAssembleCmd 创建 assemble 命令
func buildAssembleCmd(root *rootOptions) *cobra.Command {
	opts := &assembleOptions{}
	cmd := &cobra.Command{
		Use:   "assemble",
		Short: "Assemble the context one strategy would send for a query",
		Long: `Print the context a strategy assembles for a query. The context goes to
stdout and its token count to stderr, so the output can be piped.

Examples:
  ctxlab assemble --query "What causes context rot?"
  ctxlab assemble -q "Explain primacy bias" --strategy semantic_chunking --token-limit 1500`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssemble(cmd, root, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.query, "query", "q", "", "Query to rank documents against (required)")
	cmd.Flags().StringVar(&opts.strategy, "strategy", "sandwich", "Strategy name")
	cmd.Flags().IntVar(&opts.tokenLimit, "token-limit", 0, "Context token limit (default from config)")
	cmd.Flags().StringVar(&opts.documents, "documents", "", "Documents file (default from config)")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

func runAssemble(cmd *cobra.Command, root *rootOptions, opts *assembleOptions) error {
	a, err := newApp(cmd, root)
	if err != nil {
		return err
	}
	defer a.close()

	if opts.documents != "" {
		a.cfg.Paths.Documents = opts.documents
	}
	tokenLimit := a.cfg.Assembly.TokenLimit
	if opts.tokenLimit > 0 {
		tokenLimit = opts.tokenLimit
	}

	docs, err := a.loadCorpus(a.cfg.Paths.Documents)
	if err != nil {
		return err
	}

	embedder, embedProvider, err := a.embedder()
	if err != nil {
		return err
	}
	defer closeProvider(a, embedProvider)

	var generator llm.Generator
	if a.cfg.Assembly.LLMSummaries {
		p, err := a.provider(a.cfg.LLM)
		if err != nil {
			return err
		}
		defer closeProvider(a, p)
		generator = p
	}

	counter := a.tokenCounter()
	strategies, err := a.strategies([]string{opts.strategy}, embedder, generator, counter)
	if err != nil {
		return err
	}
	s := strategies[0]

	text, err := s.Assemble(cmd.Context(), docs, opts.query, tokenLimit)
	if err != nil {
		return fmt.Errorf("assemble with %s: %w", s.Name(), err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), text)
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d tokens (limit %d)\n", s.Name(), counter.Count(text), tokenLimit)
	return nil
}
