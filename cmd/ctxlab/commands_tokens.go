package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	ctxeng "github.com/JSON-Bjorn/context-engineering-lesson/pkg/context"
	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/rag"
)

// 存储计数与重新计数的差距不超过 max(driftMinTokens, driftRatio*stored) 视为一致
const (
	driftRatio     = 0.1
	driftMinTokens = 2
)

type tokensOptions struct {
	documents  string
	tokenLimit int
	estimate   bool
}

// buildTokensCmd 创建 tokens 命令
func buildTokensCmd(root *rootOptions) *cobra.Command {
	opts := &tokensOptions{}
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Recount document tokens and check them against the budget",
		Long: `Recount every document's content, flag stored token counts that drift from
the recount, and report how many formatted documents fit the context budget in
corpus order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokens(cmd, root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.documents, "documents", "", "Documents file (default from config)")
	cmd.Flags().IntVar(&opts.tokenLimit, "token-limit", 0, "Context token limit (default from config)")
	cmd.Flags().BoolVar(&opts.estimate, "estimate", false, "Estimate tokens from characters instead of tiktoken")
	return cmd
}

func runTokens(cmd *cobra.Command, root *rootOptions, opts *tokensOptions) error {
	a, err := newApp(cmd, root)
	if err != nil {
		return err
	}
	defer a.close()

	path := a.cfg.Paths.Documents
	if opts.documents != "" {
		path = opts.documents
	}
	tokenLimit := a.cfg.Assembly.TokenLimit
	if opts.tokenLimit > 0 {
		tokenLimit = opts.tokenLimit
	}

	docs, err := rag.LoadDocuments(path)
	if err != nil {
		return err
	}

	var counter ctxeng.TokenCounter
	if opts.estimate {
		counter = ctxeng.NewEstimatedCounter()
	} else {
		counter = a.tokenCounter()
	}

	budget, err := ctxeng.NewBudget(tokenLimit, a.cfg.Assembly.Overhead, counter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tPARAGRAPHS\tSTORED\tCOUNTED\tDRIFT\tBLOCK\tFITS")
	var (
		fitted   []rag.Document
		problems []string
	)
	full := false
	for _, doc := range docs {
		paragraphs, err := rag.ChunkText(doc.Content, rag.ChunkParagraph, 0)
		if err != nil {
			return err
		}

		counted := counter.Count(doc.Content)
		drift := "ok"
		if doc.TokenCount > 0 && !withinDriftTolerance(doc.TokenCount, counted) {
			drift = "!"
			problems = append(problems, fmt.Sprintf("%s: stored %d tokens, recounted %d", doc.ID, doc.TokenCount, counted))
		}

		// 预算按带标题的文档块计
		block := ctxeng.FormatDocument(doc)
		blockTokens := counter.Count(block)
		fits := !full && budget.Add(blockTokens)
		if fits {
			fitted = append(fitted, doc)
		} else {
			full = true
			if !ctxeng.FitsInBudget(counter, block, budget.Available()) {
				problems = append(problems, fmt.Sprintf("%s: formatted block needs %d tokens, more than the %d available",
					doc.ID, blockTokens, budget.Available()))
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%d\t%t\n",
			doc.ID, doc.Title, len(paragraphs), doc.TokenCount, counted, drift, blockTokens, fits)
	}
	tw.Flush()

	fmt.Fprintf(out, "\nDocuments: %d\n", len(docs))
	fmt.Fprintf(out, "Estimated total: %d tokens\n", ctxeng.EstimateDocumentTokens(counter, docs, true))
	fmt.Fprintf(out, "Budget: %s\n", budget)
	fmt.Fprintf(out, "Fit in corpus order: %d/%d (%.1f%% of available budget used, %.1f%% of corpus tokens)\n",
		len(fitted), len(docs), budget.Utilization()*100, rag.Coverage(fitted, docs)*100)

	problems = append(problems, duplicateIDs(docs)...)
	if _, p := rag.ValidateDocuments(docs); len(p) > 0 {
		problems = append(problems, p...)
	}
	if len(problems) > 0 {
		fmt.Fprintln(out, "\nProblems:")
		for _, p := range problems {
			fmt.Fprintf(out, "  - %s\n", p)
		}
	}
	return nil
}

func withinDriftTolerance(stored, counted int) bool {
	diff := stored - counted
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) <= max(driftMinTokens, driftRatio*float64(stored))
}

// duplicateIDs 报告与其他文档共用 ID 的文档数
func duplicateIDs(docs []rag.Document) []string {
	withID := 0
	for _, doc := range docs {
		if doc.ID != "" {
			withID++
		}
	}
	index := rag.IndexDocuments(docs)
	if len(index) == withID {
		return nil
	}
	return []string{fmt.Sprintf("%d documents share an id with another document", withID-len(index))}
}
