package context

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/rag"
)

// dynamicAllocationStrategy 按相关性比例给每篇文档分配预算并截断。
//
// 份额为 max(score, 0) 归一化后的比例，且不低于 MinShare。
// 前一篇文档没用完的额度顺延给下一篇。输出按相关性降序。
type dynamicAllocationStrategy struct {
	cfg *Config
}

func (s *dynamicAllocationStrategy) Name() string { return string(DynamicAllocation) }

func (s *dynamicAllocationStrategy) Assemble(ctx context.Context, docs []rag.Document, query string, tokenLimit int) (string, error) {
	budget, err := s.cfg.budgetFor(tokenLimit)
	if budget == nil || err != nil || len(docs) == 0 {
		return "", err
	}
	ranked, err := s.cfg.Ranker.Rank(ctx, query, docs)
	if err != nil {
		return "", err
	}

	shares := allocationShares(ranked, s.cfg.MinShare)
	counter := budget.Counter()
	available := budget.Available()

	var (
		blocks []string
		carry  int
	)
	for i, r := range ranked {
		allowance := int(math.Floor(shares[i]*float64(available))) + carry
		allowance = min(allowance, budget.Remaining())

		block, used := fitBlock(counter, r.Document, allowance)
		if used == 0 || !budget.Add(used) {
			carry = allowance
			continue
		}
		blocks = append(blocks, block)
		carry = allowance - used
	}
	return JoinBlocks(blocks), nil
}

// allocationShares 计算每篇文档的预算份额。
func allocationShares(ranked []RankedDocument, minShare float64) []float64 {
	shares := make([]float64, len(ranked))
	var total float64
	for _, r := range ranked {
		total += math.Max(r.Score, 0)
	}
	for i, r := range ranked {
		if total == 0 {
			shares[i] = 1 / float64(len(ranked))
		} else {
			shares[i] = math.Max(r.Score, 0) / total
		}
		shares[i] = math.Max(shares[i], minShare)
	}
	return shares
}

// fitBlock 渲染文档块，正文过长时截断到 allowance 以内。
// 返回块文本与其 token 数，放不下时返回 0。
func fitBlock(counter TokenCounter, doc rag.Document, allowance int) (string, int) {
	block := FormatDocument(doc)
	if n := counter.Count(block); n <= allowance {
		return block, n
	}

	header := counter.Count(formatBlock(doc.DisplayTitle(), ""))
	contentBudget := allowance - header
	// 截断边界可能让重新计数多出几个 token，逐步收紧
	for contentBudget > 0 {
		body := TruncateToBudget(counter, doc.Content, contentBudget)
		if strings.TrimSpace(body) == "" {
			return "", 0
		}
		block = formatBlock(doc.DisplayTitle(), body)
		n := counter.Count(block)
		if n <= allowance {
			return block, n
		}
		contentBudget -= n - allowance
	}
	return "", 0
}

// semanticChunkingStrategy 按分块与查询的相似度挑选内容。
//
// 文档被切成分块并写入向量存储，按相似度降序尝试放入，放不下的分块跳过后继续。
// 输出按文档分组，文档顺序为其最佳分块的顺序，组内分块保持原文顺序。
type semanticChunkingStrategy struct {
	cfg     *Config
	chunker *rag.RecursiveCharacterChunker
}

func newSemanticChunkingStrategy(cfg *Config) *semanticChunkingStrategy {
	return &semanticChunkingStrategy{
		cfg:     cfg,
		chunker: rag.NewRecursiveCharacterChunker(cfg.ChunkSize, cfg.ChunkOverlap),
	}
}

func (s *semanticChunkingStrategy) Name() string { return string(SemanticChunking) }

func (s *semanticChunkingStrategy) Assemble(ctx context.Context, docs []rag.Document, query string, tokenLimit int) (string, error) {
	budget, err := s.cfg.budgetFor(tokenLimit)
	if budget == nil || err != nil || len(docs) == 0 {
		return "", err
	}

	titles := make(map[string]string, len(docs))
	var chunks []rag.DocumentChunk
	for i, doc := range docs {
		if doc.ID == "" {
			doc.ID = fmt.Sprintf("#%d", i)
		}
		titles[doc.ID] = doc.DisplayTitle()
		chunks = append(chunks, s.chunker.Chunk(doc)...)
	}
	if len(chunks) == 0 {
		return "", nil
	}

	texts := make([]string, 0, len(chunks)+1)
	texts = append(texts, query)
	for _, c := range chunks {
		texts = append(texts, c.Content)
	}
	vectors, err := s.cfg.Ranker.Embedder().Embed(ctx, texts)
	if err != nil {
		return "", fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(texts) {
		return "", fmt.Errorf("embed chunks: expected %d vectors, got %d", len(texts), len(vectors))
	}
	for i := range chunks {
		chunks[i].Vector = vectors[i+1]
	}

	store := rag.NewInMemoryVectorStore()
	if err := store.Add(ctx, chunks); err != nil {
		return "", err
	}
	results, err := store.Search(ctx, vectors[0], 0)
	if err != nil {
		return "", err
	}

	counter := budget.Counter()

	var (
		order    []string
		selected = make(map[string][]rag.DocumentChunk)
		cost     = make(map[string]int)
	)
	for _, r := range results {
		docID := r.Chunk.DocumentID
		candidate := append(append([]rag.DocumentChunk(nil), selected[docID]...), r.Chunk)
		n := counter.Count(renderChunks(titles[docID], candidate))
		if !budget.Add(n - cost[docID]) {
			continue
		}
		if _, seen := selected[docID]; !seen {
			order = append(order, docID)
		}
		selected[docID] = candidate
		cost[docID] = n
	}

	blocks := make([]string, 0, len(order))
	for _, docID := range order {
		blocks = append(blocks, renderChunks(titles[docID], selected[docID]))
	}
	return JoinBlocks(blocks), nil
}

// renderChunks 将同一文档的分块按原文顺序渲染为一个块。
func renderChunks(title string, chunks []rag.DocumentChunk) string {
	sorted := append([]rag.DocumentChunk(nil), chunks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	parts := make([]string, len(sorted))
	for i, c := range sorted {
		parts[i] = c.Content
	}
	return formatBlock(title, strings.Join(parts, "\n\n"))
}

// hierarchicalSummaryStrategy 高相关文档保留全文，其余文档以摘要形式出现。
//
// 全文层按相关性降序放入，直到占满 FullTextShare 比例的可用预算。
// 剩余文档平分剩余预算生成摘要，放不下的摘要跳过。
type hierarchicalSummaryStrategy struct {
	cfg        *Config
	summarizer Summarizer
}

func (s *hierarchicalSummaryStrategy) Name() string { return string(HierarchicalSummary) }

func (s *hierarchicalSummaryStrategy) Assemble(ctx context.Context, docs []rag.Document, query string, tokenLimit int) (string, error) {
	budget, err := s.cfg.budgetFor(tokenLimit)
	if budget == nil || err != nil || len(docs) == 0 {
		return "", err
	}
	ranked, err := s.cfg.Ranker.Rank(ctx, query, docs)
	if err != nil {
		return "", err
	}

	counter := budget.Counter()
	fullLimit := int(math.Floor(s.cfg.FullTextShare * float64(budget.Available())))

	var blocks []string
	i := 0
	for ; i < len(ranked); i++ {
		block := FormatDocument(ranked[i].Document)
		n := counter.Count(block)
		if budget.Used()+n > fullLimit || !budget.Add(n) {
			break
		}
		blocks = append(blocks, block)
	}

	rest := ranked[i:]
	if len(rest) == 0 {
		return JoinBlocks(blocks), nil
	}

	perDoc := budget.Remaining() / len(rest)
	for _, r := range rest {
		header := counter.Count(formatBlock(r.Document.DisplayTitle(), summaryPrefix))
		if perDoc-header <= 0 {
			break
		}
		summary, err := s.summarizer.Summarize(ctx, r.Document, perDoc-header)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(summary) == "" {
			continue
		}
		block := formatBlock(r.Document.DisplayTitle(), summaryPrefix+summary)
		if budget.AddText(block) {
			blocks = append(blocks, block)
		}
	}
	return JoinBlocks(blocks), nil
}

const summaryPrefix = "Summary: "

var (
	_ Strategy = (*naiveStrategy)(nil)
	_ Strategy = (*primacyStrategy)(nil)
	_ Strategy = (*recencyStrategy)(nil)
	_ Strategy = (*sandwichStrategy)(nil)
	_ Strategy = (*dynamicAllocationStrategy)(nil)
	_ Strategy = (*semanticChunkingStrategy)(nil)
	_ Strategy = (*hierarchicalSummaryStrategy)(nil)
)
