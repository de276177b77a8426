// Package context 实现上下文组装：token 预算、相关性排序与组装策略。
//
// 每个策略在给定 token 上限内从语料中选择文档并决定它们在上下文中的位置。
// 基础策略只改变顺序：
//
//   - naive：按原始顺序追加，第一次放不下即停止
//   - primacy：最相关的文档在最前
//   - recency：最相关的文档在最后
//   - sandwich：最相关的文档分布在两端
//
// 优化策略同时改变内容：
//
//   - hierarchical_summary：高相关文档保留全文，其余摘要
//   - semantic_chunking：按分块相关性挑选内容
//   - dynamic_allocation：按相关性比例分配预算并截断
//
// # 基本用法
//
//	ranker, _ := context.NewRanker(embedder)
//	s, err := context.NewStrategy(context.Sandwich,
//	    context.WithRanker(ranker),
//	    context.WithOverhead(context.DefaultOverhead),
//	)
//	text, err := s.Assemble(ctx, docs, "What is a token budget?", 4000)
//
// 每个文档渲染为 "Document: {title}\n\n{content}"，块之间以 Separator 分隔，
// 预算按渲染后的块计数。
package context
