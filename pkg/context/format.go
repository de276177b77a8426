package context

import (
	"fmt"
	"strings"

	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/rag"
)

// Separator 相邻文档块之间的分隔符。
const Separator = "\n\n---\n\n"

// FormatDocument 将文档渲染为上下文中的一个块。
// 预算按渲染后的整块计数。
func FormatDocument(doc rag.Document) string {
	return formatBlock(doc.DisplayTitle(), doc.Content)
}

func formatBlock(title, body string) string {
	return fmt.Sprintf("Document: %s\n\n%s", title, body)
}

// JoinBlocks 用分隔符拼接文档块。
func JoinBlocks(blocks []string) string {
	return strings.Join(blocks, Separator)
}
