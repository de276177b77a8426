package rag

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	coreerrors "github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/errors"
)

// DocumentChunker 文档分块器接口
type DocumentChunker interface {
	Chunk(doc Document) []DocumentChunk
}

// RecursiveCharacterChunker 递归字符分块器
//
// 按分隔符优先级逐级切分，直到每块长度不超过 ChunkSize。
// LengthFunction 默认按字节计长，可以替换为 token 计数。
type RecursiveCharacterChunker struct {
	ChunkSize      int
	ChunkOverlap   int
	Separators     []string
	LengthFunction func(string) int
}

// NewRecursiveCharacterChunker 创建递归字符分块器
func NewRecursiveCharacterChunker(chunkSize, overlap int) *RecursiveCharacterChunker {
	if overlap >= chunkSize {
		overlap = 0
	}
	return &RecursiveCharacterChunker{
		ChunkSize:    chunkSize,
		ChunkOverlap: overlap,
		Separators: []string{
			"\n\n", // 段落
			"\n",
			". ", "! ", "? ", // 句子
			"; ", ", ",
			" ",
			"",
		},
		LengthFunction: func(s string) int { return len(s) },
	}
}

// Chunk 将文档切分为按顺序编号的分块
func (c *RecursiveCharacterChunker) Chunk(doc Document) []DocumentChunk {
	pieces := c.split(doc.Content, c.Separators)

	chunks := make([]DocumentChunk, len(pieces))
	for i, content := range pieces {
		chunks[i] = DocumentChunk{
			ID:         chunkID(doc.ID, i),
			DocumentID: doc.ID,
			Title:      doc.Title,
			Content:    content,
			Index:      i,
		}
	}
	return chunks
}

func (c *RecursiveCharacterChunker) split(text string, separators []string) []string {
	if c.LengthFunction(text) <= c.ChunkSize {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{strings.TrimSpace(text)}
	}
	if len(separators) == 0 || separators[0] == "" {
		return c.splitByLength(text)
	}

	sep, rest := separators[0], separators[1:]
	parts := strings.Split(text, sep)

	var (
		out     []string
		current strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			out = append(out, s)
		}
		current.Reset()
	}

	for i, part := range parts {
		if i < len(parts)-1 {
			part += sep
		}

		if current.Len() > 0 && c.LengthFunction(current.String()+part) > c.ChunkSize {
			flush()
			if c.ChunkOverlap > 0 && len(out) > 0 {
				tail := overlapTail(out[len(out)-1], c.ChunkOverlap)
				if c.LengthFunction(tail+part) <= c.ChunkSize {
					current.WriteString(tail)
				}
			}
		}

		if c.LengthFunction(part) > c.ChunkSize {
			flush()
			out = append(out, c.split(part, rest)...)
			continue
		}
		current.WriteString(part)
	}
	flush()

	return out
}

// splitByLength 按固定 rune 长度切分，保留重叠
func (c *RecursiveCharacterChunker) splitByLength(text string) []string {
	runes := []rune(text)
	step := c.ChunkSize - c.ChunkOverlap
	if step <= 0 {
		step = c.ChunkSize
	}
	if step <= 0 {
		return []string{text}
	}

	var out []string
	for start := 0; start < len(runes); start += step {
		end := min(start+c.ChunkSize, len(runes))
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			out = append(out, s)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

// overlapTail 取文本末尾约 size 个字符，尽量从单词边界开始
func overlapTail(text string, size int) string {
	runes := []rune(text)
	if len(runes) > size {
		runes = runes[len(runes)-size:]
	}
	tail := string(runes)
	if i := strings.IndexFunc(tail, unicode.IsSpace); i >= 0 {
		tail = tail[i:]
	}
	return strings.TrimSpace(tail) + " "
}

func chunkID(docID string, index int) string {
	return fmt.Sprintf("%s#%d", docID, index)
}

// ChunkMethod 文本切分方式
type ChunkMethod string

const (
	// ChunkParagraph 按空行切分段落
	ChunkParagraph ChunkMethod = "paragraph"
	// ChunkSentence 按句末标点切分句子
	ChunkSentence ChunkMethod = "sentence"
	// ChunkFixed 按固定字符数切分
	ChunkFixed ChunkMethod = "fixed"
)

// DefaultFixedChunkSize 固定切分的默认字符数
const DefaultFixedChunkSize = 500

var sentenceBoundary = regexp.MustCompile(`[.!?]+\s+`)

// ChunkText 按指定方式切分文本
//
// maxSize 仅对 ChunkFixed 生效，小于等于 0 时使用 DefaultFixedChunkSize。
func ChunkText(text string, method ChunkMethod, maxSize int) ([]string, error) {
	switch method {
	case ChunkParagraph:
		return nonEmpty(strings.Split(text, "\n\n")), nil
	case ChunkSentence:
		return nonEmpty(sentenceBoundary.Split(text, -1)), nil
	case ChunkFixed:
		if maxSize <= 0 {
			maxSize = DefaultFixedChunkSize
		}
		runes := []rune(text)
		var out []string
		for i := 0; i < len(runes); i += maxSize {
			out = append(out, string(runes[i:min(i+maxSize, len(runes))]))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown chunking method %q", coreerrors.ErrInvalidConfig, method)
	}
}

func nonEmpty(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var _ DocumentChunker = (*RecursiveCharacterChunker)(nil)
