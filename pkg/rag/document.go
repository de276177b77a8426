// Package rag 提供实验语料的数据模型、加载、分块与向量检索
package rag

import (
	"encoding/json"
	"strings"
)

// Document 语料文档
//
// 加载后不可变。TokenCount 来自语料文件，应与独立重新计数的结果基本一致。
type Document struct {
	// ID 文档唯一标识
	ID string `json:"id"`
	// Title 标题
	Title string `json:"title"`
	// Content 文档正文
	Content string `json:"content"`
	// TokenCount 预先统计的 token 数
	TokenCount int `json:"tokens"`
	// Category 分类
	Category string `json:"category,omitempty"`
	// RelevanceKeywords 相关关键词
	RelevanceKeywords []string `json:"relevance_keywords,omitempty"`
}

// UnmarshalJSON 兼容 token_count 与 keywords 两个历史字段名
func (d *Document) UnmarshalJSON(data []byte) error {
	type alias Document
	aux := struct {
		*alias
		TokenCount *int     `json:"token_count"`
		Keywords   []string `json:"keywords"`
	}{alias: (*alias)(d)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if d.TokenCount == 0 && aux.TokenCount != nil {
		d.TokenCount = *aux.TokenCount
	}
	if len(d.RelevanceKeywords) == 0 && len(aux.Keywords) > 0 {
		d.RelevanceKeywords = aux.Keywords
	}
	return nil
}

// DisplayTitle 返回用于渲染的标题，缺失时为 "Untitled"
func (d Document) DisplayTitle() string {
	if strings.TrimSpace(d.Title) == "" {
		return "Untitled"
	}
	return d.Title
}

// Question 评测问题
type Question struct {
	// ID 问题唯一标识
	ID string `json:"id"`
	// Question 问题文本
	Question string `json:"question"`
	// GroundTruth 标准答案
	GroundTruth string `json:"ground_truth"`
	// RelevantDocs 相关文档 ID
	RelevantDocs []string `json:"relevant_docs,omitempty"`
	// Difficulty 难度
	Difficulty string `json:"difficulty,omitempty"`
	// QuestionType 问题类型
	QuestionType string `json:"question_type,omitempty"`
}

// UnmarshalJSON 兼容 ground_truth_answer 与 relevant_doc_ids 字段名
func (q *Question) UnmarshalJSON(data []byte) error {
	type alias Question
	aux := struct {
		*alias
		GroundTruthAnswer string   `json:"ground_truth_answer"`
		RelevantDocIDs    []string `json:"relevant_doc_ids"`
	}{alias: (*alias)(q)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if q.GroundTruth == "" {
		q.GroundTruth = aux.GroundTruthAnswer
	}
	if len(q.RelevantDocs) == 0 && len(aux.RelevantDocIDs) > 0 {
		q.RelevantDocs = aux.RelevantDocIDs
	}
	return nil
}

// DocumentChunk 文档分块
type DocumentChunk struct {
	// ID 分块唯一标识
	ID string `json:"id"`
	// DocumentID 所属文档 ID
	DocumentID string `json:"document_id"`
	// Title 所属文档标题
	Title string `json:"title,omitempty"`
	// Content 分块内容
	Content string `json:"content"`
	// Index 分块在文档中的序号
	Index int `json:"index"`
	// Vector 嵌入向量
	Vector []float32 `json:"vector,omitempty"`
}

// RetrievalResult 检索结果
type RetrievalResult struct {
	Chunk DocumentChunk `json:"chunk"`
	Score float64       `json:"score"`
}
