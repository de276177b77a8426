package rag

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	coreerrors "github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/errors"
)

// LoadDocuments 从 JSON 文件加载语料文档
//
// 文件可以是 {"documents": [...]} 形式，也可以直接是文档数组。
func LoadDocuments(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", coreerrors.ErrInvalidDocumentFile, err)
	}
	return DecodeDocuments(data)
}

// DecodeDocuments 解析并校验文档 JSON
func DecodeDocuments(data []byte) ([]Document, error) {
	if err := initCorpusSchemas(); err != nil {
		return nil, err
	}
	items, err := unwrapList(data, "documents", corpusSchemas.documents)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", coreerrors.ErrInvalidDocumentFile, err)
	}

	var docs []Document
	if err := json.Unmarshal(items, &docs); err != nil {
		return nil, fmt.Errorf("%w: %v", coreerrors.ErrInvalidDocumentFile, err)
	}
	return docs, nil
}

// LoadQuestions 从 JSON 文件加载评测问题
//
// 文件可以是 {"questions": [...]} 形式，也可以直接是问题数组。
func LoadQuestions(path string) ([]Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", coreerrors.ErrInvalidQuestionFile, err)
	}
	return DecodeQuestions(data)
}

// DecodeQuestions 解析并校验问题 JSON
func DecodeQuestions(data []byte) ([]Question, error) {
	if err := initCorpusSchemas(); err != nil {
		return nil, err
	}
	items, err := unwrapList(data, "questions", corpusSchemas.questions)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", coreerrors.ErrInvalidQuestionFile, err)
	}

	var questions []Question
	if err := json.Unmarshal(items, &questions); err != nil {
		return nil, fmt.Errorf("%w: %v", coreerrors.ErrInvalidQuestionFile, err)
	}
	return questions, nil
}

// unwrapList 取出包装键下的数组（或顶层数组）并按 schema 校验
func unwrapList(data []byte, key string, schema *jsonschema.Schema) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}

	var items any
	switch v := payload.(type) {
	case map[string]any:
		list, ok := v[key]
		if !ok {
			return nil, fmt.Errorf("missing top-level %q key", key)
		}
		items = list
	case []any:
		items = v
	default:
		return nil, fmt.Errorf("expected an object with %q or an array", key)
	}

	if err := schema.Validate(items); err != nil {
		return nil, err
	}
	return json.Marshal(items)
}

// ValidateDocuments 检查文档字段完整性
//
// 缺少 content 为必需字段问题，缺少 id、title、tokens 为建议字段问题。
// 仅当不存在必需字段问题时 valid 为 true。
func ValidateDocuments(docs []Document) (valid bool, problems []string) {
	valid = true
	for i, doc := range docs {
		if doc.Content == "" {
			valid = false
			problems = append(problems, fmt.Sprintf("document %d missing required field: content", i))
		}
		if doc.ID == "" {
			problems = append(problems, fmt.Sprintf("document %d missing recommended field: id", i))
		}
		if doc.Title == "" {
			problems = append(problems, fmt.Sprintf("document %d missing recommended field: title", i))
		}
		if doc.TokenCount == 0 {
			problems = append(problems, fmt.Sprintf("document %d missing recommended field: tokens", i))
		}
	}
	return valid, problems
}

// IndexDocuments 按 ID 建立文档索引，忽略没有 ID 的文档
func IndexDocuments(docs []Document) map[string]Document {
	index := make(map[string]Document, len(docs))
	for _, doc := range docs {
		if doc.ID != "" {
			index[doc.ID] = doc
		}
	}
	return index
}

// Coverage 计算选中文档占全部语料 token 的比例
func Coverage(selected, all []Document) float64 {
	var picked, total int
	for _, doc := range selected {
		picked += doc.TokenCount
	}
	for _, doc := range all {
		total += doc.TokenCount
	}
	if total == 0 {
		return 0
	}
	return float64(picked) / float64(total)
}
