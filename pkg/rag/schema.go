package rag

import (
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

type corpusSchemaRegistry struct {
	once      sync.Once
	initErr   error
	documents *jsonschema.Schema
	questions *jsonschema.Schema
}

var corpusSchemas corpusSchemaRegistry

func initCorpusSchemas() error {
	corpusSchemas.once.Do(func() {
		docs, err := jsonschema.CompileString("documents.json", documentsSchema)
		if err != nil {
			corpusSchemas.initErr = err
			return
		}
		questions, err := jsonschema.CompileString("questions.json", questionsSchema)
		if err != nil {
			corpusSchemas.initErr = err
			return
		}
		corpusSchemas.documents = docs
		corpusSchemas.questions = questions
	})
	return corpusSchemas.initErr
}

const documentsSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["content"],
    "properties": {
      "id": {"type": "string"},
      "title": {"type": "string"},
      "content": {"type": "string"},
      "tokens": {"type": "integer", "minimum": 0},
      "token_count": {"type": "integer", "minimum": 0},
      "category": {"type": "string"},
      "relevance_keywords": {"type": "array", "items": {"type": "string"}},
      "keywords": {"type": "array", "items": {"type": "string"}}
    }
  }
}`

const questionsSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["question"],
    "anyOf": [
      {"required": ["ground_truth"]},
      {"required": ["ground_truth_answer"]}
    ],
    "properties": {
      "id": {"type": "string"},
      "question": {"type": "string", "minLength": 1},
      "ground_truth": {"type": "string"},
      "ground_truth_answer": {"type": "string"},
      "relevant_docs": {"type": "array", "items": {"type": "string"}},
      "relevant_doc_ids": {"type": "array", "items": {"type": "string"}},
      "difficulty": {"type": "string"},
      "question_type": {"type": "string"}
    }
  }
}`
