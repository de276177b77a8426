package evaluation_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/config"
	coreerrors "github.com/JSON-Bjorn/context-engineering-lesson/pkg/core/errors"
	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/evaluation"
)

func TestNewEvaluator_Validation(t *testing.T) {
	if _, err := evaluation.NewEvaluator(nil, nil); !errors.Is(err, coreerrors.ErrGeneratorRequired) {
		t.Errorf("nil generator: error = %v, want ErrGeneratorRequired", err)
	}

	gen := fixedGenerator("a", "5")
	_, err := evaluation.NewEvaluator(gen, nil, evaluation.WithMethod("bleu"))
	if !errors.Is(err, coreerrors.ErrUnknownScoringMethod) {
		t.Errorf("bad method: error = %v, want ErrUnknownScoringMethod", err)
	}

	e, err := evaluation.NewEvaluator(gen, nil)
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}
	if e.Method() != evaluation.ScoringHybrid {
		t.Errorf("default method = %q, want hybrid", e.Method())
	}
}

func TestGenerateAnswer(t *testing.T) {
	gen := fixedGenerator("  Paris is the capital.\n", "")
	e, _ := evaluation.NewEvaluator(gen, nil)

	answer, err := e.GenerateAnswer(context.Background(), "France facts", "What is the capital?")
	if err != nil {
		t.Fatalf("GenerateAnswer() error = %v", err)
	}
	if answer != "Paris is the capital." {
		t.Errorf("answer = %q, want trimmed text", answer)
	}

	reqs := gen.calls()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	prompt := reqs[0].Messages[0].Content
	for _, want := range []string{"Context:\nFrance facts", "Question: What is the capital?", "Answer:"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if got := *reqs[0].MaxTokens; got != 256 {
		t.Errorf("max tokens = %d, want 256", got)
	}
	if got := *reqs[0].Temperature; got != 0.7 {
		t.Errorf("temperature = %v, want 0.7", got)
	}
	if got := *reqs[0].TopP; got != 0.9 {
		t.Errorf("top_p = %v, want 0.9", got)
	}
}

func TestFromConfig(t *testing.T) {
	gen := fixedGenerator("x", "")
	cfg := config.EvaluationConfig{
		ScoringMethod:   config.ScoringLLMJudge,
		Temperature:     0.2,
		TopP:            0.5,
		MaxAnswerTokens: 64,
	}
	e, err := evaluation.NewEvaluator(gen, nil, evaluation.FromConfig(cfg)...)
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}
	if e.Method() != evaluation.ScoringLLMJudge {
		t.Errorf("method = %q, want llm_judge", e.Method())
	}

	if _, err := e.GenerateAnswer(context.Background(), "c", "q"); err != nil {
		t.Fatalf("GenerateAnswer() error = %v", err)
	}
	req := gen.calls()[0]
	if *req.MaxTokens != 64 || *req.Temperature != 0.2 || *req.TopP != 0.5 {
		t.Errorf("request = max %d temp %v top_p %v, want 64 0.2 0.5", *req.MaxTokens, *req.Temperature, *req.TopP)
	}
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		response string
		want     float64
		ok       bool
	}{
		{"8", 0.8, true},
		{"Rating: 7/10", 0.7, true},
		{" 10\n", 1.0, true},
		{"0", 0, true},
		{"15", 1.0, true},
		{"-3", 0.3, true},
		{"99999999999999999999999", 1.0, true},
		{"excellent", 0.5, false},
		{"", 0.5, false},
	}

	for _, tt := range tests {
		t.Run(tt.response, func(t *testing.T) {
			got, ok := evaluation.ParseRating(tt.response)
			if !approx(got, tt.want) || ok != tt.ok {
				t.Errorf("ParseRating(%q) = %v, %v; want %v, %v", tt.response, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestScoreAnswer_Semantic(t *testing.T) {
	emb := &tableEmbedder{vectors: map[string][]float32{
		"same":     {1, 0},
		"twin":     {1, 0},
		"opposite": {-1, 0},
		"aside":    {0, 1},
	}}
	e, _ := evaluation.NewEvaluator(fixedGenerator("", ""), emb)

	tests := []struct {
		name, answer, truth string
		want                float64
	}{
		{"identical", "same", "twin", 1.0},
		{"orthogonal", "same", "aside", 0.5},
		{"opposite", "same", "opposite", 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.ScoreAnswer(context.Background(), tt.answer, tt.truth, evaluation.ScoringSemantic)
			if err != nil {
				t.Fatalf("ScoreAnswer() error = %v", err)
			}
			if !approx(got, tt.want) {
				t.Errorf("score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScoreAnswer_SemanticEmptyText(t *testing.T) {
	emb := &tableEmbedder{vectors: map[string][]float32{
		"":       {0, 1},
		"truth":  {1, 0},
		"answer": {0, 1},
	}}
	e, _ := evaluation.NewEvaluator(fixedGenerator("", ""), emb)

	tests := []struct {
		answer, truth string
		want          float64
		wantCalls     int
	}{
		{"", "truth", 0.5, 1},
		{"answer", "", 1.0, 1},
		{"", "", 1.0, 0},
		{"truth", "truth", 1.0, 0},
	}
	for _, tt := range tests {
		emb.calls = 0
		got, err := e.ScoreAnswer(context.Background(), tt.answer, tt.truth, evaluation.ScoringSemantic)
		if err != nil {
			t.Fatalf("ScoreAnswer(%q, %q) error = %v", tt.answer, tt.truth, err)
		}
		if !approx(got, tt.want) {
			t.Errorf("ScoreAnswer(%q, %q) = %v, want %v", tt.answer, tt.truth, got, tt.want)
		}
		if emb.calls != tt.wantCalls {
			t.Errorf("ScoreAnswer(%q, %q) embedder calls = %d, want %d", tt.answer, tt.truth, emb.calls, tt.wantCalls)
		}
	}
}

func TestScoreAnswer_SemanticDimensionMismatch(t *testing.T) {
	emb := &tableEmbedder{vectors: map[string][]float32{"answer": {1, 0, 0}}}
	e, _ := evaluation.NewEvaluator(fixedGenerator("", ""), emb)

	_, err := e.ScoreAnswer(context.Background(), "answer", "truth", evaluation.ScoringSemantic)
	if !errors.Is(err, coreerrors.ErrEmbeddingFailed) {
		t.Errorf("error = %v, want ErrEmbeddingFailed", err)
	}
}

func TestScoreAnswer_SemanticWithoutEmbedder(t *testing.T) {
	e, _ := evaluation.NewEvaluator(fixedGenerator("", "9"), nil)

	_, err := e.ScoreAnswer(context.Background(), "a", "b", evaluation.ScoringSemantic)
	if !errors.Is(err, coreerrors.ErrEmbedderRequired) {
		t.Errorf("semantic error = %v, want ErrEmbedderRequired", err)
	}
	_, err = e.ScoreAnswer(context.Background(), "a", "b", evaluation.ScoringHybrid)
	if !errors.Is(err, coreerrors.ErrEmbedderRequired) {
		t.Errorf("hybrid error = %v, want ErrEmbedderRequired", err)
	}

	got, err := e.ScoreAnswer(context.Background(), "a", "b", evaluation.ScoringLLMJudge)
	if err != nil || !approx(got, 0.9) {
		t.Errorf("judge = %v, %v; want 0.9, nil", got, err)
	}
}

func TestScoreAnswer_JudgeRequest(t *testing.T) {
	gen := fixedGenerator("", "Rating: 6")
	e, _ := evaluation.NewEvaluator(gen, nil)

	got, err := e.ScoreAnswer(context.Background(), "generated", "reference", evaluation.ScoringLLMJudge)
	if err != nil {
		t.Fatalf("ScoreAnswer() error = %v", err)
	}
	if !approx(got, 0.6) {
		t.Errorf("score = %v, want 0.6", got)
	}

	req := gen.calls()[0]
	prompt := req.Messages[0].Content
	if !strings.Contains(prompt, "Reference Answer: reference") || !strings.Contains(prompt, "Generated Answer: generated") {
		t.Errorf("judge prompt does not carry both answers:\n%s", prompt)
	}
	if *req.Temperature != 0.1 || *req.MaxTokens != 5 {
		t.Errorf("judge request = temp %v max %d, want 0.1 5", *req.Temperature, *req.MaxTokens)
	}
}

func TestScoreAnswer_UnparseableJudgeIsNeutral(t *testing.T) {
	e, _ := evaluation.NewEvaluator(fixedGenerator("", "very similar"), nil)

	got, err := e.ScoreAnswer(context.Background(), "a", "b", evaluation.ScoringLLMJudge)
	if err != nil {
		t.Fatalf("ScoreAnswer() error = %v", err)
	}
	if got != evaluation.NeutralScore {
		t.Errorf("score = %v, want %v", got, evaluation.NeutralScore)
	}
}

func TestScoreAnswer_Hybrid(t *testing.T) {
	emb := &tableEmbedder{vectors: map[string][]float32{"a": {1, 0}, "b": {1, 0}}}
	e, _ := evaluation.NewEvaluator(fixedGenerator("", "6"), emb)

	got, err := e.ScoreAnswer(context.Background(), "a", "b", evaluation.ScoringHybrid)
	if err != nil {
		t.Fatalf("ScoreAnswer() error = %v", err)
	}
	if !approx(got, 0.8) {
		t.Errorf("hybrid = %v, want (1.0 + 0.6) / 2", got)
	}
}

func TestScoreAnswer_UnknownMethod(t *testing.T) {
	e, _ := evaluation.NewEvaluator(fixedGenerator("", ""), nil)

	_, err := e.ScoreAnswer(context.Background(), "a", "b", "rouge")
	if !errors.Is(err, coreerrors.ErrUnknownScoringMethod) {
		t.Errorf("error = %v, want ErrUnknownScoringMethod", err)
	}
}

func TestEvaluateBatch(t *testing.T) {
	gen := &scriptedGenerator{respond: func(prompt string) (string, error) {
		if isJudgePrompt(prompt) {
			return "7", nil
		}
		return "answer for " + contextOf(prompt), nil
	}}
	e, _ := evaluation.NewEvaluator(gen, nil, evaluation.WithMethod(evaluation.ScoringLLMJudge))

	items := []evaluation.BatchItem{
		{QuestionID: "q1", Question: "first?", Context: "c1", GroundTruth: "g1"},
		{QuestionID: "q2", Question: "second?", Context: "c2", GroundTruth: "g2"},
		{QuestionID: "q3", Question: "third?", Context: "c3", GroundTruth: "g3"},
	}

	var progress [][2]int
	records, err := e.EvaluateBatch(context.Background(), items, evaluation.WithProgress(func(done, total int) {
		progress = append(progress, [2]int{done, total})
	}))
	if err != nil {
		t.Fatalf("EvaluateBatch() error = %v", err)
	}

	want := []evaluation.BatchRecord{
		{QuestionID: "q1", Question: "first?", Answer: "answer for c1", GroundTruth: "g1", Score: 0.7},
		{QuestionID: "q2", Question: "second?", Answer: "answer for c2", GroundTruth: "g2", Score: 0.7},
		{QuestionID: "q3", Question: "third?", Answer: "answer for c3", GroundTruth: "g3", Score: 0.7},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][2]int{{1, 3}, {2, 3}, {3, 3}}, progress); diff != "" {
		t.Errorf("progress mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluateBatch_StopsAtFirstError(t *testing.T) {
	gen := &scriptedGenerator{respond: func(prompt string) (string, error) {
		if isJudgePrompt(prompt) {
			return "5", nil
		}
		if contextOf(prompt) == "broken" {
			return "", coreerrors.ErrRateLimited
		}
		return "ok", nil
	}}
	e, _ := evaluation.NewEvaluator(gen, nil, evaluation.WithMethod(evaluation.ScoringLLMJudge))

	items := []evaluation.BatchItem{
		{Question: "q1", Context: "fine"},
		{Question: "q2", Context: "broken"},
		{Question: "q3", Context: "fine"},
	}
	records, err := e.EvaluateBatch(context.Background(), items)
	if !errors.Is(err, coreerrors.ErrRateLimited) {
		t.Fatalf("error = %v, want ErrRateLimited", err)
	}
	if len(records) != 1 {
		t.Errorf("records = %d, want 1 completed before the failure", len(records))
	}
	// 第三题不应被调用：一次回答 + 一次打分 + 失败的回答
	if got := len(gen.calls()); got != 3 {
		t.Errorf("generator calls = %d, want 3", got)
	}
}

func TestEvaluateBatch_Canceled(t *testing.T) {
	gen := fixedGenerator("a", "5")
	e, _ := evaluation.NewEvaluator(gen, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records, err := e.EvaluateBatch(ctx, []evaluation.BatchItem{{Question: "q"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if len(records) != 0 || len(gen.calls()) != 0 {
		t.Errorf("records = %d, calls = %d; want 0, 0", len(records), len(gen.calls()))
	}
}

func TestEvaluateBatch_MethodOverride(t *testing.T) {
	emb := &tableEmbedder{vectors: map[string][]float32{"truth": {1, 0}}}
	gen := fixedGenerator("", "9")
	e, _ := evaluation.NewEvaluator(gen, emb)

	records, err := e.EvaluateBatch(context.Background(),
		[]evaluation.BatchItem{{Question: "q", GroundTruth: "truth"}},
		evaluation.WithBatchMethod(evaluation.ScoringSemantic),
	)
	if err != nil {
		t.Fatalf("EvaluateBatch() error = %v", err)
	}
	// 空回答照常嵌入，与标准答案正交；语义打分不调用生成模型
	if !approx(records[0].Score, 0.5) {
		t.Errorf("score = %v, want 0.5", records[0].Score)
	}
	if emb.calls != 1 {
		t.Errorf("embedder calls = %d, want 1", emb.calls)
	}
	if got := len(gen.calls()); got != 1 {
		t.Errorf("generator calls = %d, want 1", got)
	}
}
