package otel_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/JSON-Bjorn/context-engineering-lesson/pkg/otel"
)

func TestInMemoryMetrics_Counter(t *testing.T) {
	metrics := otel.NewInMemoryMetrics()
	ctx := context.Background()

	metrics.Counter(otel.MetricEvalQuestions).Add(ctx, 5)
	metrics.Counter(otel.MetricEvalQuestions).Add(ctx, 3, otel.NewAttr("strategy", "naive"))

	if value := metrics.GetCounterValue(otel.MetricEvalQuestions); value != 8 {
		t.Fatalf("expected counter value 8, got %d", value)
	}
	if value := metrics.GetCounterValue("non_existent"); value != 0 {
		t.Fatalf("expected 0 for non-existent counter, got %d", value)
	}
}

func TestInMemoryMetrics_HistogramAndGauge(t *testing.T) {
	metrics := otel.NewInMemoryMetrics()
	ctx := context.Background()

	metrics.Histogram(otel.MetricEvalScore).Record(ctx, 0.5)
	metrics.Histogram(otel.MetricEvalScore).Record(ctx, 0.75)
	if got := metrics.GetHistogramValues(otel.MetricEvalScore); len(got) != 2 || got[1] != 0.75 {
		t.Fatalf("unexpected histogram values %v", got)
	}

	gauge := metrics.Gauge(otel.MetricStrategyAccuracy)
	gauge.Set(ctx, 0.7)
	gauge.Set(ctx, 0.8)
	if value := metrics.GetGaugeValue(otel.MetricStrategyAccuracy); value != 0.8 {
		t.Fatalf("expected gauge value 0.8, got %f", value)
	}
}

func TestInMemoryMetrics_ConcurrentAccess(t *testing.T) {
	metrics := otel.NewInMemoryMetrics()
	ctx := context.Background()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			metrics.Counter("concurrent_counter").Add(ctx, 1)
		}()
	}

	wg.Wait()

	if value := metrics.GetCounterValue("concurrent_counter"); value != 100 {
		t.Fatalf("expected counter value 100, got %d", value)
	}
}

func TestMultiMetrics_FansOut(t *testing.T) {
	a, b := otel.NewInMemoryMetrics(), otel.NewInMemoryMetrics()
	metrics := otel.MultiMetrics{a, b}
	ctx := context.Background()

	metrics.Counter(otel.MetricEvalRuns).Add(ctx, 1)
	metrics.Gauge(otel.MetricStrategyAvgTokens).Set(ctx, 120)
	metrics.Histogram(otel.MetricContextTokens).Record(ctx, 300)

	for i, m := range []*otel.InMemoryMetrics{a, b} {
		if m.GetCounterValue(otel.MetricEvalRuns) != 1 {
			t.Errorf("backend %d missed counter", i)
		}
		if m.GetGaugeValue(otel.MetricStrategyAvgTokens) != 120 {
			t.Errorf("backend %d missed gauge", i)
		}
		if len(m.GetHistogramValues(otel.MetricContextTokens)) != 1 {
			t.Errorf("backend %d missed histogram", i)
		}
	}
}

func TestNoopMetrics(t *testing.T) {
	metrics := otel.NewNoopMetrics()
	ctx := context.Background()

	// 不应 panic
	metrics.Counter("test").Add(ctx, 100)
	metrics.Histogram("test").Record(ctx, 1.5)
	metrics.Gauge("test").Set(ctx, 42.0)
}

func TestPrometheusMetrics_WriteTextfile(t *testing.T) {
	metrics := otel.NewPrometheusMetrics("ctxlab")
	ctx := context.Background()

	metrics.Counter(otel.MetricEvalQuestions).Add(ctx, 2, otel.NewAttr("strategy", "naive"))
	metrics.Counter(otel.MetricEvalQuestions).Add(ctx, 1, otel.NewAttr("strategy", "sandwich"))
	metrics.Gauge(otel.MetricStrategyAccuracy).Set(ctx, 0.805, otel.NewAttr("strategy", "sandwich"))
	metrics.Histogram(otel.MetricEvalScore).Record(ctx, 0.9, otel.NewAttr("strategy", "naive"))

	// 标签集不一致的记录被丢弃
	metrics.Counter(otel.MetricEvalQuestions).Add(ctx, 10)

	count, err := testutil.GatherAndCount(metrics.Registry(), "ctxlab_eval_questions")
	if err != nil {
		t.Fatalf("GatherAndCount() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 labelled series, got %d", count)
	}

	path := filepath.Join(t.TempDir(), "textfile", "ctxlab.prom")
	if err := metrics.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{
		`# TYPE ctxlab_eval_questions counter`,
		`ctxlab_eval_questions{strategy="naive"} 2`,
		`ctxlab_eval_strategy_accuracy{strategy="sandwich"} 0.805`,
		`ctxlab_eval_score_count{strategy="naive"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("textfile missing %q:\n%s", want, text)
		}
	}
}

func TestMetricsImplementInterface(t *testing.T) {
	var _ otel.Metrics = otel.NewInMemoryMetrics()
	var _ otel.Metrics = otel.NewNoopMetrics()
	var _ otel.Metrics = otel.NewPrometheusMetrics("x")
	var _ otel.Metrics = otel.MultiMetrics{}
}
