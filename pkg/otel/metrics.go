package otel

import (
	"context"
	"slices"
	"sync"
)

// Metrics 指标后端
//
// 同名指标的记录汇总到同一个仪器。
type Metrics interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
	Gauge(name string) Gauge
}

// Counter 单调递增计数器
type Counter interface {
	Add(ctx context.Context, value int64, attrs ...Attr)
}

// Histogram 分布
type Histogram interface {
	Record(ctx context.Context, value float64, attrs ...Attr)
}

// Gauge 最近一次的值
type Gauge interface {
	Set(ctx context.Context, value float64, attrs ...Attr)
}

// Attr 指标标签
type Attr struct {
	Key   string
	Value any
}

// NewAttr 创建指标标签
func NewAttr(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// CounterFunc 函数形式的 Counter
type CounterFunc func(ctx context.Context, value int64, attrs ...Attr)

// Add 调用 f
func (f CounterFunc) Add(ctx context.Context, value int64, attrs ...Attr) { f(ctx, value, attrs...) }

// HistogramFunc 函数形式的 Histogram
type HistogramFunc func(ctx context.Context, value float64, attrs ...Attr)

// Record 调用 f
func (f HistogramFunc) Record(ctx context.Context, value float64, attrs ...Attr) {
	f(ctx, value, attrs...)
}

// GaugeFunc 函数形式的 Gauge
type GaugeFunc func(ctx context.Context, value float64, attrs ...Attr)

// Set 调用 f
func (f GaugeFunc) Set(ctx context.Context, value float64, attrs ...Attr) { f(ctx, value, attrs...) }

var (
	noopCounter   = CounterFunc(func(context.Context, int64, ...Attr) {})
	noopHistogram = HistogramFunc(func(context.Context, float64, ...Attr) {})
	noopGauge     = GaugeFunc(func(context.Context, float64, ...Attr) {})
)

// NoopMetrics 丢弃所有记录
type NoopMetrics struct{}

// NewNoopMetrics 创建空实现指标
func NewNoopMetrics() NoopMetrics { return NoopMetrics{} }

func (NoopMetrics) Counter(string) Counter     { return noopCounter }
func (NoopMetrics) Histogram(string) Histogram { return noopHistogram }
func (NoopMetrics) Gauge(string) Gauge         { return noopGauge }

// InMemoryMetrics 在内存中累积记录，测试里用来断言流水线发出的指标
//
// 标签被忽略，同名指标的记录合并在一起。
type InMemoryMetrics struct {
	mu         sync.Mutex
	counters   map[string]int64
	histograms map[string][]float64
	gauges     map[string]float64
}

// NewInMemoryMetrics 创建内存指标
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		counters:   make(map[string]int64),
		histograms: make(map[string][]float64),
		gauges:     make(map[string]float64),
	}
}

func (m *InMemoryMetrics) Counter(name string) Counter {
	return CounterFunc(func(_ context.Context, value int64, _ ...Attr) {
		m.mu.Lock()
		m.counters[name] += value
		m.mu.Unlock()
	})
}

func (m *InMemoryMetrics) Histogram(name string) Histogram {
	return HistogramFunc(func(_ context.Context, value float64, _ ...Attr) {
		m.mu.Lock()
		m.histograms[name] = append(m.histograms[name], value)
		m.mu.Unlock()
	})
}

func (m *InMemoryMetrics) Gauge(name string) Gauge {
	return GaugeFunc(func(_ context.Context, value float64, _ ...Attr) {
		m.mu.Lock()
		m.gauges[name] = value
		m.mu.Unlock()
	})
}

// GetCounterValue 返回计数器累计值
func (m *InMemoryMetrics) GetCounterValue(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

// GetHistogramValues 按记录顺序返回直方图的值
func (m *InMemoryMetrics) GetHistogramValues(name string) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.histograms[name])
}

// GetGaugeValue 返回仪表最近一次的值
func (m *InMemoryMetrics) GetGaugeValue(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gauges[name]
}

// MultiMetrics 将同一次记录分发给多个后端
//
// 评估运行同时向 OTel 导出器和 Prometheus textfile 写指标时使用。
type MultiMetrics []Metrics

func (m MultiMetrics) Counter(name string) Counter {
	each := make([]Counter, len(m))
	for i, b := range m {
		each[i] = b.Counter(name)
	}
	return CounterFunc(func(ctx context.Context, value int64, attrs ...Attr) {
		for _, c := range each {
			c.Add(ctx, value, attrs...)
		}
	})
}

func (m MultiMetrics) Histogram(name string) Histogram {
	each := make([]Histogram, len(m))
	for i, b := range m {
		each[i] = b.Histogram(name)
	}
	return HistogramFunc(func(ctx context.Context, value float64, attrs ...Attr) {
		for _, h := range each {
			h.Record(ctx, value, attrs...)
		}
	})
}

func (m MultiMetrics) Gauge(name string) Gauge {
	each := make([]Gauge, len(m))
	for i, b := range m {
		each[i] = b.Gauge(name)
	}
	return GaugeFunc(func(ctx context.Context, value float64, attrs ...Attr) {
		for _, g := range each {
			g.Set(ctx, value, attrs...)
		}
	})
}

var (
	_ Metrics = NoopMetrics{}
	_ Metrics = (*InMemoryMetrics)(nil)
	_ Metrics = MultiMetrics(nil)
)
