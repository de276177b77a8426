package otel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics 基于 Prometheus 注册表的指标实现
//
// 评估是一次性的命令行运行，没有可供抓取的常驻进程，
// 因此指标在运行结束时通过 WriteTextfile 写成 node_exporter textfile 格式。
// 每个指标的标签名在第一次记录时确定，之后标签集不一致的记录会被丢弃。
type PrometheusMetrics struct {
	namespace  string
	registry   *prometheus.Registry
	counters   map[string]*promCounter
	histograms map[string]*promHistogram
	gauges     map[string]*promGauge
	mu         sync.Mutex
}

// NewPrometheusMetrics 创建 Prometheus 指标，namespace 作为指标名前缀
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	return &PrometheusMetrics{
		namespace:  sanitizeMetricName(namespace),
		registry:   prometheus.NewRegistry(),
		counters:   make(map[string]*promCounter),
		histograms: make(map[string]*promHistogram),
		gauges:     make(map[string]*promGauge),
	}
}

// Registry 返回底层注册表
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Counter 返回或创建计数器
func (m *PrometheusMetrics) Counter(name string) Counter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.counters[name]; ok {
		return c
	}
	c := &promCounter{promVec: promVec{owner: m, name: name}}
	m.counters[name] = c
	return c
}

// Histogram 返回或创建直方图
func (m *PrometheusMetrics) Histogram(name string) Histogram {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.histograms[name]; ok {
		return h
	}
	h := &promHistogram{promVec: promVec{owner: m, name: name}}
	m.histograms[name] = h
	return h
}

// Gauge 返回或创建仪表
func (m *PrometheusMetrics) Gauge(name string) Gauge {
	m.mu.Lock()
	defer m.mu.Unlock()

	if g, ok := m.gauges[name]; ok {
		return g
	}
	g := &promGauge{promVec: promVec{owner: m, name: name}}
	m.gauges[name] = g
	return g
}

// WriteTextfile 将当前所有指标写入 textfile
func (m *PrometheusMetrics) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %v", ErrExportFailed, err)
		}
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	return nil
}

// promVec 懒创建的指标向量公共部分
type promVec struct {
	owner  *PrometheusMetrics
	name   string
	labels []string
	once   sync.Once
}

func (v *promVec) fqName() string {
	return prometheus.BuildFQName(v.owner.namespace, "", sanitizeMetricName(v.name))
}

func (v *promVec) help() string {
	return describe(v.name).Description
}

// init 以第一次记录的属性键确定标签名
func (v *promVec) init(attrs []Attr, create func(labels []string) prometheus.Collector) {
	v.once.Do(func() {
		v.labels = labelNames(attrs)
		if err := v.owner.registry.Register(create(v.labels)); err != nil {
			v.labels = nil
		}
	})
}

func (v *promVec) values(attrs []Attr) (prometheus.Labels, bool) {
	if len(attrs) != len(v.labels) {
		return nil, false
	}
	labels := make(prometheus.Labels, len(attrs))
	for _, a := range attrs {
		labels[sanitizeMetricName(a.Key)] = fmt.Sprint(a.Value)
	}
	for _, l := range v.labels {
		if _, ok := labels[l]; !ok {
			return nil, false
		}
	}
	return labels, true
}

type promCounter struct {
	promVec
	vec *prometheus.CounterVec
}

func (c *promCounter) Add(_ context.Context, value int64, attrs ...Attr) {
	c.init(attrs, func(labels []string) prometheus.Collector {
		c.vec = prometheus.NewCounterVec(prometheus.CounterOpts{Name: c.fqName(), Help: c.help()}, labels)
		return c.vec
	})
	if labels, ok := c.values(attrs); ok && c.vec != nil && value >= 0 {
		if m, err := c.vec.GetMetricWith(labels); err == nil {
			m.Add(float64(value))
		}
	}
}

type promHistogram struct {
	promVec
	vec *prometheus.HistogramVec
}

func (h *promHistogram) Record(_ context.Context, value float64, attrs ...Attr) {
	h.init(attrs, func(labels []string) prometheus.Collector {
		h.vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    h.fqName(),
			Help:    h.help(),
			Buckets: histogramBuckets(h.name),
		}, labels)
		return h.vec
	})
	if labels, ok := h.values(attrs); ok && h.vec != nil {
		if m, err := h.vec.GetMetricWith(labels); err == nil {
			m.Observe(value)
		}
	}
}

type promGauge struct {
	promVec
	vec *prometheus.GaugeVec
}

func (g *promGauge) Set(_ context.Context, value float64, attrs ...Attr) {
	g.init(attrs, func(labels []string) prometheus.Collector {
		g.vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: g.fqName(), Help: g.help()}, labels)
		return g.vec
	})
	if labels, ok := g.values(attrs); ok && g.vec != nil {
		if m, err := g.vec.GetMetricWith(labels); err == nil {
			m.Set(value)
		}
	}
}

// histogramBuckets 按指标选择分桶
func histogramBuckets(name string) []float64 {
	switch describe(name).Unit {
	case UnitMilliseconds:
		return []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000}
	case UnitTokens:
		return prometheus.ExponentialBuckets(64, 2, 10)
	default:
		// 得分位于 [0, 1]
		return prometheus.LinearBuckets(0.1, 0.1, 10)
	}
}

func labelNames(attrs []Attr) []string {
	names := make([]string, 0, len(attrs))
	for _, a := range attrs {
		names = append(names, sanitizeMetricName(a.Key))
	}
	sort.Strings(names)
	return names
}

// sanitizeMetricName 将 OTel 风格的点分名称转换为 Prometheus 合法名称
func sanitizeMetricName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

var _ Metrics = (*PrometheusMetrics)(nil)
