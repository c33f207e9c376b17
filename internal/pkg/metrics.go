package pkg

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
)

// 错误种类, 作为 romkit_errors_total 的 kind 标签
const (
	ErrKindOverrun  = "overrun"
	ErrKindEncoding = "encoding"
	ErrKindToken    = "missing_token"
	ErrKindCount    = "count_mismatch"
)

// Metrics 记录解码过程的计数指标, nil 指针上的方法都是空操作
type Metrics struct {
	StringsDecoded prometheus.Counter
	RecordsRead    prometheus.Counter
	Errors         *prometheus.CounterVec
}

// NewMetrics 创建并注册指标, reg 为 nil 时只创建不注册
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StringsDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "romkit",
			Name:      "strings_decoded_total",
			Help:      "Number of terminator-delimited strings decoded from the image.",
		}),
		RecordsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "romkit",
			Name:      "records_read_total",
			Help:      "Number of fixed-width records sliced from the image.",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "romkit",
			Name:      "errors_total",
			Help:      "Decode failures by kind.",
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.StringsDecoded, m.RecordsRead, m.Errors)
	}
	return m
}

// IncStrings 累加已解码的字符串数
func (m *Metrics) IncStrings(n int) {
	if m == nil {
		return
	}
	m.StringsDecoded.Add(float64(n))
}

// IncRecords 累加已读取的记录数
func (m *Metrics) IncRecords(n int) {
	if m == nil {
		return
	}
	m.RecordsRead.Add(float64(n))
}

// IncError 按类型记录一次失败
func (m *Metrics) IncError(kind string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(kind).Inc()
}

// LogMetrics 将已收集的计数指标写入日志
func LogMetrics(logger *zap.Logger, g prometheus.Gatherer) {
	families, err := g.Gather()
	if err != nil {
		logger.Warn("收集指标失败", zap.Error(err))
		return
	}
	for _, mf := range families {
		if mf.GetType() != dto.MetricType_COUNTER {
			continue
		}
		for _, metric := range mf.GetMetric() {
			fields := []zap.Field{
				zap.String("metric", mf.GetName()),
				zap.Float64("value", metric.GetCounter().GetValue()),
			}
			for _, lp := range metric.GetLabel() {
				fields = append(fields, zap.String(lp.GetName(), lp.GetValue()))
			}
			logger.Info("指标统计", fields...)
		}
	}
}
