// Package metrics 报价循环的 Prometheus 指标。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 指标集合，挂在独立 registry 上，避免全局默认 registry 冲突。
type Metrics struct {
	registry *prometheus.Registry

	// 周期指标
	CyclesTotal   prometheus.Counter
	CycleErrors   prometheus.Counter
	CyclesNoop    prometheus.Counter
	CyclesDropped prometheus.Counter
	CycleDuration prometheus.Histogram

	// 订单指标
	OrdersPlaced   prometheus.Counter
	OrdersCanceled prometheus.Counter

	// 报价指标
	BidTicks prometheus.Gauge
	AskTicks prometheus.Gauge

	// 预言机指标
	OracleAge prometheus.Gauge
}

// Config 指标配置
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "omm",
		Subsystem: "quoter",
	}
}

// New 创建新的 Metrics 实例
func New(cfg Config) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		CyclesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "cycles_total",
			Help:      "报价周期总数",
		}),
		CycleErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "cycle_errors_total",
			Help:      "失败周期总数",
		}),
		CyclesNoop: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "cycles_noop_total",
			Help:      "空转周期总数（挂单与目标一致）",
		}),
		CyclesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "cycles_dropped_total",
			Help:      "因上一周期未结束而被丢弃的触发数",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "cycle_duration_seconds",
			Help:      "周期耗时分布（秒）",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),

		OrdersPlaced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_placed_total",
			Help:      "订单下单总数",
		}),
		OrdersCanceled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_canceled_total",
			Help:      "订单撤单总数",
		}),

		BidTicks: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "bid_price_in_ticks",
			Help:      "最近一次候选买价（tick）",
		}),
		AskTicks: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "ask_price_in_ticks",
			Help:      "最近一次候选卖价（tick）",
		}),

		OracleAge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "oracle_age_seconds",
			Help:      "最近读数的发布延迟（秒），取两条腿较大者",
		}),
	}
}

// Handler 返回HTTP handler用于暴露指标
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Serve 在addr上启动指标服务器
func (m *Metrics) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}
