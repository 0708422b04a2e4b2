// Package metrics 提供 Prometheus 指标采集与上报的统一封装。
// 该包集中定义设备关键指标（触发、流水线、监视器、回放等），便于在各模块复用并保持标签一致。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 封装设备运行时指标集合。
// 所有字段均为 Prometheus 指标类型，由各模块直接更新。
//
// 指标分类:
//   - 触发指标: 跟踪数字输入触发的点火、丢弃和在途执行
//   - 流水线指标: 跟踪采集和执行耗时、成败
//   - 监视器指标: 监视器重启与驱动故障
//   - 回放指标: 文件夹回放的处理与隔离
type Metrics struct {
	// ========== 触发相关指标 ==========

	// TriggerFiresTotal 触发点火总次数计数器
	// 标签: workflow_id
	TriggerFiresTotal *prometheus.CounterVec

	// TriggerDropsTotal 因并发容量耗尽被丢弃的触发次数计数器
	// 标签: workflow_id
	TriggerDropsTotal *prometheus.CounterVec

	// InFlightExecutions 在途流水线执行数
	// 标签: workflow_id
	InFlightExecutions *prometheus.GaugeVec

	// ========== 流水线相关指标 ==========

	// AcquisitionDuration 帧采集耗时直方图（单位：毫秒）
	// 标签: workflow_id
	// 桶边界: 1, 5, 10, 25, 50, 100, 250, 500, 1000 ms
	AcquisitionDuration *prometheus.HistogramVec

	// PipelineDuration 流水线执行耗时直方图（单位：毫秒）
	// 标签: workflow_id, status
	// 桶边界: 10, 50, 100, 250, 500, 1000, 2500, 5000, 10000 ms
	PipelineDuration *prometheus.HistogramVec

	// PipelineErrors 流水线执行错误计数器，按错误类型分类
	// 标签: workflow_id, error_type
	PipelineErrors *prometheus.CounterVec

	// ========== 监视器相关指标 ==========

	// MonitorRestartsTotal 监视器重启次数计数器（含驱动故障后的重新初始化）
	// 标签: workflow_id, reason
	MonitorRestartsTotal *prometheus.CounterVec

	// MonitorsRunning 当前运行中的监视器数
	MonitorsRunning prometheus.Gauge

	// ========== 回放相关指标 ==========

	// ReplayProcessedTotal 文件夹回放处理的文件数计数器
	// 标签: workflow_id, status (ok/failed)
	ReplayProcessedTotal *prometheus.CounterVec

	// ========== 工作流相关指标 ==========

	// WorkflowsTotal 已注册的工作流总数
	WorkflowsTotal prometheus.Gauge

	// TriggeredWorkflows 配置了数字输入触发器的工作流数
	TriggeredWorkflows prometheus.Gauge
}

// NewMetrics 创建并注册一组 Prometheus 指标。
// namespace 用于作为所有指标名前缀，便于在同一 Prometheus 中区分不同应用。
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		TriggerFiresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trigger_fires_total",
				Help:      "Total number of trigger fires",
			},
			[]string{"workflow_id"},
		),
		TriggerDropsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trigger_drops_total",
				Help:      "Total number of trigger fires dropped at capacity",
			},
			[]string{"workflow_id"},
		),
		InFlightExecutions: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "in_flight_executions",
				Help:      "Pipeline executions currently in flight",
			},
			[]string{"workflow_id"},
		),
		AcquisitionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "acquisition_duration_ms",
				Help:      "Frame acquisition duration in milliseconds",
				Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
			[]string{"workflow_id"},
		),
		PipelineDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_duration_ms",
				Help:      "Pipeline execution duration in milliseconds",
				Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
			},
			[]string{"workflow_id", "status"},
		),
		PipelineErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_errors_total",
				Help:      "Total number of pipeline execution errors",
			},
			[]string{"workflow_id", "error_type"},
		),
		MonitorRestartsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "monitor_restarts_total",
				Help:      "Total number of monitor restarts",
			},
			[]string{"workflow_id", "reason"},
		),
		MonitorsRunning: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "monitors_running",
				Help:      "Number of trigger monitors currently running",
			},
		),
		ReplayProcessedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "replay_processed_total",
				Help:      "Total number of replay files processed",
			},
			[]string{"workflow_id", "status"},
		),
		WorkflowsTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "workflows_total",
				Help:      "Total number of registered workflows",
			},
		),
		TriggeredWorkflows: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "triggered_workflows",
				Help:      "Number of workflows with a digital input trigger",
			},
		),
	}
}
