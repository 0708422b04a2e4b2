// Package trigger 提供数字输入触发监视器及其执行宿主。
package trigger

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/oriys/lumen/internal/camera"
	"github.com/oriys/lumen/internal/domain"
	"github.com/oriys/lumen/internal/gpio"
	"github.com/oriys/lumen/internal/health"
	"github.com/oriys/lumen/internal/metrics"
)

// ThreadRunner 协程托管的执行宿主。
// 监视器运行在守护进程内部，健康状态走进程内内存通道。
// 守护进程崩溃会带走所有监视器，这是该模式接受的取舍。
type ThreadRunner struct {
	driver   gpio.Driver
	frames   camera.FrameSource
	pipeline PipelineExecutor
	channel  health.Channel
	metrics  *metrics.Metrics
	logger   *logrus.Logger
	cfg      MonitorConfig

	mu       sync.Mutex
	monitors map[string]*Monitor
}

// NewThreadRunner 创建协程执行宿主。
func NewThreadRunner(driver gpio.Driver, frames camera.FrameSource, pipeline PipelineExecutor,
	channel health.Channel, m *metrics.Metrics, logger *logrus.Logger, cfg MonitorConfig) *ThreadRunner {
	return &ThreadRunner{
		driver:   driver,
		frames:   frames,
		pipeline: pipeline,
		channel:  channel,
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
		monitors: make(map[string]*Monitor),
	}
}

// Start 启动工作流的监视器协程，已在运行时先隐式停止旧实例。
func (r *ThreadRunner) Start(def *domain.WorkflowDefinition) error {
	if err := validateTriggerDef(def); err != nil {
		return err
	}

	if r.IsRunning(def.ID) {
		if err := r.Stop(def.ID); err != nil {
			return err
		}
	}

	if err := r.channel.Allocate(def.ID); err != nil {
		return err
	}

	mon := NewMonitor(def, r.driver, r.frames, r.pipeline, r.channel, r.metrics, r.logger, r.cfg)

	r.mu.Lock()
	r.monitors[def.ID] = mon
	r.mu.Unlock()

	mon.Start()
	if r.metrics != nil {
		r.metrics.MonitorsRunning.Inc()
	}
	r.logger.WithFields(logrus.Fields{
		"workflow_id": def.ID,
		"pin":         def.Trigger.Pin,
		"polarity":    def.Trigger.Polarity,
	}).Info("Monitor started in thread mode")
	return nil
}

// Stop 停止工作流的监视器并释放健康条目。
func (r *ThreadRunner) Stop(workflowID string) error {
	r.mu.Lock()
	mon, ok := r.monitors[workflowID]
	if ok {
		delete(r.monitors, workflowID)
	}
	r.mu.Unlock()
	if !ok {
		return domain.ErrMonitorNotRunning
	}

	mon.Stop()
	if err := r.channel.Release(workflowID); err != nil {
		return err
	}
	if r.metrics != nil {
		r.metrics.MonitorsRunning.Dec()
	}
	r.logger.WithField("workflow_id", workflowID).Info("Monitor stopped")
	return nil
}

// IsRunning 返回工作流是否有托管中的监视器。
func (r *ThreadRunner) IsRunning(workflowID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.monitors[workflowID]
	return ok
}

// Health 读取工作流监视器的健康状态。
func (r *ThreadRunner) Health(workflowID string) (*domain.HealthStatus, error) {
	return r.channel.Read(workflowID)
}

// Shutdown 停止所有托管中的监视器。
func (r *ThreadRunner) Shutdown() error {
	r.mu.Lock()
	ids := make([]string, 0, len(r.monitors))
	for id := range r.monitors {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		if err := r.Stop(id); err != nil && err != domain.ErrMonitorNotRunning {
			r.logger.WithError(err).WithField("workflow_id", id).Warn("Failed to stop monitor during shutdown")
		}
	}
	return nil
}
