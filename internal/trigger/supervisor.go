// Package trigger 提供数字输入触发监视器及其执行宿主。
package trigger

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/oriys/lumen/internal/domain"
)

// HealthPublisher 健康转换事件的发布能力（可选协作方）。
type HealthPublisher interface {
	PublishHealthTransition(ctx context.Context, status *domain.HealthStatus) error
}

// Supervisor 工作流数字输入监督器。
// 启动时为每个持久化的带触发器工作流拉起监视器；工作流被创建、
// 更新或删除时同步调整对应监视器的生命周期。
type Supervisor struct {
	workflows domain.WorkflowRepository
	runner    MonitorRunner
	publisher HealthPublisher
	logger    *logrus.Logger
}

// NewSupervisor 创建监督器。publisher 允许为 nil。
func NewSupervisor(workflows domain.WorkflowRepository, runner MonitorRunner,
	publisher HealthPublisher, logger *logrus.Logger) *Supervisor {
	return &Supervisor{
		workflows: workflows,
		runner:    runner,
		publisher: publisher,
		logger:    logger,
	}
}

// StartAll 启动所有持久化的带触发器的活跃工作流的监视器。
// 单个监视器启动失败不阻止其余监视器启动。
func (s *Supervisor) StartAll(ctx context.Context) error {
	defs, err := s.workflows.ListWorkflowsWithTriggers()
	if err != nil {
		return err
	}

	started := 0
	for _, def := range defs {
		if def.Status != domain.WorkflowStatusActive {
			continue
		}
		if err := s.StartMonitor(def); err != nil {
			s.logger.WithError(err).WithField("workflow_id", def.ID).Error("Failed to start monitor")
			continue
		}
		started++
	}

	s.logger.WithFields(logrus.Fields{
		"persisted": len(defs),
		"started":   started,
	}).Info("Trigger supervisor started")
	return nil
}

// StartMonitor 为工作流启动（或重启）监视器。
func (s *Supervisor) StartMonitor(def *domain.WorkflowDefinition) error {
	return s.runner.Start(def)
}

// StopMonitor 停止工作流的监视器。
func (s *Supervisor) StopMonitor(workflowID string) error {
	return s.runner.Stop(workflowID)
}

// IsMonitorRunning 返回工作流是否有托管中的监视器。
func (s *Supervisor) IsMonitorRunning(workflowID string) bool {
	return s.runner.IsRunning(workflowID)
}

// Health 读取工作流监视器的健康状态。
func (s *Supervisor) Health(workflowID string) (*domain.HealthStatus, error) {
	return s.runner.Health(workflowID)
}

// Reconcile 根据工作流的最新定义调整监视器状态。
// 工作流创建和更新后调用：活跃且带触发器（相机类图像源）时启动或重启
// 监视器，其余情况停掉已有的监视器。
func (s *Supervisor) Reconcile(def *domain.WorkflowDefinition) error {
	wantsMonitor := def.Status == domain.WorkflowStatusActive &&
		def.HasTrigger() &&
		def.Source.SupportsTriggeredAcquisition()

	if wantsMonitor {
		if err := s.StartMonitor(def); err != nil {
			return err
		}
		s.publishHealth(def.ID)
		return nil
	}

	if s.IsMonitorRunning(def.ID) {
		return s.StopMonitor(def.ID)
	}
	return nil
}

// Remove 工作流被删除后停掉其监视器（若有）。
func (s *Supervisor) Remove(workflowID string) error {
	if !s.IsMonitorRunning(workflowID) {
		return nil
	}
	return s.StopMonitor(workflowID)
}

// Shutdown 停止所有监视器。
func (s *Supervisor) Shutdown() error {
	return s.runner.Shutdown()
}

// publishHealth 发布当前健康状态（尽力而为）。
func (s *Supervisor) publishHealth(workflowID string) {
	if s.publisher == nil {
		return
	}
	status, err := s.Health(workflowID)
	if err != nil {
		return
	}
	if err := s.publisher.PublishHealthTransition(context.Background(), status); err != nil {
		s.logger.WithError(err).WithField("workflow_id", workflowID).Debug("Failed to publish health transition")
	}
}
