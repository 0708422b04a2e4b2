// Package folderwatch 托管文件夹图像源工作流的回放轮询器。
package folderwatch

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oriys/lumen/internal/domain"
	"github.com/oriys/lumen/internal/health"
	"github.com/oriys/lumen/internal/metrics"
)

// Manager 按工作流托管文件夹轮询器的生命周期。
// 与触发监视器的监督器平行：工作流创建、更新、删除时调用
// Reconcile/Remove 让轮询器集合跟上最新定义。
type Manager struct {
	pipeline     Pipeline
	channel      health.Channel
	metrics      *metrics.Metrics
	logger       *logrus.Logger
	scanInterval time.Duration

	mu       sync.Mutex
	watchers map[string]*Watcher
}

// NewManager 创建文件夹轮询器管理器。
func NewManager(pipeline Pipeline, channel health.Channel, m *metrics.Metrics,
	logger *logrus.Logger, scanInterval time.Duration) *Manager {
	return &Manager{
		pipeline:     pipeline,
		channel:      channel,
		metrics:      m,
		logger:       logger,
		scanInterval: scanInterval,
		watchers:     make(map[string]*Watcher),
	}
}

// StartAll 为所有活跃的文件夹工作流启动轮询器。
func (m *Manager) StartAll(workflows domain.WorkflowRepository) error {
	defs, _, err := workflows.ListWorkflows(0, 0)
	if err != nil {
		return err
	}
	started := 0
	for _, def := range defs {
		if !wantsWatcher(def) {
			continue
		}
		if err := m.Start(def); err != nil {
			m.logger.WithError(err).WithField("workflow_id", def.ID).Error("Failed to start folder watcher")
			continue
		}
		started++
	}
	m.logger.WithField("started", started).Info("Folder watch manager started")
	return nil
}

// Start 为工作流启动轮询器，已在运行时先隐式停止旧实例。
func (m *Manager) Start(def *domain.WorkflowDefinition) error {
	if def.Source.Type != domain.SourceTypeFolder {
		return domain.ErrInvalidImageSource
	}

	m.mu.Lock()
	if old, ok := m.watchers[def.ID]; ok {
		delete(m.watchers, def.ID)
		m.mu.Unlock()
		old.Stop()
		_ = m.channel.Release(def.ID)
		m.mu.Lock()
	}
	m.mu.Unlock()

	if err := m.channel.Allocate(def.ID); err != nil {
		return err
	}

	w := NewWatcher(def, m.pipeline, m.channel, m.metrics, m.logger, m.scanInterval)
	m.mu.Lock()
	m.watchers[def.ID] = w
	m.mu.Unlock()
	w.Start()
	return nil
}

// Stop 停止工作流的轮询器并释放健康条目。
func (m *Manager) Stop(workflowID string) error {
	m.mu.Lock()
	w, ok := m.watchers[workflowID]
	if ok {
		delete(m.watchers, workflowID)
	}
	m.mu.Unlock()
	if !ok {
		return domain.ErrMonitorNotRunning
	}

	w.Stop()
	return m.channel.Release(workflowID)
}

// IsRunning 返回工作流是否有托管中的轮询器。
func (m *Manager) IsRunning(workflowID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.watchers[workflowID]
	return ok
}

// Health 读取文件夹工作流的健康状态。
func (m *Manager) Health(workflowID string) (*domain.HealthStatus, error) {
	return m.channel.Read(workflowID)
}

// Reconcile 根据工作流的最新定义调整轮询器状态。
func (m *Manager) Reconcile(def *domain.WorkflowDefinition) error {
	if wantsWatcher(def) {
		return m.Start(def)
	}
	if m.IsRunning(def.ID) {
		return m.Stop(def.ID)
	}
	return nil
}

// Remove 工作流被删除后停掉其轮询器（若有）。
func (m *Manager) Remove(workflowID string) error {
	if !m.IsRunning(workflowID) {
		return nil
	}
	return m.Stop(workflowID)
}

// Shutdown 停止所有轮询器。
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.watchers))
	for id := range m.watchers {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.Stop(id); err != nil && err != domain.ErrMonitorNotRunning {
			m.logger.WithError(err).WithField("workflow_id", id).Warn("Failed to stop folder watcher during shutdown")
		}
	}
	return nil
}

func wantsWatcher(def *domain.WorkflowDefinition) bool {
	return def.Status == domain.WorkflowStatusActive && def.Source.Type == domain.SourceTypeFolder
}
