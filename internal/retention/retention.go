// Package retention 定期清理过期的拍摄记录与落盘产物。
package retention

import (
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/oriys/lumen/internal/config"
)

// Store 保留策略需要的存储能力。
type Store interface {
	ListArtifactPathsBefore(cutoff time.Time) ([]string, error)
	DeleteCapturesBefore(cutoff time.Time) (int64, error)
}

// Manager 按 cron 计划清理超过最大留存期的拍摄记录及其产物文件。
// 先删产物再删记录：清理中途失败时留下的是孤儿文件而不是指向
// 不存在文件的记录，下一轮会把孤儿文件补删掉。
type Manager struct {
	cron   *cron.Cron
	store  Store
	cfg    config.RetentionConfig
	logger *logrus.Logger
}

// NewManager 创建保留策略管理器。
func NewManager(store Store, cfg config.RetentionConfig, logger *logrus.Logger) *Manager {
	return &Manager{
		cron:   cron.New(),
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// Start 注册清理任务并启动调度器。策略未启用时不做任何事。
func (m *Manager) Start() error {
	if !m.cfg.Enabled {
		m.logger.Info("Retention disabled")
		return nil
	}

	if _, err := m.cron.AddFunc(m.cfg.Schedule, m.runOnce); err != nil {
		return err
	}
	m.cron.Start()
	m.logger.WithFields(logrus.Fields{
		"schedule": m.cfg.Schedule,
		"max_age":  m.cfg.MaxAge,
	}).Info("Retention manager started")
	return nil
}

// Stop 停止调度器。
func (m *Manager) Stop() {
	m.cron.Stop()
	m.logger.Info("Retention manager stopped")
}

// runOnce 执行一轮清理。
func (m *Manager) runOnce() {
	cutoff := time.Now().Add(-m.cfg.MaxAge)
	removed, failed, deleted, err := m.Sweep(cutoff)
	entry := m.logger.WithFields(logrus.Fields{
		"cutoff":          cutoff.Format(time.RFC3339),
		"artifacts":       removed,
		"artifact_errors": failed,
		"records":         deleted,
	})
	if err != nil {
		entry.WithError(err).Error("Retention sweep failed")
		return
	}
	entry.Info("Retention sweep completed")
}

// Sweep 删除 cutoff 之前的产物文件和拍摄记录。
// 返回删掉的产物数、删除失败的产物数和删掉的记录数。
func (m *Manager) Sweep(cutoff time.Time) (removed, failed int, deleted int64, err error) {
	paths, err := m.store.ListArtifactPathsBefore(cutoff)
	if err != nil {
		return 0, 0, 0, err
	}

	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			m.logger.WithError(err).WithField("path", path).Warn("Failed to remove expired artifact")
			failed++
			continue
		}
		removed++
	}

	deleted, err = m.store.DeleteCapturesBefore(cutoff)
	if err != nil {
		return removed, failed, 0, err
	}
	return removed, failed, deleted, nil
}
