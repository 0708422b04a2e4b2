//go:build !linux

// Package trigger 提供数字输入触发监视器及其执行宿主。
package trigger

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oriys/lumen/internal/domain"
	"github.com/oriys/lumen/internal/health"
	"github.com/oriys/lumen/internal/metrics"
)

// errProcessRunnerUnsupported 进程托管依赖 Linux 的进程组与共享内存语义
var errProcessRunnerUnsupported = errors.New("process runner requires linux")

// ProcessRunner 非 Linux 平台的占位实现。
type ProcessRunner struct{}

// NewProcessRunner 创建子进程执行宿主的占位实现。
func NewProcessRunner(monitordPath, configPath string, stopTimeout time.Duration,
	channel health.Channel, m *metrics.Metrics, logger *logrus.Logger) *ProcessRunner {
	return &ProcessRunner{}
}

// Start 非 Linux 平台不支持。
func (r *ProcessRunner) Start(def *domain.WorkflowDefinition) error {
	return errProcessRunnerUnsupported
}

// Stop 非 Linux 平台不支持。
func (r *ProcessRunner) Stop(workflowID string) error { return errProcessRunnerUnsupported }

// IsRunning 非 Linux 平台恒为 false。
func (r *ProcessRunner) IsRunning(workflowID string) bool { return false }

// Health 非 Linux 平台不支持。
func (r *ProcessRunner) Health(workflowID string) (*domain.HealthStatus, error) {
	return nil, errProcessRunnerUnsupported
}

// Shutdown 非 Linux 平台无事可做。
func (r *ProcessRunner) Shutdown() error { return nil }
