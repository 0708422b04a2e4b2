// Package trigger 提供数字输入触发监视器及其执行宿主。
package trigger

import (
	"github.com/oriys/lumen/internal/domain"
)

// MonitorRunner 监视器执行宿主。
// 每个工作流 ID 至多托管一个监视器实例；对已在运行的 ID 调用 Start
// 会先隐式停止旧实例再启动新实例。两种实现：ThreadRunner 在守护进程内
// 以协程托管，ProcessRunner 以独立子进程托管。监视器逻辑本身只写一份，
// 宿主只负责托管方式与健康通道的选择。
type MonitorRunner interface {
	// Start 为工作流启动监视器，已在运行时先隐式停止
	Start(def *domain.WorkflowDefinition) error
	// Stop 停止工作流的监视器并释放其健康条目
	Stop(workflowID string) error
	// IsRunning 返回工作流是否有托管中的监视器
	IsRunning(workflowID string) bool
	// Health 读取工作流监视器的健康状态
	Health(workflowID string) (*domain.HealthStatus, error)
	// Shutdown 停止所有托管中的监视器
	Shutdown() error
}

// validateTriggerDef 校验定义可以被托管：必须带触发器且图像源支持触发采集。
func validateTriggerDef(def *domain.WorkflowDefinition) error {
	if !def.HasTrigger() {
		return domain.ErrInvalidTriggerPin
	}
	if !def.Source.SupportsTriggeredAcquisition() {
		return domain.ErrTriggerSourceUnsupported
	}
	return nil
}
