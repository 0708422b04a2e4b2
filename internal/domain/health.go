// Package domain 定义了边缘视觉推理设备的核心领域模型。
package domain

import (
	"time"
)

// HealthState 表示单个触发监视器实例的健康状态
type HealthState string

const (
	// HealthStarting 监视器已启动、尚未完成第一次成功执行
	HealthStarting HealthState = "starting"
	// HealthRunning 最近一次执行成功
	HealthRunning HealthState = "running"
	// HealthError 轮询或执行过程中出现未捕获失败
	HealthError HealthState = "error"
)

// HealthStatus 按工作流 ID 记录的健康状态。
// 生命周期：监视器启动时创建为 starting；第一次成功执行后转为 running；
// 任何失败转为 error，下一次成功又转回 running；一旦离开 starting
// 就不会再回到 starting。监视器终止时条目被销毁。
type HealthStatus struct {
	// WorkflowID 所属工作流
	WorkflowID string `json:"workflow_id"`
	// State 当前健康状态
	State HealthState `json:"state"`
	// Error 错误详情（仅 error 状态有值）
	Error string `json:"error,omitempty"`
	// UpdatedAt 最近更新时间
	UpdatedAt time.Time `json:"updated_at"`
}
