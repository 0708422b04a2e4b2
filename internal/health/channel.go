// Package health 提供监视器健康状态的上报通道。
// 通道有两种实现：线程托管用进程内内存通道，进程托管用跨进程共享内存通道。
// 两者遵循完全相同的契约，上层代码不感知差异。
package health

import (
	"github.com/oriys/lumen/internal/domain"
)

// Channel 健康状态通道。
// 生命周期：Allocate 创建条目（幂等，初始为 starting）；
// Update 覆盖状态；Read 返回最近一次状态；Release 销毁条目，
// 之后 Read 返回 domain.ErrHealthNotFound。
type Channel interface {
	// Allocate 为工作流创建健康条目，状态置为 starting。
	// 对已存在的条目调用是幂等的。
	Allocate(workflowID string) error
	// Update 更新工作流的健康状态，errDetail 仅在 error 状态时有意义
	Update(workflowID string, state domain.HealthState, errDetail string) error
	// Read 读取工作流当前健康状态
	Read(workflowID string) (*domain.HealthStatus, error)
	// Release 销毁工作流的健康条目
	Release(workflowID string) error
}
