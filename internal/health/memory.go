// Package health 提供监视器健康状态的上报通道。
package health

import (
	"sync"
	"time"

	"github.com/oriys/lumen/internal/domain"
)

// MemoryChannel 进程内健康通道，互斥锁保护的内存表。
// 线程托管模式下监视器协程与 API 处理器共享同一实例。
type MemoryChannel struct {
	mu      sync.RWMutex
	entries map[string]*domain.HealthStatus
}

// NewMemoryChannel 创建内存健康通道。
func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{entries: make(map[string]*domain.HealthStatus)}
}

// Allocate 创建健康条目，已存在时保持原状态不变。
func (c *MemoryChannel) Allocate(workflowID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[workflowID]; ok {
		return nil
	}
	c.entries[workflowID] = &domain.HealthStatus{
		WorkflowID: workflowID,
		State:      domain.HealthStarting,
		UpdatedAt:  time.Now(),
	}
	return nil
}

// Update 覆盖工作流的健康状态，条目不存在时隐式创建。
func (c *MemoryChannel) Update(workflowID string, state domain.HealthState, errDetail string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := &domain.HealthStatus{
		WorkflowID: workflowID,
		State:      state,
		UpdatedAt:  time.Now(),
	}
	if state == domain.HealthError {
		status.Error = errDetail
	}
	c.entries[workflowID] = status
	return nil
}

// Read 读取工作流当前健康状态的副本。
func (c *MemoryChannel) Read(workflowID string) (*domain.HealthStatus, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	status, ok := c.entries[workflowID]
	if !ok {
		return nil, domain.ErrHealthNotFound
	}
	copied := *status
	return &copied, nil
}

// Release 销毁工作流的健康条目。
func (c *MemoryChannel) Release(workflowID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, workflowID)
	return nil
}
