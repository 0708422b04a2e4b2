//go:build !linux

// Package health 提供监视器健康状态的上报通道。
package health

import (
	"errors"

	"github.com/oriys/lumen/internal/domain"
)

// errShmUnsupported 共享内存通道仅支持 Linux
var errShmUnsupported = errors.New("shm health channel requires linux")

// ShmChannel 非 Linux 平台的占位实现，所有操作返回不支持错误。
type ShmChannel struct{}

// NewShmChannel 创建共享内存健康通道的占位实现。
func NewShmChannel(dir string) *ShmChannel {
	return &ShmChannel{}
}

// Allocate 非 Linux 平台不支持。
func (c *ShmChannel) Allocate(workflowID string) error { return errShmUnsupported }

// Update 非 Linux 平台不支持。
func (c *ShmChannel) Update(workflowID string, state domain.HealthState, errDetail string) error {
	return errShmUnsupported
}

// Read 非 Linux 平台不支持。
func (c *ShmChannel) Read(workflowID string) (*domain.HealthStatus, error) {
	return nil, errShmUnsupported
}

// Release 非 Linux 平台不支持。
func (c *ShmChannel) Release(workflowID string) error { return errShmUnsupported }
