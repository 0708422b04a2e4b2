// Package camera 提供帧源适配与相机句柄管理。
// 注册表是活动相机句柄的唯一拥有者：触发路径的同步采集与 API 侧的
// 预览/手动采集都必须经过同一把相机锁，保证对单台相机的访问串行化。
package camera

import (
	"context"

	"github.com/oriys/lumen/internal/domain"
)

// Camera 一个已连接的相机句柄。
type Camera interface {
	// Grab 按给定采集参数同步抓取一帧
	Grab(ctx context.Context, cfg domain.AcquisitionConfig) (*domain.RawFrame, error)
	// Close 断开相机连接
	Close() error
}

// ConnectFunc 按相机标识建立连接，注册表未命中时调用。
type ConnectFunc func(cameraID string) (Camera, error)

// FrameSource 帧源能力：在触发时刻同步采集一帧。
// 采集失败以 *domain.AcquisitionError 返回，调用方不重试。
type FrameSource interface {
	AcquireFrame(ctx context.Context, cameraID string, cfg domain.AcquisitionConfig) (*domain.RawFrame, error)
}
