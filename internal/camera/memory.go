// Package camera 提供帧源适配与相机句柄管理。
package camera

import (
	"context"
	"sync"
	"time"

	"github.com/oriys/lumen/internal/domain"
)

// MemoryCamera 内存相机，用于测试和无硬件环境。
// 每次 Grab 返回预置的帧数据，可注入抓取延迟和故障。
type MemoryCamera struct {
	mu sync.Mutex
	// ID 相机标识，写入产出帧
	ID string
	// FrameData 预置帧数据
	FrameData []byte
	// GrabDelay 每次抓取前的人为延迟
	GrabDelay time.Duration
	// GrabErr 非 nil 时 Grab 总是失败
	GrabErr error

	grabs  int
	closed bool
}

// NewMemoryCamera 创建内存相机。
func NewMemoryCamera(id string) *MemoryCamera {
	return &MemoryCamera{ID: id, FrameData: []byte("frame")}
}

// Grab 返回预置帧，记录抓取次数。
func (c *MemoryCamera) Grab(ctx context.Context, cfg domain.AcquisitionConfig) (*domain.RawFrame, error) {
	c.mu.Lock()
	delay := c.GrabDelay
	c.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.GrabErr != nil {
		return nil, c.GrabErr
	}
	c.grabs++
	return &domain.RawFrame{
		CameraID:   c.ID,
		Data:       c.FrameData,
		Format:     "jpeg",
		CapturedAt: time.Now(),
	}, nil
}

// Grabs 返回累计抓取次数。
func (c *MemoryCamera) Grabs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.grabs
}

// Closed 返回相机是否已被关闭。
func (c *MemoryCamera) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close 标记相机关闭。
func (c *MemoryCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
