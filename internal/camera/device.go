// Package camera 提供帧源适配与相机句柄管理。
package camera

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/oriys/lumen/internal/domain"
)

// DeviceCamera 智能相机的本机设备节点适配。
// 每次 Grab 从设备节点读取一帧已编码的图像数据。
type DeviceCamera struct {
	devicePath string
}

// NewDeviceCamera 打开设备节点对应的相机。
func NewDeviceCamera(devicePath string) (*DeviceCamera, error) {
	if _, err := os.Stat(devicePath); err != nil {
		return nil, fmt.Errorf("open device %s: %w", devicePath, err)
	}
	return &DeviceCamera{devicePath: devicePath}, nil
}

// Grab 从设备节点读取一帧。
func (c *DeviceCamera) Grab(ctx context.Context, cfg domain.AcquisitionConfig) (*domain.RawFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(c.devicePath)
	if err != nil {
		return nil, fmt.Errorf("grab from %s: %w", c.devicePath, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("grab from %s: empty frame", c.devicePath)
	}
	return &domain.RawFrame{
		CameraID:   c.devicePath,
		Data:       data,
		Format:     "jpeg",
		CapturedAt: time.Now(),
	}, nil
}

// Close 释放设备节点句柄。
func (c *DeviceCamera) Close() error {
	return nil
}
