//go:build !linux

// Package camera 提供帧源适配与相机句柄管理。
package camera

// processLock 非 linux 平台的空实现。
// 进程托管模式只在 linux 上可用，跨进程相机锁在其他平台没有对手方。
type processLock struct{}

func acquireProcessLock(dir, cameraID string) (*processLock, error) {
	return &processLock{}, nil
}

func (l *processLock) release() {}
