//go:build linux

// Package camera 提供帧源适配与相机句柄管理。
package camera

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// processLock 一把基于 flock 的跨进程相机锁。
// 锁随文件描述符存在，持锁进程崩溃时内核自动释放。
type processLock struct {
	f *os.File
}

// lockFilePath 由相机标识派生锁文件路径。
// 标识经散列后截断，设备节点路径等特殊字符不进入文件名。
func lockFilePath(dir, cameraID string) string {
	sum := sha1.Sum([]byte(cameraID))
	return filepath.Join(dir, "lumen-camera-"+hex.EncodeToString(sum[:8])+".lock")
}

// acquireProcessLock 对相机的锁文件加排他 flock，阻塞直到获得。
func acquireProcessLock(dir, cameraID string) (*processLock, error) {
	f, err := os.OpenFile(lockFilePath(dir, cameraID), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open camera lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("lock camera lock file: %w", err)
	}
	return &processLock{f: f}, nil
}

// release 解锁并关闭锁文件。
func (l *processLock) release() {
	_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	_ = l.f.Close()
}
