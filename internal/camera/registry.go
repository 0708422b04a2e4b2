// Package camera 提供帧源适配与相机句柄管理。
package camera

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/oriys/lumen/internal/domain"
)

// Registry 相机句柄注册表。
// 每台相机一把互斥锁：触发路径的抓帧和 API 侧的预览竞争同一把锁，
// 而不同相机之间互不阻塞。句柄按需建立（connect-on-miss），
// 抓取失败时丢弃句柄，下次访问重新连接。
type Registry struct {
	connect ConnectFunc
	// lockDir 非空时 WithCamera 额外持有 dir 下按相机派生的 flock，
	// 串行化范围从进程内扩展到跨进程
	lockDir string

	mu      sync.Mutex
	entries map[string]*entry
}

// entry 单台相机的句柄槽位，perCam 串行化对该相机的所有访问。
type entry struct {
	perCam sync.Mutex
	cam    Camera
}

// NewRegistry 创建相机注册表。
func NewRegistry(connect ConnectFunc) *Registry {
	return &Registry{
		connect: connect,
		entries: make(map[string]*entry),
	}
}

// EnableProcessLock 启用跨进程相机锁，必须在注册表投入使用前调用。
// 进程托管模式下守护进程与 monitord 子进程各持有独立的注册表实例，
// 进程内互斥锁无法串行化两侧对同一设备的访问；启用后 WithCamera
// 在持有进程内锁的同时对 dir 下按相机派生的锁文件加排他 flock，
// 由内核在进程之间串行化。dir 为空时使用 /dev/shm。
func (r *Registry) EnableProcessLock(dir string) {
	if dir == "" {
		dir = "/dev/shm"
	}
	r.lockDir = dir
}

// lookup 返回相机的槽位，不存在时创建空槽位。
func (r *Registry) lookup(cameraID string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[cameraID]
	if !ok {
		e = &entry{}
		r.entries[cameraID] = e
	}
	return e
}

// AcquireFrame 在持有相机锁的前提下同步抓取一帧。
// 未连接时先建立连接；连接或抓取失败都包装为 *domain.AcquisitionError。
func (r *Registry) AcquireFrame(ctx context.Context, cameraID string, cfg domain.AcquisitionConfig) (*domain.RawFrame, error) {
	var frame *domain.RawFrame
	err := r.WithCamera(cameraID, func(cam Camera) error {
		f, err := cam.Grab(ctx, cfg)
		if err != nil {
			return err
		}
		frame = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return frame, nil
}

// WithCamera 在持有相机锁的前提下执行 fn。
// API 侧的预览/手动采集通过本方法与触发路径共享同一串行化点。
// fn 返回错误时句柄被关闭并丢弃，下次访问重新连接。
func (r *Registry) WithCamera(cameraID string, fn func(cam Camera) error) error {
	e := r.lookup(cameraID)
	e.perCam.Lock()
	defer e.perCam.Unlock()

	if r.lockDir != "" {
		lock, err := acquireProcessLock(r.lockDir, cameraID)
		if err != nil {
			return &domain.AcquisitionError{CameraID: cameraID, Err: err}
		}
		defer lock.release()
	}

	if e.cam == nil {
		cam, err := r.connect(cameraID)
		if err != nil {
			return &domain.AcquisitionError{CameraID: cameraID, Err: err}
		}
		logrus.WithFields(logrus.Fields{
			"camera_id": cameraID,
		}).Info("Camera connected")
		e.cam = cam
	}

	if err := fn(e.cam); err != nil {
		logrus.WithFields(logrus.Fields{
			"camera_id": cameraID,
			"error":     err.Error(),
		}).Warn("Camera operation failed, dropping handle")
		_ = e.cam.Close()
		e.cam = nil
		return &domain.AcquisitionError{CameraID: cameraID, Err: err}
	}
	return nil
}

// Close 关闭所有已连接的相机句柄。
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.entries {
		e.perCam.Lock()
		if e.cam != nil {
			_ = e.cam.Close()
			e.cam = nil
		}
		e.perCam.Unlock()
		delete(r.entries, id)
	}
}
