//go:build linux

// Package health 提供监视器健康状态的上报通道。
package health

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/oriys/lumen/internal/domain"
)

// segmentSize 每个工作流的共享内存段大小。
// 健康记录是一条小 JSON，4 KiB 留足余量。
const segmentSize = 4096

// ShmChannel 跨进程健康通道。
// 每个工作流对应 /dev/shm 下一个固定大小的 mmap 段：
// 父进程（执行宿主）Allocate/Release，子进程（monitord）Update，
// API 侧 Read。段内布局为 4 字节小端长度前缀 + JSON 负载。
type ShmChannel struct {
	// dir 段文件所在目录，默认 /dev/shm，测试可替换
	dir string

	mu       sync.Mutex
	segments map[string]*segment
}

// segment 一个已映射的共享内存段。
type segment struct {
	path string
	data []byte
}

// NewShmChannel 创建共享内存健康通道。
// dir 为空时使用 /dev/shm。
func NewShmChannel(dir string) *ShmChannel {
	if dir == "" {
		dir = "/dev/shm"
	}
	return &ShmChannel{
		dir:      dir,
		segments: make(map[string]*segment),
	}
}

// segmentPath 由工作流 ID 派生段文件路径。
// ID 经散列后截断，避免特殊字符进入文件名。
func (c *ShmChannel) segmentPath(workflowID string) string {
	sum := sha1.Sum([]byte(workflowID))
	return filepath.Join(c.dir, "lumen-health-"+hex.EncodeToString(sum[:8]))
}

// mapSegment 打开并映射段文件。create 为 true 时允许创建并截断到段大小。
func (c *ShmChannel) mapSegment(workflowID string, create bool) (*segment, error) {
	if seg, ok := c.segments[workflowID]; ok {
		return seg, nil
	}

	path := c.segmentPath(workflowID)
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if create {
		if err := f.Truncate(segmentSize); err != nil {
			return nil, fmt.Errorf("truncate shm segment: %w", err)
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, segmentSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap shm segment: %w", err)
	}

	seg := &segment{path: path, data: data}
	c.segments[workflowID] = seg
	return seg, nil
}

// writeStatus 将状态序列化写入段：先负载后长度前缀。
func writeStatus(seg *segment, status *domain.HealthStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return err
	}
	if len(payload) > segmentSize-4 {
		return fmt.Errorf("health record too large: %d bytes", len(payload))
	}
	copy(seg.data[4:], payload)
	binary.LittleEndian.PutUint32(seg.data[:4], uint32(len(payload)))
	return nil
}

// Allocate 创建并映射工作流的共享内存段，写入 starting 状态。
// 段已携带有效记录时保持原状态不变，与内存通道的幂等语义一致。
func (c *ShmChannel) Allocate(workflowID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	seg, err := c.mapSegment(workflowID, true)
	if err != nil {
		return fmt.Errorf("allocate health segment: %w", err)
	}

	// 已有有效记录的段来自上一次 Allocate/Update，原样保留
	length := binary.LittleEndian.Uint32(seg.data[:4])
	if length > 0 && length <= segmentSize-4 {
		status := &domain.HealthStatus{}
		if json.Unmarshal(seg.data[4:4+length], status) == nil {
			return nil
		}
	}

	return writeStatus(seg, &domain.HealthStatus{
		WorkflowID: workflowID,
		State:      domain.HealthStarting,
		UpdatedAt:  time.Now(),
	})
}

// Update 更新工作流的健康状态。
// 段未映射时打开已存在的段（子进程路径），段文件不存在返回 NotFound。
func (c *ShmChannel) Update(workflowID string, state domain.HealthState, errDetail string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	seg, err := c.mapSegment(workflowID, false)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ErrHealthNotFound
		}
		return fmt.Errorf("open health segment: %w", err)
	}
	status := &domain.HealthStatus{
		WorkflowID: workflowID,
		State:      state,
		UpdatedAt:  time.Now(),
	}
	if state == domain.HealthError {
		status.Error = errDetail
	}
	return writeStatus(seg, status)
}

// Read 读取工作流当前健康状态。
// 段文件已被 Release 删除时返回 domain.ErrHealthNotFound。
func (c *ShmChannel) Read(workflowID string) (*domain.HealthStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// 先确认段文件仍然存在：映射在 unlink 后依旧可读，
	// 但契约要求 Release 之后读取报 NotFound
	if _, err := os.Stat(c.segmentPath(workflowID)); err != nil {
		if os.IsNotExist(err) {
			c.dropLocked(workflowID)
			return nil, domain.ErrHealthNotFound
		}
		return nil, err
	}

	seg, err := c.mapSegment(workflowID, false)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrHealthNotFound
		}
		return nil, fmt.Errorf("open health segment: %w", err)
	}

	length := binary.LittleEndian.Uint32(seg.data[:4])
	if length == 0 || length > segmentSize-4 {
		return nil, domain.ErrHealthNotFound
	}
	status := &domain.HealthStatus{}
	if err := json.Unmarshal(seg.data[4:4+length], status); err != nil {
		return nil, fmt.Errorf("decode health record: %w", err)
	}
	return status, nil
}

// Release 解除映射并删除段文件。
func (c *ShmChannel) Release(workflowID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.segmentPath(workflowID)
	c.dropLocked(workflowID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove health segment: %w", err)
	}
	return nil
}

// dropLocked 解除本进程内的映射，调用方必须持有 c.mu。
func (c *ShmChannel) dropLocked(workflowID string) {
	if seg, ok := c.segments[workflowID]; ok {
		_ = unix.Munmap(seg.data)
		delete(c.segments, workflowID)
	}
}
