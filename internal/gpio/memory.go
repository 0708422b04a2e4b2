// Package gpio 提供数字输入线路的抽象与实现。
package gpio

import (
	"errors"
	"sync"
)

// ErrLineClosed 表示在已关闭的线路上读取
var ErrLineClosed = errors.New("gpio line closed")

// MemoryDriver 内存数字输入驱动。
// 每个引脚对应一条可脚本化的内存线路，用于测试和无硬件环境。
type MemoryDriver struct {
	mu    sync.Mutex
	lines map[int]*MemoryLine
	// OpenErr 非 nil 时 Open 总是失败，用于模拟驱动故障
	OpenErr error
}

// NewMemoryDriver 创建内存驱动。
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{lines: make(map[int]*MemoryLine)}
}

// Open 返回指定引脚的内存线路，同一引脚重复打开返回同一条线路。
func (d *MemoryDriver) Open(pin int) (Line, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	line, ok := d.lines[pin]
	if !ok {
		line = NewMemoryLine()
		d.lines[pin] = line
	}
	line.reopen()
	return line, nil
}

// Line 返回指定引脚的内存线路供测试直接操纵，不存在时创建。
func (d *MemoryDriver) Line(pin int) *MemoryLine {
	d.mu.Lock()
	defer d.mu.Unlock()
	line, ok := d.lines[pin]
	if !ok {
		line = NewMemoryLine()
		d.lines[pin] = line
	}
	return line
}

// MemoryLine 可脚本化的内存输入线路。
// 设置 Script 后每次 Read 按序消费一个电平，耗尽后停留在最后一个值；
// 未设置 Script 时 Read 返回 Set 写入的当前电平。
type MemoryLine struct {
	mu      sync.Mutex
	level   bool
	script  []bool
	pos     int
	readErr error
	closed  bool
}

// NewMemoryLine 创建内存线路，初始为低电平。
func NewMemoryLine() *MemoryLine {
	return &MemoryLine{}
}

// Set 设置当前电平。
func (l *MemoryLine) Set(level bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetScript 设置电平脚本，后续 Read 按序消费。
func (l *MemoryLine) SetScript(levels []bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.script = levels
	l.pos = 0
}

// FailReads 使后续 Read 返回指定错误，用于模拟读取故障。
// 传入 nil 恢复正常。
func (l *MemoryLine) FailReads(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.readErr = err
}

// Read 读取当前电平或消费脚本中的下一个电平。
func (l *MemoryLine) Read() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false, ErrLineClosed
	}
	if l.readErr != nil {
		return false, l.readErr
	}
	if len(l.script) > 0 {
		if l.pos < len(l.script) {
			l.level = l.script[l.pos]
			l.pos++
		}
		return l.level, nil
	}
	return l.level, nil
}

// Close 关闭线路，之后的 Read 返回 ErrLineClosed。
func (l *MemoryLine) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// reopen 复位关闭标记，供驱动重新打开同一引脚时使用。
func (l *MemoryLine) reopen() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = false
}
