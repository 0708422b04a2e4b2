// Package gpio 提供数字输入线路的抽象与实现。
package gpio

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// SysfsDriver 基于 /sys/class/gpio 的数字输入驱动。
// 打开线路时导出引脚并设置为输入方向，关闭时取消导出。
type SysfsDriver struct {
	// Root sysfs GPIO 根目录，默认 /sys/class/gpio，测试可替换
	Root string
}

// NewSysfsDriver 创建 sysfs 驱动。
func NewSysfsDriver() *SysfsDriver {
	return &SysfsDriver{Root: "/sys/class/gpio"}
}

// Open 导出指定引脚并打开其 value 文件。
func (d *SysfsDriver) Open(pin int) (Line, error) {
	if pin < 0 {
		return nil, fmt.Errorf("open gpio %d: negative pin", pin)
	}

	pinDir := filepath.Join(d.Root, fmt.Sprintf("gpio%d", pin))
	if _, err := os.Stat(pinDir); os.IsNotExist(err) {
		// 引脚尚未导出，先写 export
		if err := os.WriteFile(filepath.Join(d.Root, "export"), []byte(strconv.Itoa(pin)), 0o200); err != nil {
			return nil, fmt.Errorf("export gpio %d: %w", pin, err)
		}
		// 导出后内核需要片刻创建设备目录
		time.Sleep(10 * time.Millisecond)
	}

	if err := os.WriteFile(filepath.Join(pinDir, "direction"), []byte("in"), 0o200); err != nil {
		return nil, fmt.Errorf("set gpio %d direction: %w", pin, err)
	}

	f, err := os.Open(filepath.Join(pinDir, "value"))
	if err != nil {
		return nil, fmt.Errorf("open gpio %d value: %w", pin, err)
	}

	return &sysfsLine{pin: pin, root: d.Root, value: f}, nil
}

// sysfsLine 一条已导出的 sysfs 输入线路。
type sysfsLine struct {
	pin   int
	root  string
	value *os.File
}

// Read 从 value 文件读取当前电平。
// 每次读取前回到文件开头，sysfs 的 value 文件内容会原地更新。
func (l *sysfsLine) Read() (bool, error) {
	buf := make([]byte, 8)
	n, err := l.value.ReadAt(buf, 0)
	if err != nil && n == 0 {
		return false, fmt.Errorf("read gpio %d: %w", l.pin, err)
	}
	return strings.TrimSpace(string(buf[:n])) == "1", nil
}

// Close 关闭 value 文件并取消导出引脚。
func (l *sysfsLine) Close() error {
	closeErr := l.value.Close()
	// 取消导出失败不致命，引脚留在导出态下次仍可复用
	_ = os.WriteFile(filepath.Join(l.root, "unexport"), []byte(strconv.Itoa(l.pin)), 0o200)
	return closeErr
}
