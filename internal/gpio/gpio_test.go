// Package gpio 提供数字输入线路的抽象与实现。
package gpio

import (
	"errors"
	"testing"
)

// TestMemoryLine_SetAndRead 测试内存线路的电平设置与读取。
func TestMemoryLine_SetAndRead(t *testing.T) {
	line := NewMemoryLine()

	if v, err := line.Read(); err != nil || v {
		t.Errorf("initial Read() = %v, %v, want false, nil", v, err)
	}

	line.Set(true)
	if v, _ := line.Read(); !v {
		t.Error("Read() after Set(true) should return true")
	}
}

// TestMemoryLine_Script 测试脚本化读取：按序消费电平，耗尽后停留在最后一个值。
func TestMemoryLine_Script(t *testing.T) {
	line := NewMemoryLine()
	line.SetScript([]bool{false, true, true, false})

	want := []bool{false, true, true, false, false, false}
	for i, w := range want {
		v, err := line.Read()
		if err != nil {
			t.Fatalf("Read() #%d error = %v", i, err)
		}
		if v != w {
			t.Errorf("Read() #%d = %v, want %v", i, v, w)
		}
	}
}

// TestMemoryLine_FailReads 测试读取故障注入与恢复。
func TestMemoryLine_FailReads(t *testing.T) {
	line := NewMemoryLine()
	fault := errors.New("bus error")

	line.FailReads(fault)
	if _, err := line.Read(); !errors.Is(err, fault) {
		t.Errorf("Read() error = %v, want injected fault", err)
	}

	line.FailReads(nil)
	if _, err := line.Read(); err != nil {
		t.Errorf("Read() after recovery error = %v", err)
	}
}

// TestMemoryLine_Close 测试关闭后读取返回 ErrLineClosed。
func TestMemoryLine_Close(t *testing.T) {
	line := NewMemoryLine()
	if err := line.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := line.Read(); !errors.Is(err, ErrLineClosed) {
		t.Errorf("Read() after Close error = %v, want ErrLineClosed", err)
	}
}

// TestMemoryDriver_OpenReusesLine 测试同一引脚重复打开返回同一条线路，
// 且重新打开会复位关闭标记（驱动故障恢复路径依赖该行为）。
func TestMemoryDriver_OpenReusesLine(t *testing.T) {
	drv := NewMemoryDriver()

	l1, err := drv.Open(17)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	drv.Line(17).Set(true)
	if v, _ := l1.Read(); !v {
		t.Error("line state should be shared with Line(17)")
	}

	if err := l1.Close(); err != nil {
		t.Fatal(err)
	}
	l2, err := drv.Open(17)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	if _, err := l2.Read(); err != nil {
		t.Errorf("Read() after reopen error = %v", err)
	}
}

// TestMemoryDriver_OpenErr 测试驱动级打开故障注入。
func TestMemoryDriver_OpenErr(t *testing.T) {
	drv := NewMemoryDriver()
	drv.OpenErr = errors.New("no such device")

	if _, err := drv.Open(17); err == nil {
		t.Fatal("Open() should fail when OpenErr is set")
	}
}
