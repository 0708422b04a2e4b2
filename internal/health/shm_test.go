//go:build linux

// Package health 提供监视器健康状态的上报通道。
package health

import (
	"errors"
	"testing"

	"github.com/oriys/lumen/internal/domain"
)

// TestShmChannel_Contract 对共享内存通道运行契约测试。
func TestShmChannel_Contract(t *testing.T) {
	testChannelContract(t, NewShmChannel(t.TempDir()))
}

// TestShmChannel_CrossInstance 测试两个通道实例通过同一目录交换状态，
// 模拟父进程分配/读取、子进程更新的跨进程场景。
func TestShmChannel_CrossInstance(t *testing.T) {
	dir := t.TempDir()
	parent := NewShmChannel(dir)
	child := NewShmChannel(dir)

	if err := parent.Allocate("wf-1"); err != nil {
		t.Fatalf("parent Allocate() error = %v", err)
	}

	// 子进程侧打开已存在的段并更新
	if err := child.Update("wf-1", domain.HealthRunning, ""); err != nil {
		t.Fatalf("child Update() error = %v", err)
	}

	status, err := parent.Read("wf-1")
	if err != nil {
		t.Fatalf("parent Read() error = %v", err)
	}
	if status.State != domain.HealthRunning {
		t.Errorf("State = %q, want running (written by child instance)", status.State)
	}

	// 父进程释放后，两侧读取都报 NotFound
	if err := parent.Release("wf-1"); err != nil {
		t.Fatalf("parent Release() error = %v", err)
	}
	if _, err := child.Read("wf-1"); !errors.Is(err, domain.ErrHealthNotFound) {
		t.Errorf("child Read(released) error = %v, want ErrHealthNotFound", err)
	}
}

// TestShmChannel_UpdateWithoutSegment 测试段不存在时 Update 报 NotFound。
func TestShmChannel_UpdateWithoutSegment(t *testing.T) {
	ch := NewShmChannel(t.TempDir())
	if err := ch.Update("wf-ghost", domain.HealthRunning, ""); !errors.Is(err, domain.ErrHealthNotFound) {
		t.Errorf("Update(no segment) error = %v, want ErrHealthNotFound", err)
	}
}

// TestShmChannel_AllocatePreservesExisting 测试已有有效记录的段重复
// Allocate 保持原状态，与内存通道一致。
func TestShmChannel_AllocatePreservesExisting(t *testing.T) {
	ch := NewShmChannel(t.TempDir())
	if err := ch.Allocate("wf-1"); err != nil {
		t.Fatal(err)
	}
	if err := ch.Update("wf-1", domain.HealthError, "old failure"); err != nil {
		t.Fatal(err)
	}

	if err := ch.Allocate("wf-1"); err != nil {
		t.Fatalf("reallocate error = %v", err)
	}
	status, err := ch.Read("wf-1")
	if err != nil {
		t.Fatal(err)
	}
	if status.State != domain.HealthError || status.Error != "old failure" {
		t.Errorf("status after reallocate = %+v, want preserved error state", status)
	}
}

// TestShmChannel_ReleaseThenAllocateStartsFresh 测试释放后重新分配
// 从 starting 开始，新一代监视器不继承旧状态。
func TestShmChannel_ReleaseThenAllocateStartsFresh(t *testing.T) {
	ch := NewShmChannel(t.TempDir())
	if err := ch.Allocate("wf-1"); err != nil {
		t.Fatal(err)
	}
	if err := ch.Update("wf-1", domain.HealthError, "old failure"); err != nil {
		t.Fatal(err)
	}
	if err := ch.Release("wf-1"); err != nil {
		t.Fatal(err)
	}

	if err := ch.Allocate("wf-1"); err != nil {
		t.Fatalf("allocate after release error = %v", err)
	}
	status, err := ch.Read("wf-1")
	if err != nil {
		t.Fatal(err)
	}
	if status.State != domain.HealthStarting {
		t.Errorf("State = %q, want starting", status.State)
	}
	if status.Error != "" {
		t.Errorf("Error = %q, want empty", status.Error)
	}
}
