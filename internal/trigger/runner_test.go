// Package trigger 提供数字输入触发监视器及其执行宿主。
package trigger

import (
	"errors"
	"testing"
	"time"

	"github.com/oriys/lumen/internal/domain"
	"github.com/oriys/lumen/internal/gpio"
	"github.com/oriys/lumen/internal/health"
)

func newTestThreadRunner(drv *gpio.MemoryDriver, pipe *fakePipeline, ch health.Channel) *ThreadRunner {
	return NewThreadRunner(drv, &fakeFrames{}, pipe, ch, nil, testLogger(), fastCfg())
}

// TestThreadRunner_Lifecycle 测试启动、健康查询和停止的完整生命周期。
func TestThreadRunner_Lifecycle(t *testing.T) {
	drv := gpio.NewMemoryDriver()
	drv.Line(17).Set(false)
	ch := health.NewMemoryChannel()
	runner := newTestThreadRunner(drv, &fakePipeline{}, ch)

	def := triggeredDef("wf-1", 1)
	if err := runner.Start(def); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !runner.IsRunning("wf-1") {
		t.Error("IsRunning = false after Start")
	}

	// 启动后立即可读，初始状态 starting
	status, err := runner.Health("wf-1")
	if err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if status.State != domain.HealthStarting {
		t.Errorf("initial state = %q, want %q", status.State, domain.HealthStarting)
	}

	if err := runner.Stop("wf-1"); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if runner.IsRunning("wf-1") {
		t.Error("IsRunning = true after Stop")
	}

	// 停止后健康条目被释放
	if _, err := runner.Health("wf-1"); !errors.Is(err, domain.ErrHealthNotFound) {
		t.Errorf("Health() after Stop error = %v, want ErrHealthNotFound", err)
	}
}

// TestThreadRunner_StopNotRunning 测试停止未托管的工作流返回哨兵错误。
func TestThreadRunner_StopNotRunning(t *testing.T) {
	runner := newTestThreadRunner(gpio.NewMemoryDriver(), &fakePipeline{}, health.NewMemoryChannel())
	if err := runner.Stop("ghost"); !errors.Is(err, domain.ErrMonitorNotRunning) {
		t.Errorf("Stop() error = %v, want ErrMonitorNotRunning", err)
	}
}

// TestThreadRunner_ImplicitRestart 测试对已运行的工作流再次 Start 先停旧实例。
func TestThreadRunner_ImplicitRestart(t *testing.T) {
	drv := gpio.NewMemoryDriver()
	drv.Line(17).Set(false)
	ch := health.NewMemoryChannel()
	runner := newTestThreadRunner(drv, &fakePipeline{}, ch)

	def := triggeredDef("wf-1", 1)
	if err := runner.Start(def); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	if err := runner.Start(def); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if !runner.IsRunning("wf-1") {
		t.Error("IsRunning = false after restart")
	}

	if err := runner.Stop("wf-1"); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	// 重启不应遗留第二个实例
	if err := runner.Stop("wf-1"); !errors.Is(err, domain.ErrMonitorNotRunning) {
		t.Errorf("second Stop() error = %v, want ErrMonitorNotRunning", err)
	}
}

// TestThreadRunner_RejectsInvalidDefs 测试无触发器或图像源不支持触发采集
// 的工作流被拒绝。
func TestThreadRunner_RejectsInvalidDefs(t *testing.T) {
	runner := newTestThreadRunner(gpio.NewMemoryDriver(), &fakePipeline{}, health.NewMemoryChannel())

	tests := []struct {
		name    string
		def     *domain.WorkflowDefinition
		wantErr error
	}{
		{
			name: "no trigger",
			def: &domain.WorkflowDefinition{
				ID:     "wf-1",
				Status: domain.WorkflowStatusActive,
				Source: domain.ImageSource{Type: domain.SourceTypeCamera, CameraID: "cam-01"},
			},
			wantErr: domain.ErrInvalidTriggerPin,
		},
		{
			name: "folder source",
			def: &domain.WorkflowDefinition{
				ID:     "wf-2",
				Status: domain.WorkflowStatusActive,
				Trigger: &domain.InputTriggerConfig{
					Pin:      4,
					Polarity: domain.PolarityRising,
				},
				Source: domain.ImageSource{Type: domain.SourceTypeFolder, DirectoryPath: "/data/in"},
			},
			wantErr: domain.ErrTriggerSourceUnsupported,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := runner.Start(tt.def); !errors.Is(err, tt.wantErr) {
				t.Errorf("Start() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestThreadRunner_Shutdown 测试关停停止全部监视器并释放健康条目。
func TestThreadRunner_Shutdown(t *testing.T) {
	drv := gpio.NewMemoryDriver()
	drv.Line(17).Set(false)
	ch := health.NewMemoryChannel()
	runner := newTestThreadRunner(drv, &fakePipeline{}, ch)

	for _, id := range []string{"wf-1", "wf-2"} {
		if err := runner.Start(triggeredDef(id, 1)); err != nil {
			t.Fatalf("Start(%s) error = %v", id, err)
		}
	}

	if err := runner.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	for _, id := range []string{"wf-1", "wf-2"} {
		if runner.IsRunning(id) {
			t.Errorf("IsRunning(%s) = true after Shutdown", id)
		}
		if _, err := runner.Health(id); !errors.Is(err, domain.ErrHealthNotFound) {
			t.Errorf("Health(%s) error = %v, want ErrHealthNotFound", id, err)
		}
	}
}

// TestThreadRunner_MonitorRunsAfterStart 测试托管中的监视器真正在轮询并点火。
func TestThreadRunner_MonitorRunsAfterStart(t *testing.T) {
	drv := gpio.NewMemoryDriver()
	drv.Line(17).SetScript([]bool{false, true})
	pipe := &fakePipeline{}
	runner := newTestThreadRunner(drv, pipe, health.NewMemoryChannel())

	if err := runner.Start(triggeredDef("wf-1", 1)); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = runner.Shutdown() }()

	waitFor(t, time.Second, func() bool {
		calls, _, _ := pipe.stats()
		return calls >= 1
	}, "managed monitor should fire")

	waitFor(t, time.Second, func() bool {
		status, err := runner.Health("wf-1")
		return err == nil && status.State == domain.HealthRunning
	}, "health should reach running after a successful execution")
}
