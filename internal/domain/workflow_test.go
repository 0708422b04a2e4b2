// Package domain 定义了边缘视觉推理设备的核心领域模型。
package domain

import (
	"errors"
	"testing"
	"time"
)

// TestCreateWorkflowRequest_Validate 测试 CreateWorkflowRequest 的验证方法。
// 该测试覆盖了各种有效和无效的输入场景，包括：
// - 有效的请求参数
// - 无效的工作流名称
// - 无效的图像源
// - 文件夹源配置触发器（应被拒绝）
// - 触发器参数超出范围
// - 去抖间隔为 0 时填充默认值
func TestCreateWorkflowRequest_Validate(t *testing.T) {
	// tests 定义了测试用例切片
	tests := []struct {
		name    string                // 测试用例名称
		req     CreateWorkflowRequest // 测试输入的请求对象
		wantErr error                 // 期望返回的错误，nil 表示期望成功
	}{
		{
			// 测试用例：有效的相机源触发工作流
			name: "valid camera workflow with trigger",
			req: CreateWorkflowRequest{
				Name: "inspect-line-a",
				Trigger: &InputTriggerConfig{
					Pin:        17,
					Polarity:   PolarityRising,
					DebounceMS: 150,
				},
				Source: ImageSource{
					Type:     SourceTypeCamera,
					CameraID: "cam-01",
				},
				OutputPath: "/var/lumen/out",
			},
			wantErr: nil,
		},
		{
			// 测试用例：有效的文件夹回放工作流（无触发器）
			name: "valid folder workflow without trigger",
			req: CreateWorkflowRequest{
				Name: "replay-batch",
				Source: ImageSource{
					Type:          SourceTypeFolder,
					DirectoryPath: "/var/lumen/replay",
				},
				OutputPath: "/var/lumen/out",
			},
			wantErr: nil,
		},
		{
			// 测试用例：工作流名称为空
			name: "empty name",
			req: CreateWorkflowRequest{
				Name: "",
				Source: ImageSource{
					Type:     SourceTypeCamera,
					CameraID: "cam-01",
				},
				OutputPath: "/var/lumen/out",
			},
			wantErr: ErrInvalidWorkflowName,
		},
		{
			// 测试用例：相机源缺少相机标识
			name: "camera source missing camera id",
			req: CreateWorkflowRequest{
				Name: "inspect-line-a",
				Source: ImageSource{
					Type: SourceTypeCamera,
				},
				OutputPath: "/var/lumen/out",
			},
			wantErr: ErrInvalidImageSource,
		},
		{
			// 测试用例：未知的图像源类型
			name: "unknown source type",
			req: CreateWorkflowRequest{
				Name: "inspect-line-a",
				Source: ImageSource{
					Type: ImageSourceType("webcam"),
				},
				OutputPath: "/var/lumen/out",
			},
			wantErr: ErrInvalidImageSource,
		},
		{
			// 测试用例：文件夹源配置触发器，应被拒绝
			name: "folder source with trigger rejected",
			req: CreateWorkflowRequest{
				Name: "replay-batch",
				Trigger: &InputTriggerConfig{
					Pin:      17,
					Polarity: PolarityRising,
				},
				Source: ImageSource{
					Type:          SourceTypeFolder,
					DirectoryPath: "/var/lumen/replay",
				},
				OutputPath: "/var/lumen/out",
			},
			wantErr: ErrTriggerSourceUnsupported,
		},
		{
			// 测试用例：GPIO 引脚编号为负数
			name: "negative trigger pin",
			req: CreateWorkflowRequest{
				Name: "inspect-line-a",
				Trigger: &InputTriggerConfig{
					Pin:      -1,
					Polarity: PolarityRising,
				},
				Source: ImageSource{
					Type:     SourceTypeCamera,
					CameraID: "cam-01",
				},
				OutputPath: "/var/lumen/out",
			},
			wantErr: ErrInvalidTriggerPin,
		},
		{
			// 测试用例：无效的触发极性
			name: "invalid polarity",
			req: CreateWorkflowRequest{
				Name: "inspect-line-a",
				Trigger: &InputTriggerConfig{
					Pin:      17,
					Polarity: TriggerPolarity("both"),
				},
				Source: ImageSource{
					Type:     SourceTypeCamera,
					CameraID: "cam-01",
				},
				OutputPath: "/var/lumen/out",
			},
			wantErr: ErrInvalidTriggerPolarity,
		},
		{
			// 测试用例：去抖间隔超过上限（60000 毫秒）
			name: "debounce too high",
			req: CreateWorkflowRequest{
				Name: "inspect-line-a",
				Trigger: &InputTriggerConfig{
					Pin:        17,
					Polarity:   PolarityFalling,
					DebounceMS: 60001,
				},
				Source: ImageSource{
					Type:     SourceTypeCamera,
					CameraID: "cam-01",
				},
				OutputPath: "/var/lumen/out",
			},
			wantErr: ErrInvalidDebounce,
		},
		{
			// 测试用例：输出目录为空
			name: "empty output path",
			req: CreateWorkflowRequest{
				Name: "inspect-line-a",
				Source: ImageSource{
					Type:     SourceTypeCamera,
					CameraID: "cam-01",
				},
				OutputPath: "",
			},
			wantErr: ErrInvalidOutputPath,
		},
		{
			// 测试用例：智能相机源缺少设备节点路径
			name: "smart camera missing device path",
			req: CreateWorkflowRequest{
				Name: "inspect-line-a",
				Source: ImageSource{
					Type: SourceTypeSmartCamera,
				},
				OutputPath: "/var/lumen/out",
			},
			wantErr: ErrInvalidImageSource,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestCreateWorkflowRequest_Validate_DebounceDefault 测试去抖间隔为 0 时填充默认值 200 毫秒。
func TestCreateWorkflowRequest_Validate_DebounceDefault(t *testing.T) {
	req := CreateWorkflowRequest{
		Name: "inspect-line-a",
		Trigger: &InputTriggerConfig{
			Pin:      17,
			Polarity: PolarityRising,
		},
		Source: ImageSource{
			Type:     SourceTypeCamera,
			CameraID: "cam-01",
		},
		OutputPath: "/var/lumen/out",
	}
	if err := req.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if req.Trigger.DebounceMS != 200 {
		t.Errorf("DebounceMS = %d, want default 200", req.Trigger.DebounceMS)
	}
}

// TestInputTriggerConfig_TriggerLevel 测试触发极性到触发电平的映射。
func TestInputTriggerConfig_TriggerLevel(t *testing.T) {
	rising := &InputTriggerConfig{Polarity: PolarityRising}
	if !rising.TriggerLevel() {
		t.Error("rising polarity should map to high trigger level")
	}
	falling := &InputTriggerConfig{Polarity: PolarityFalling}
	if falling.TriggerLevel() {
		t.Error("falling polarity should map to low trigger level")
	}
}

// TestInputTriggerConfig_Debounce 测试去抖间隔的时间换算。
func TestInputTriggerConfig_Debounce(t *testing.T) {
	cfg := &InputTriggerConfig{DebounceMS: 250}
	if got := cfg.Debounce(); got != 250*time.Millisecond {
		t.Errorf("Debounce() = %v, want 250ms", got)
	}
}

// TestImageSource_SupportsTriggeredAcquisition 测试各图像源类型的触发采集能力。
func TestImageSource_SupportsTriggeredAcquisition(t *testing.T) {
	tests := []struct {
		name   string
		source ImageSource
		want   bool
	}{
		{"camera supports trigger", ImageSource{Type: SourceTypeCamera, CameraID: "cam-01"}, true},
		{"smart camera supports trigger", ImageSource{Type: SourceTypeSmartCamera, DevicePath: "/dev/video0"}, true},
		{"folder does not support trigger", ImageSource{Type: SourceTypeFolder, DirectoryPath: "/replay"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.source.SupportsTriggeredAcquisition(); got != tt.want {
				t.Errorf("SupportsTriggeredAcquisition() = %v, want %v", got, tt.want)
			}
		})
	}
}
