// Package domain 定义了边缘视觉推理设备的核心领域模型。
package domain

import (
	"errors"
	"testing"
)

// TestCaptureRecord_Validate 测试采集记录的互斥不变量：
// Outcome 与 CaptureOnly 必须恰好设置其一。
func TestCaptureRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rec     CaptureRecord
		wantErr bool
	}{
		{
			// 测试用例：带推理结果的记录
			name: "record with outcome",
			rec: CaptureRecord{
				ID:           "wf-1-42-a1b2c3d4",
				WorkflowID:   "wf-1",
				ArtifactPath: "/var/lumen/out/wf-1-42-a1b2c3d4.jpg",
				Outcome:      &InferenceOutcome{Label: "anomaly", Confidence: 0.97, Score: 0.83},
			},
			wantErr: false,
		},
		{
			// 测试用例：仅采集记录
			name: "capture-only record",
			rec: CaptureRecord{
				ID:           "wf-1-43-e5f6a7b8",
				WorkflowID:   "wf-1",
				ArtifactPath: "/var/lumen/out/wf-1-43-e5f6a7b8.jpg",
				CaptureOnly:  true,
			},
			wantErr: false,
		},
		{
			// 测试用例：既有推理结果又有仅采集标记
			name: "outcome and capture-only both set",
			rec: CaptureRecord{
				ID:          "wf-1-44-09c8d7e6",
				WorkflowID:  "wf-1",
				Outcome:     &InferenceOutcome{Label: "ok"},
				CaptureOnly: true,
			},
			wantErr: true,
		},
		{
			// 测试用例：推理结果和仅采集标记都缺失
			name: "neither outcome nor capture-only",
			rec: CaptureRecord{
				ID:         "wf-1-45-12345678",
				WorkflowID: "wf-1",
			},
			wantErr: true,
		},
		{
			// 测试用例：记录缺少 ID
			name: "missing id",
			rec: CaptureRecord{
				WorkflowID:  "wf-1",
				CaptureOnly: true,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidCaptureRecord) {
				t.Errorf("Validate() error = %v, want ErrInvalidCaptureRecord", err)
			}
		})
	}
}

// TestTypedErrors_Unwrap 测试类型化错误可通过 errors.As 区分并能解包底层错误。
func TestTypedErrors_Unwrap(t *testing.T) {
	inner := errors.New("device busy")

	var acqErr *AcquisitionError
	wrapped := error(&AcquisitionError{CameraID: "cam-01", Err: inner})
	if !errors.As(wrapped, &acqErr) {
		t.Fatal("errors.As should match *AcquisitionError")
	}
	if !errors.Is(wrapped, inner) {
		t.Error("AcquisitionError should unwrap to inner error")
	}

	var pipeErr *PipelineExecutionError
	wrapped = error(&PipelineExecutionError{WorkflowID: "wf-1", SourcePath: "/replay/a.jpg", Err: inner})
	if !errors.As(wrapped, &pipeErr) {
		t.Fatal("errors.As should match *PipelineExecutionError")
	}
	if pipeErr.SourcePath != "/replay/a.jpg" {
		t.Errorf("SourcePath = %q, want /replay/a.jpg", pipeErr.SourcePath)
	}

	var fault *DriverFault
	wrapped = error(&DriverFault{Pin: 17, Err: inner})
	if !errors.As(wrapped, &fault) {
		t.Fatal("errors.As should match *DriverFault")
	}
	if fault.Pin != 17 {
		t.Errorf("Pin = %d, want 17", fault.Pin)
	}
}
