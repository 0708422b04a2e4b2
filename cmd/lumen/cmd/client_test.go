package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

// newTestClient 创建指向测试服务器的客户端。
func newTestClient(server *httptest.Server) *Client {
	return &Client{
		baseURL:    server.URL,
		httpClient: server.Client(),
	}
}

func TestListWorkflows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/workflows" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"workflows": []map[string]interface{}{
				{
					"id":     "wf-1",
					"name":   "inspect-line-a",
					"status": "active",
					"source": map[string]interface{}{"type": "camera", "camera_id": "cam-01"},
				},
			},
			"total": 1,
		})
	}))
	defer server.Close()

	client := newTestClient(server)
	resp, err := client.ListWorkflows(0, 0)
	if err != nil {
		t.Fatalf("ListWorkflows failed: %v", err)
	}
	if resp.Total != 1 || len(resp.Workflows) != 1 {
		t.Fatalf("unexpected response: total=%d workflows=%d", resp.Total, len(resp.Workflows))
	}
	if resp.Workflows[0].Name != "inspect-line-a" {
		t.Errorf("unexpected workflow name: %s", resp.Workflows[0].Name)
	}
	if resp.Workflows[0].Source.CameraID != "cam-01" {
		t.Errorf("unexpected camera id: %s", resp.Workflows[0].Source.CameraID)
	}
}

func TestCreateWorkflow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("unexpected method: %s", r.Method)
		}
		var req CreateWorkflowRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Trigger == nil || req.Trigger.Pin != 17 {
			t.Errorf("trigger not forwarded: %+v", req.Trigger)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Workflow{
			ID:         "wf-new",
			Name:       req.Name,
			Status:     "active",
			Trigger:    req.Trigger,
			Source:     req.Source,
			OutputPath: req.OutputPath,
		})
	}))
	defer server.Close()

	client := newTestClient(server)
	wf, err := client.CreateWorkflow(&CreateWorkflowRequest{
		Name:       "inspect-line-a",
		Trigger:    &TriggerConfig{Pin: 17, Polarity: "rising", DebounceMS: 200},
		Source:     ImageSource{Type: "camera", CameraID: "cam-01"},
		OutputPath: "/data/captures",
	})
	if err != nil {
		t.Fatalf("CreateWorkflow failed: %v", err)
	}
	if wf.ID != "wf-new" || wf.Status != "active" {
		t.Errorf("unexpected workflow: %+v", wf)
	}
}

func TestAPIErrorParsing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"error":      "workflow not found",
			"request_id": "req-42",
		})
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.GetWorkflow("missing")
	if err == nil {
		t.Fatal("expected error")
	}

	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Errorf("unexpected status: %d", apiErr.Status)
	}
	if !strings.Contains(apiErr.Error(), "req-42") {
		t.Errorf("request id missing from error: %s", apiErr.Error())
	}
}

func TestWorkflowHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/workflows/wf-1/health" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(HealthStatus{
			WorkflowID: "wf-1",
			State:      "running",
			UpdatedAt:  time.Now(),
		})
	}))
	defer server.Close()

	client := newTestClient(server)
	status, err := client.WorkflowHealth("wf-1")
	if err != nil {
		t.Fatalf("WorkflowHealth failed: %v", err)
	}
	if status.State != "running" {
		t.Errorf("unexpected state: %s", status.State)
	}
}

func TestDeleteWorkflow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "DELETE" {
			t.Errorf("unexpected method: %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestClient(server)
	if err := client.DeleteWorkflow("wf-1"); err != nil {
		t.Fatalf("DeleteWorkflow failed: %v", err)
	}
}

func TestPrintWorkflowsTable(t *testing.T) {
	var buf bytes.Buffer
	printer := &Printer{format: "table", writer: &buf}

	err := printer.PrintWorkflows([]Workflow{
		{
			ID:      "wf-0123456789abcdef",
			Name:    "inspect-line-a",
			Status:  "active",
			Source:  ImageSource{Type: "camera", CameraID: "cam-01"},
			Trigger: &TriggerConfig{Pin: 17, Polarity: "rising"},
		},
		{
			ID:     "wf-folder",
			Name:   "replay",
			Status: "inactive",
			Source: ImageSource{Type: "folder", DirectoryPath: "/data/in"},
		},
	})
	if err != nil {
		t.Fatalf("PrintWorkflows failed: %v", err)
	}

	output := buf.String()
	for _, want := range []string{"inspect-line-a", "camera:cam-01", "pin 17 rising", "folder:/data/in"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestPrintWorkflowsEmpty(t *testing.T) {
	var buf bytes.Buffer
	printer := &Printer{format: "table", writer: &buf}

	if err := printer.PrintWorkflows(nil); err != nil {
		t.Fatalf("PrintWorkflows failed: %v", err)
	}
	if !strings.Contains(buf.String(), "No workflows found.") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

func TestPrintCaptureJSON(t *testing.T) {
	var buf bytes.Buffer
	printer := &Printer{format: "json", writer: &buf}

	err := printer.PrintCapture(&CaptureRecord{
		ID:           "rec-1",
		WorkflowID:   "wf-1",
		ArtifactPath: "/data/captures/rec-1.jpeg",
		Outcome:      &InferenceOutcome{Label: "anomaly", Confidence: 0.93},
	})
	if err != nil {
		t.Fatalf("PrintCapture failed: %v", err)
	}

	var decoded CaptureRecord
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Outcome == nil || decoded.Outcome.Label != "anomaly" {
		t.Errorf("unexpected decoded record: %+v", decoded)
	}
}

func TestNewClientDefaultURL(t *testing.T) {
	viper.Set("api_url", "")
	defer viper.Set("api_url", "")

	client := NewClient()
	if client.baseURL != "http://localhost:8080" {
		t.Errorf("unexpected base URL: %s", client.baseURL)
	}
}
