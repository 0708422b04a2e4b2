// Package cmd 提供 lumen 命令行工具的所有子命令实现。
// 本文件实现 create 命令，用于创建新工作流。
//
// 支持两种创建方式：
//   - 通过命令行标志直接指定图像来源、触发器和推理配置
//   - 通过 --file 从 YAML/JSON 定义文件创建
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// createCmd 是 create 命令的 cobra.Command 实例。
// 该命令创建一个新工作流并立即在守护进程中生效。
var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new workflow",
	Long: `Create a new workflow on the device.

Examples:
  # GPIO-triggered capture workflow with inference
  lumen create inspect-line-a --camera cam-01 --pin 17 --polarity rising \
    --executor anomaly --model resnet-v2 --output /data/captures

  # Smart camera workflow without inference (capture only)
  lumen create raw-capture --device /dev/video0 --pin 22 --output /data/raw

  # Folder replay workflow
  lumen create replay --folder /data/incoming --output /data/replayed

  # Create from a definition file
  lumen create --file workflow.yaml`,
	RunE: runCreate,
}

var (
	createFile string // Definition file path

	createCamera string // Camera ID (camera source)
	createDevice string // Device path (smart_camera source)
	createFolder string // Replay directory (folder source)

	createPin      int    // Trigger GPIO pin
	createPolarity string // Trigger polarity
	createDebounce int    // Trigger debounce (ms)

	createExecutor  string  // Inference executor
	createModel     string  // Model ID
	createThreshold float64 // Decision threshold

	createOutput string // Output artifact directory
)

// init 注册 create 命令到根命令。
func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringVarP(&createFile, "file", "f", "", "Workflow definition file (YAML or JSON)")
	createCmd.Flags().StringVar(&createCamera, "camera", "", "Camera ID for a camera source")
	createCmd.Flags().StringVar(&createDevice, "device", "", "Device path for a smart camera source")
	createCmd.Flags().StringVar(&createFolder, "folder", "", "Directory path for a folder replay source")
	createCmd.Flags().IntVar(&createPin, "pin", -1, "GPIO pin for the input trigger")
	createCmd.Flags().StringVar(&createPolarity, "polarity", "rising", "Trigger polarity (rising/falling)")
	createCmd.Flags().IntVar(&createDebounce, "debounce", 0, "Trigger debounce in milliseconds")
	createCmd.Flags().StringVar(&createExecutor, "executor", "", "Inference executor name")
	createCmd.Flags().StringVar(&createModel, "model", "", "Model ID for inference")
	createCmd.Flags().Float64Var(&createThreshold, "threshold", 0, "Inference decision threshold")
	createCmd.Flags().StringVar(&createOutput, "output", "", "Output directory for capture artifacts")
}

// runCreate 是 create 命令的执行函数。
func runCreate(cmd *cobra.Command, args []string) error {
	var req *CreateWorkflowRequest

	if createFile != "" {
		loaded, err := loadWorkflowFile(createFile)
		if err != nil {
			return err
		}
		req = loaded
		if len(args) > 0 {
			req.Name = args[0]
		}
	} else {
		if len(args) != 1 {
			return fmt.Errorf("workflow name is required (or use --file)")
		}
		built, err := buildCreateRequest(args[0])
		if err != nil {
			return err
		}
		req = built
	}

	client := NewClient()
	wf, err := client.CreateWorkflow(req)
	if err != nil {
		return err
	}

	fmt.Printf("Workflow %q created (id: %s)\n", wf.Name, wf.ID)
	printer := NewPrinter()
	return printer.PrintWorkflow(wf)
}

// buildCreateRequest 根据命令行标志构造创建请求。
// 相机、智能相机和文件夹三种来源互斥，必须恰好指定一种。
func buildCreateRequest(name string) (*CreateWorkflowRequest, error) {
	req := &CreateWorkflowRequest{
		Name:       name,
		OutputPath: createOutput,
	}

	sources := 0
	if createCamera != "" {
		sources++
		req.Source = ImageSource{Type: "camera", CameraID: createCamera}
	}
	if createDevice != "" {
		sources++
		req.Source = ImageSource{Type: "smart_camera", DevicePath: createDevice}
	}
	if createFolder != "" {
		sources++
		req.Source = ImageSource{Type: "folder", DirectoryPath: createFolder}
	}
	if sources != 1 {
		return nil, fmt.Errorf("exactly one of --camera, --device or --folder is required")
	}

	if createPin >= 0 {
		req.Trigger = &TriggerConfig{
			Pin:        createPin,
			Polarity:   createPolarity,
			DebounceMS: createDebounce,
		}
	}

	if createExecutor != "" || createModel != "" {
		req.Feature = &FeatureConfig{
			Executor:  createExecutor,
			ModelID:   createModel,
			Threshold: createThreshold,
		}
	}

	return req, nil
}

// loadWorkflowFile 从定义文件加载创建请求。
// 按文件扩展名判断格式，.json 按 JSON 解析，其余按 YAML 解析。
func loadWorkflowFile(path string) (*CreateWorkflowRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file: %w", err)
	}

	var req CreateWorkflowRequest
	if strings.HasSuffix(path, ".json") {
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("failed to parse definition file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("failed to parse definition file: %w", err)
		}
	}
	return &req, nil
}
