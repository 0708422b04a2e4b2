// Package cmd 提供 lumen 命令行工具的所有子命令实现。
// 本文件实现 update 命令以及 activate/deactivate 快捷命令，
// 用于修改已有工作流的配置和启停状态。
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// updateCmd 是 update 命令的 cobra.Command 实例。
// 只有显式提供的标志会被更新，其余配置保持不变。
var updateCmd = &cobra.Command{
	Use:   "update <workflow-id>",
	Short: "Update a workflow",
	Long: `Update the configuration of an existing workflow.
Only the provided flags are changed.

Examples:
  # Change the trigger pin
  lumen update 3f2a1b --pin 22 --polarity falling

  # Remove the input trigger
  lumen update 3f2a1b --remove-trigger

  # Change the output directory
  lumen update 3f2a1b --output /mnt/captures`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

// activateCmd 将工作流标记为 active 并启动其监视器。
var activateCmd = &cobra.Command{
	Use:   "activate <workflow-id>",
	Short: "Activate a workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setWorkflowStatus(args[0], "active")
	},
}

// deactivateCmd 将工作流标记为 inactive 并停止其监视器。
var deactivateCmd = &cobra.Command{
	Use:   "deactivate <workflow-id>",
	Short: "Deactivate a workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setWorkflowStatus(args[0], "inactive")
	},
}

var (
	updatePin           int     // New trigger pin
	updatePolarity      string  // New trigger polarity
	updateDebounce      int     // New debounce (ms)
	updateRemoveTrigger bool    // Remove the trigger entirely
	updateExecutor      string  // New inference executor
	updateModel         string  // New model ID
	updateThreshold     float64 // New decision threshold
	updateOutput        string  // New output directory
)

// init 注册 update 及其快捷命令到根命令。
func init() {
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(activateCmd)
	rootCmd.AddCommand(deactivateCmd)
	updateCmd.Flags().IntVar(&updatePin, "pin", -1, "GPIO pin for the input trigger")
	updateCmd.Flags().StringVar(&updatePolarity, "polarity", "rising", "Trigger polarity (rising/falling)")
	updateCmd.Flags().IntVar(&updateDebounce, "debounce", 0, "Trigger debounce in milliseconds")
	updateCmd.Flags().BoolVar(&updateRemoveTrigger, "remove-trigger", false, "Remove the input trigger")
	updateCmd.Flags().StringVar(&updateExecutor, "executor", "", "Inference executor name")
	updateCmd.Flags().StringVar(&updateModel, "model", "", "Model ID for inference")
	updateCmd.Flags().Float64Var(&updateThreshold, "threshold", 0, "Inference decision threshold")
	updateCmd.Flags().StringVar(&updateOutput, "output", "", "Output directory for capture artifacts")
}

// runUpdate 是 update 命令的执行函数。
func runUpdate(cmd *cobra.Command, args []string) error {
	req := &UpdateWorkflowRequest{}

	if updateRemoveTrigger && updatePin >= 0 {
		return fmt.Errorf("--pin and --remove-trigger are mutually exclusive")
	}
	if updateRemoveTrigger {
		req.RemoveTrigger = true
	}
	if updatePin >= 0 {
		req.Trigger = &TriggerConfig{
			Pin:        updatePin,
			Polarity:   updatePolarity,
			DebounceMS: updateDebounce,
		}
	}
	if updateExecutor != "" || updateModel != "" {
		req.Feature = &FeatureConfig{
			Executor:  updateExecutor,
			ModelID:   updateModel,
			Threshold: updateThreshold,
		}
	}
	if updateOutput != "" {
		req.OutputPath = &updateOutput
	}

	client := NewClient()
	wf, err := client.UpdateWorkflow(args[0], req)
	if err != nil {
		return err
	}

	fmt.Printf("Workflow %q updated\n", wf.Name)
	printer := NewPrinter()
	return printer.PrintWorkflow(wf)
}

// setWorkflowStatus 更新工作流的启停状态。
func setWorkflowStatus(id, status string) error {
	client := NewClient()
	wf, err := client.UpdateWorkflow(id, &UpdateWorkflowRequest{Status: &status})
	if err != nil {
		return err
	}
	fmt.Printf("Workflow %q is now %s\n", wf.Name, wf.Status)
	return nil
}
