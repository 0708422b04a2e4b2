// Package cmd 提供 lumen 命令行工具的所有子命令实现。
// 本文件实现 health 命令，用于查询工作流监视器的健康状态。
package cmd

import (
	"github.com/spf13/cobra"
)

// healthCmd 是 health 命令的 cobra.Command 实例。
// 健康状态来自监视器的健康通道：starting、running 或 error。
// 未运行的工作流返回 404。
var healthCmd = &cobra.Command{
	Use:   "health <workflow-id>",
	Short: "Get workflow health status",
	Long: `Get the health status of a workflow's monitor.

States:
  starting  the monitor is initializing its driver and camera
  running   the monitor is armed and processing triggers
  error     the monitor hit a fault and is retrying

Examples:
  # Check workflow health
  lumen health 3f2a1b

  # Output as JSON
  lumen health 3f2a1b -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runHealth,
}

// init 注册 health 命令到根命令。
func init() {
	rootCmd.AddCommand(healthCmd)
}

// runHealth 是 health 命令的执行函数。
func runHealth(cmd *cobra.Command, args []string) error {
	client := NewClient()
	status, err := client.WorkflowHealth(args[0])
	if err != nil {
		return err
	}

	printer := NewPrinter()
	return printer.PrintHealth(status)
}
