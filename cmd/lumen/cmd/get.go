// Package cmd 提供 lumen 命令行工具的所有子命令实现。
// 本文件实现 get 命令，用于查看单个工作流的详细信息。
package cmd

import (
	"github.com/spf13/cobra"
)

// getCmd 是 get 命令的 cobra.Command 实例。
// 该命令按标识查询工作流，显示完整的配置详情。
var getCmd = &cobra.Command{
	Use:     "get <workflow-id>",
	Aliases: []string{"describe"},
	Short:   "Get workflow details",
	Long: `Get the full configuration of a workflow.

Examples:
  # Show workflow details
  lumen get 3f2a1b

  # Output as YAML
  lumen get 3f2a1b -o yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

// init 注册 get 命令到根命令。
func init() {
	rootCmd.AddCommand(getCmd)
}

// runGet 是 get 命令的执行函数。
func runGet(cmd *cobra.Command, args []string) error {
	client := NewClient()
	wf, err := client.GetWorkflow(args[0])
	if err != nil {
		return err
	}

	printer := NewPrinter()
	return printer.PrintWorkflow(wf)
}
