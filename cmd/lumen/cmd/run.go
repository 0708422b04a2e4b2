// Package cmd 提供 lumen 命令行工具的所有子命令实现。
// 本文件实现 run 命令，用于手动执行一次工作流。
//
// 对相机来源的工作流，run 会同步抓取一帧并走完整条流水线；
// 对文件夹来源的工作流，run 会回放目录中最旧的一个文件。
package cmd

import (
	"github.com/spf13/cobra"
)

// runCmd 是 run 命令的 cobra.Command 实例。
// 手动执行与触发执行共用同一相机串行化点和流水线。
var runCmd = &cobra.Command{
	Use:   "run <workflow-id>",
	Short: "Execute a workflow once",
	Long: `Execute a workflow once and print the resulting capture record.

For camera workflows this grabs a frame immediately. For folder
workflows this replays the oldest file in the replay directory.

Examples:
  # Trigger a manual capture
  lumen run 3f2a1b

  # Output the record as JSON
  lumen run 3f2a1b -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

// init 注册 run 命令到根命令。
func init() {
	rootCmd.AddCommand(runCmd)
}

// runRun 是 run 命令的执行函数。
func runRun(cmd *cobra.Command, args []string) error {
	client := NewClient()
	rec, err := client.RunWorkflow(args[0])
	if err != nil {
		return err
	}

	printer := NewPrinter()
	return printer.PrintCapture(rec)
}
