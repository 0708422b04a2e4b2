// Package cmd 提供 lumen 命令行工具的所有子命令实现。
// 本文件实现 stats 命令，用于查看设备的工作流统计信息。
package cmd

import (
	"github.com/spf13/cobra"
)

// statsCmd 是 stats 命令的 cobra.Command 实例。
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show device statistics",
	Long: `Show workflow statistics of the device.

Examples:
  # Show statistics
  lumen stats

  # Output as JSON
  lumen stats -o json`,
	RunE: runStats,
}

// init 注册 stats 命令到根命令。
func init() {
	rootCmd.AddCommand(statsCmd)
}

// runStats 是 stats 命令的执行函数。
func runStats(cmd *cobra.Command, args []string) error {
	client := NewClient()
	stats, err := client.GetStats()
	if err != nil {
		return err
	}

	printer := NewPrinter()
	return printer.PrintStats(stats)
}
