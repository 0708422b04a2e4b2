// Package cmd 提供 lumen 命令行工具的所有子命令实现。
// 本文件实现 captures 命令，用于查询工作流的拍摄记录。
// 支持 --latest 只显示最近一条记录。
package cmd

import (
	"github.com/spf13/cobra"
)

// capturesCmd 是 captures 命令的 cobra.Command 实例。
// 默认分页列出拍摄记录，--latest 走缓存优先的最新记录查询。
var capturesCmd = &cobra.Command{
	Use:   "captures <workflow-id>",
	Short: "List capture records of a workflow",
	Long: `List the capture records produced by a workflow.

Examples:
  # List recent captures
  lumen captures 3f2a1b

  # Show only the latest capture
  lumen captures 3f2a1b --latest

  # Page through older captures
  lumen captures 3f2a1b --offset 50 --limit 50`,
	Args: cobra.ExactArgs(1),
	RunE: runCaptures,
}

var (
	capturesLatest bool // Show only the latest record
	capturesOffset int  // Pagination offset
	capturesLimit  int  // Pagination limit
)

// init 注册 captures 命令到根命令。
func init() {
	rootCmd.AddCommand(capturesCmd)
	capturesCmd.Flags().BoolVar(&capturesLatest, "latest", false, "Show only the latest capture")
	capturesCmd.Flags().IntVar(&capturesOffset, "offset", 0, "Pagination offset")
	capturesCmd.Flags().IntVar(&capturesLimit, "limit", 50, "Pagination limit")
}

// runCaptures 是 captures 命令的执行函数。
func runCaptures(cmd *cobra.Command, args []string) error {
	client := NewClient()
	printer := NewPrinter()

	if capturesLatest {
		rec, err := client.LatestCapture(args[0])
		if err != nil {
			return err
		}
		return printer.PrintCapture(rec)
	}

	resp, err := client.ListCaptures(args[0], capturesOffset, capturesLimit)
	if err != nil {
		return err
	}
	return printer.PrintCaptures(resp.Captures)
}
