// Package cmd 提供 lumen 命令行工具的所有子命令实现。
// 本文件实现 list 命令，用于列出设备上所有的工作流。
//
// 默认以表格形式显示工作流列表，包括名称、状态、图像来源和触发器配置。
// 支持以 JSON 或 YAML 格式输出，也支持 ls 作为命令别名。
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

// listCmd 是 list 命令的 cobra.Command 实例。
// 该命令用于列出设备上所有已注册的工作流。
// 支持 ls 作为命令别名，可配置输出格式（table/json/yaml）。
var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all workflows",
	Long: `List all workflows on the device.

Examples:
  # List all workflows
  lumen list

  # Only active workflows
  lumen list --status active

  # Output as JSON
  lumen list -o json`,
	RunE: runList,
}

var (
	listStatus string // Filter by status
	listSource string // Filter by source type
	listSearch string // Search query
)

// init 注册 list 命令到根命令。
func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVarP(&listStatus, "status", "s", "", "Filter by status (active/inactive)")
	listCmd.Flags().StringVar(&listSource, "source", "", "Filter by source type (camera/smart_camera/folder)")
	listCmd.Flags().StringVarP(&listSearch, "search", "q", "", "Search by name or ID")
}

// runList 是 list 命令的执行函数。
func runList(cmd *cobra.Command, args []string) error {
	client := NewClient()
	resp, err := client.ListWorkflows(0, 0)
	if err != nil {
		return err
	}

	// Apply client-side filtering
	filtered := make([]Workflow, 0)
	for _, wf := range resp.Workflows {
		if listStatus != "" && !strings.EqualFold(wf.Status, listStatus) {
			continue
		}
		if listSource != "" && !strings.EqualFold(wf.Source.Type, listSource) {
			continue
		}
		if listSearch != "" {
			query := strings.ToLower(listSearch)
			if !strings.Contains(strings.ToLower(wf.Name), query) &&
				!strings.Contains(strings.ToLower(wf.ID), query) {
				continue
			}
		}
		filtered = append(filtered, wf)
	}

	printer := NewPrinter()
	return printer.PrintWorkflows(filtered)
}
