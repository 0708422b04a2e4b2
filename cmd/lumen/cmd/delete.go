// Package cmd 提供 lumen 命令行工具的所有子命令实现。
// 本文件实现 delete 命令，用于删除工作流。
// 删除前需要确认，可通过 --force 跳过确认。
package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// deleteCmd 是 delete 命令的 cobra.Command 实例。
// 删除工作流会同时停止其监视器并释放健康状态。
var deleteCmd = &cobra.Command{
	Use:     "delete <workflow-id>",
	Aliases: []string{"rm"},
	Short:   "Delete a workflow",
	Long: `Delete a workflow from the device.
The workflow's monitor is stopped before the definition is removed.

Examples:
  # Delete with confirmation
  lumen delete 3f2a1b

  # Delete without confirmation
  lumen delete 3f2a1b --force`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

var deleteForce bool // Skip confirmation prompt

// init 注册 delete 命令到根命令。
func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation prompt")
}

// runDelete 是 delete 命令的执行函数。
func runDelete(cmd *cobra.Command, args []string) error {
	id := args[0]

	if !deleteForce {
		fmt.Printf("Delete workflow %s? [y/N]: ", id)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		answer = strings.TrimSpace(strings.ToLower(answer))
		if answer != "y" && answer != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	client := NewClient()
	if err := client.DeleteWorkflow(id); err != nil {
		return err
	}

	fmt.Printf("Workflow %s deleted\n", id)
	return nil
}
