// Package main 是 lumen 命令行工具的入口点。
// lumen 是用于管理边缘视觉推理设备的 CLI 工具，
// 提供创建、列出、运行、删除工作流和查询健康状态等操作。
package main

import (
	"os"

	"github.com/oriys/lumen/cmd/lumen/cmd"
)

// main 是 CLI 工具的主函数。
// 它调用 cmd 包的 Execute 函数来解析和执行用户命令。
func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
