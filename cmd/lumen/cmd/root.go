// Package cmd 包含 lumen CLI 工具的所有命令实现
// 使用 cobra 框架构建命令行接口
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// 全局命令行标志变量
var (
	cfgFile   string // 配置文件路径
	apiURL    string // 守护进程 API 地址
	outputFmt string // 输出格式（table/json/yaml）
)

// rootCmd 是 CLI 的根命令
// 所有子命令都挂载在这个根命令下
var rootCmd = &cobra.Command{
	Use:   "lumen",
	Short: "Lumen - Edge Vision Workflow CLI",
	Long: `lumen 是用于管理边缘视觉推理设备工作流的命令行工具。

使用示例:
  # 创建一个由 GPIO 触发的拍摄工作流
  lumen create inspect-line-a --camera cam-01 --pin 17 --polarity rising --output /data/captures

  # 列出所有工作流
  lumen list

  # 查询工作流健康状态
  lumen health <workflow-id>

  # 手动执行一次工作流
  lumen run <workflow-id>`,
}

// Execute 执行根命令
// 这是 CLI 的入口函数，由 main 包调用
//
// 返回:
//   - error: 命令执行错误
func Execute() error {
	return rootCmd.Execute()
}

// init 初始化命令行工具
// 注册全局标志和配置初始化函数
func init() {
	// 在命令执行前初始化配置
	cobra.OnInitialize(initConfig)

	// 注册持久化标志（所有子命令都可使用）
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径（默认为 $HOME/.lumen.yaml）")
	rootCmd.PersistentFlags().StringVarP(&apiURL, "api-url", "u", "http://localhost:8080", "守护进程 API 地址")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "输出格式（table、json、yaml）")

	// 将标志绑定到 viper 配置
	viper.BindPFlag("api_url", rootCmd.PersistentFlags().Lookup("api-url"))
	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
}

// initConfig 初始化配置
// 按优先级加载配置：命令行标志 > 环境变量 > 配置文件
func initConfig() {
	if cfgFile != "" {
		// 使用用户指定的配置文件
		viper.SetConfigFile(cfgFile)
	} else {
		// 获取用户主目录
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		// 搜索配置文件的路径
		viper.AddConfigPath(home) // 在主目录查找
		viper.AddConfigPath(".")  // 在当前目录查找
		viper.SetConfigType("yaml")
		viper.SetConfigName(".lumen") // 配置文件名（不含扩展名）
	}

	// 设置环境变量前缀
	// 环境变量格式：LUMEN_<KEY>，如 LUMEN_API_URL
	viper.SetEnvPrefix("LUMEN")
	viper.AutomaticEnv() // 自动读取环境变量

	// 读取配置文件（如果存在）
	_ = viper.ReadInConfig()
}
