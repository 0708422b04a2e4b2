// Package cmd 提供 lumen 命令行工具的所有子命令实现。
// 本文件实现输出格式化打印功能，支持多种输出格式。
//
// Printer 支持以下输出格式：
//   - table: 表格格式（默认），适合人类阅读
//   - json:  JSON 格式，适合程序处理
//   - yaml:  YAML 格式，适合配置文件
//
// 提供了针对不同数据类型的打印方法：
//   - PrintWorkflows: 打印工作流列表
//   - PrintWorkflow:  打印单个工作流详情
//   - PrintHealth:    打印工作流健康状态
//   - PrintCaptures:  打印拍摄记录列表
//   - PrintCapture:   打印单条拍摄记录
//   - PrintStats:     打印系统统计信息
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Printer 是格式化输出的处理器。
// 根据配置的输出格式（table/json/yaml）将数据格式化后输出到指定的 writer。
type Printer struct {
	format string    // 输出格式：table、json 或 yaml
	writer io.Writer // 输出目标，默认为 os.Stdout
}

// NewPrinter 创建一个新的 Printer 实例。
// 从 viper 配置中读取 output 格式，如果未配置则默认使用 table 格式。
//
// 返回值：
//   - *Printer: 新创建的打印器实例
func NewPrinter() *Printer {
	format := viper.GetString("output")
	if format == "" {
		format = "table"
	}
	return &Printer{
		format: format,
		writer: os.Stdout,
	}
}

// PrintWorkflows 打印工作流列表。
// 根据配置的输出格式（table/json/yaml）格式化输出工作流列表。
func (p *Printer) PrintWorkflows(workflows []Workflow) error {
	switch p.format {
	case "json":
		return p.printJSON(workflows)
	case "yaml":
		return p.printYAML(workflows)
	default:
		return p.printWorkflowsTable(workflows)
	}
}

// PrintWorkflow 打印单个工作流的详细信息。
func (p *Printer) PrintWorkflow(wf *Workflow) error {
	switch p.format {
	case "json":
		return p.printJSON(wf)
	case "yaml":
		return p.printYAML(wf)
	default:
		return p.printWorkflowDetail(wf)
	}
}

// PrintHealth 打印工作流健康状态。
func (p *Printer) PrintHealth(status *HealthStatus) error {
	switch p.format {
	case "json":
		return p.printJSON(status)
	case "yaml":
		return p.printYAML(status)
	default:
		return p.printHealthDetail(status)
	}
}

// PrintCaptures 打印拍摄记录列表。
func (p *Printer) PrintCaptures(captures []CaptureRecord) error {
	switch p.format {
	case "json":
		return p.printJSON(captures)
	case "yaml":
		return p.printYAML(captures)
	default:
		return p.printCapturesTable(captures)
	}
}

// PrintCapture 打印单条拍摄记录的详细信息。
func (p *Printer) PrintCapture(rec *CaptureRecord) error {
	switch p.format {
	case "json":
		return p.printJSON(rec)
	case "yaml":
		return p.printYAML(rec)
	default:
		return p.printCaptureDetail(rec)
	}
}

// PrintStats 打印系统统计信息。
func (p *Printer) PrintStats(stats *Stats) error {
	switch p.format {
	case "json":
		return p.printJSON(stats)
	case "yaml":
		return p.printYAML(stats)
	default:
		fmt.Fprintf(p.writer, "Workflows:           %d\n", stats.Workflows)
		fmt.Fprintf(p.writer, "Triggered Workflows: %d\n", stats.TriggeredWorkflows)
		return nil
	}
}

// printJSON 以 JSON 格式输出数据。
// 使用 2 空格缩进美化输出。
func (p *Printer) printJSON(v interface{}) error {
	enc := json.NewEncoder(p.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printYAML 以 YAML 格式输出数据。
// 使用 2 空格缩进。
func (p *Printer) printYAML(v interface{}) error {
	enc := yaml.NewEncoder(p.writer)
	enc.SetIndent(2)
	return enc.Encode(v)
}

// printWorkflowsTable 以表格形式输出工作流列表。
// 显示标识、名称、状态、图像来源、触发器和创建时间。
func (p *Printer) printWorkflowsTable(workflows []Workflow) error {
	if len(workflows) == 0 {
		fmt.Fprintln(p.writer, "No workflows found.")
		return nil
	}

	w := tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tSOURCE\tTRIGGER\tCREATED")

	for _, wf := range workflows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncate(wf.ID, 12),
			wf.Name,
			colorStatus(wf.Status),
			describeSource(wf.Source),
			describeTrigger(wf.Trigger),
			timeAgo(wf.CreatedAt),
		)
	}

	return w.Flush()
}

// printWorkflowDetail 以详细格式输出单个工作流信息。
// 显示工作流的所有配置项。
func (p *Printer) printWorkflowDetail(wf *Workflow) error {
	fmt.Fprintf(p.writer, "Name:    %s\n", wf.Name)
	fmt.Fprintf(p.writer, "ID:      %s\n", wf.ID)
	fmt.Fprintf(p.writer, "Status:  %s\n", colorStatus(wf.Status))
	fmt.Fprintf(p.writer, "Source:  %s\n", describeSource(wf.Source))
	fmt.Fprintf(p.writer, "Output:  %s\n", wf.OutputPath)

	if wf.Trigger != nil {
		fmt.Fprintln(p.writer, "Trigger:")
		fmt.Fprintf(p.writer, "  Pin:      %d\n", wf.Trigger.Pin)
		fmt.Fprintf(p.writer, "  Polarity: %s\n", wf.Trigger.Polarity)
		fmt.Fprintf(p.writer, "  Debounce: %d ms\n", wf.Trigger.DebounceMS)
	}

	if wf.Feature != nil {
		fmt.Fprintln(p.writer, "Feature:")
		fmt.Fprintf(p.writer, "  Executor:  %s\n", wf.Feature.Executor)
		fmt.Fprintf(p.writer, "  Model:     %s\n", wf.Feature.ModelID)
		if wf.Feature.Threshold > 0 {
			fmt.Fprintf(p.writer, "  Threshold: %.2f\n", wf.Feature.Threshold)
		}
	}

	fmt.Fprintf(p.writer, "Created: %s\n", wf.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(p.writer, "Updated: %s\n", wf.UpdatedAt.Format(time.RFC3339))

	return nil
}

// printHealthDetail 以详细格式输出工作流健康状态。
func (p *Printer) printHealthDetail(status *HealthStatus) error {
	fmt.Fprintf(p.writer, "Workflow: %s\n", status.WorkflowID)
	fmt.Fprintf(p.writer, "State:    %s\n", colorStatus(status.State))
	if status.Error != "" {
		fmt.Fprintf(p.writer, "Error:    %s\n", status.Error)
	}
	fmt.Fprintf(p.writer, "Updated:  %s\n", timeAgo(status.UpdatedAt))
	return nil
}

// printCapturesTable 以表格形式输出拍摄记录列表。
// 显示记录标识、产物路径、推理结果和创建时间。
func (p *Printer) printCapturesTable(captures []CaptureRecord) error {
	if len(captures) == 0 {
		fmt.Fprintln(p.writer, "No captures found.")
		return nil
	}

	w := tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tARTIFACT\tOUTCOME\tCONFIDENCE\tCREATED")

	for _, rec := range captures {
		outcome := "capture-only"
		confidence := "-"
		if rec.Outcome != nil {
			outcome = rec.Outcome.Label
			confidence = fmt.Sprintf("%.2f", rec.Outcome.Confidence)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			truncate(rec.ID, 12),
			truncate(rec.ArtifactPath, 40),
			outcome,
			confidence,
			timeAgo(rec.CreatedAt),
		)
	}

	return w.Flush()
}

// printCaptureDetail 以详细格式输出单条拍摄记录。
func (p *Printer) printCaptureDetail(rec *CaptureRecord) error {
	fmt.Fprintf(p.writer, "ID:       %s\n", rec.ID)
	fmt.Fprintf(p.writer, "Workflow: %s\n", rec.WorkflowID)
	fmt.Fprintf(p.writer, "Artifact: %s\n", rec.ArtifactPath)

	if rec.Outcome != nil {
		fmt.Fprintln(p.writer, "Outcome:")
		fmt.Fprintf(p.writer, "  Label:      %s\n", rec.Outcome.Label)
		fmt.Fprintf(p.writer, "  Confidence: %.2f\n", rec.Outcome.Confidence)
		fmt.Fprintf(p.writer, "  Score:      %.2f\n", rec.Outcome.Score)
		if rec.Outcome.MaskPath != "" {
			fmt.Fprintf(p.writer, "  Mask:       %s\n", rec.Outcome.MaskPath)
		}
	} else {
		fmt.Fprintln(p.writer, "Outcome:  capture-only")
	}

	fmt.Fprintf(p.writer, "Created:  %s\n", rec.CreatedAt.Format(time.RFC3339))
	return nil
}

// ====== 辅助函数 ======

// describeSource 将图像来源格式化为简短的描述字符串。
func describeSource(source ImageSource) string {
	switch source.Type {
	case "camera":
		return "camera:" + source.CameraID
	case "smart_camera":
		return "smart_camera:" + source.DevicePath
	case "folder":
		return "folder:" + source.DirectoryPath
	default:
		return source.Type
	}
}

// describeTrigger 将触发器配置格式化为简短的描述字符串。
func describeTrigger(trigger *TriggerConfig) string {
	if trigger == nil {
		return "-"
	}
	return fmt.Sprintf("pin %d %s", trigger.Pin, trigger.Polarity)
}

// colorStatus 根据状态值返回带颜色的字符串。
// 使用 ANSI 转义序列：
//   - 绿色: active、running、healthy
//   - 黄色: starting、inactive
//   - 红色: error
func colorStatus(status string) string {
	switch strings.ToLower(status) {
	case "active", "running", "healthy":
		return "\033[32m" + status + "\033[0m" // Green
	case "starting", "inactive":
		return "\033[33m" + status + "\033[0m" // Yellow
	case "error":
		return "\033[31m" + status + "\033[0m" // Red
	default:
		return status
	}
}

// timeAgo 将时间转换为相对时间字符串。
// 例如："5s ago"、"3m ago"、"2h ago"、"1d ago"
func timeAgo(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	d := time.Since(t)

	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// truncate 截断字符串到指定长度。
// 如果字符串超过最大长度，则截断并添加 "..." 后缀。
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
