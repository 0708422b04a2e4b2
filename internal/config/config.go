// Package config 提供了边缘视觉推理设备的配置管理功能。
// 该包负责从 YAML 配置文件加载配置，并支持通过环境变量覆盖敏感配置项（如密码）。
// 配置包含了服务器、触发器、执行宿主、存储、日志、指标和遥测等多个方面的设置。
package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是应用程序的主配置结构体，包含所有子系统的配置。
// 该结构体通过 YAML 标签与配置文件进行映射。
type Config struct {
	// Server 服务器配置，包括 HTTP 端口和优雅关闭超时
	Server ServerConfig `yaml:"server"`
	// Runner 执行宿主配置，指定监视器以进程或线程方式托管
	Runner RunnerConfig `yaml:"runner"`
	// Trigger 触发监视器配置，包括轮询间隔和并发容量
	Trigger TriggerConfig `yaml:"trigger"`
	// Folder 文件夹回放轮询器配置
	Folder FolderConfig `yaml:"folder"`
	// Infer 推理执行器配置
	Infer InferConfig `yaml:"infer"`
	// Retention 采集记录保留策略配置
	Retention RetentionConfig `yaml:"retention"`
	// Storage 存储配置，包括 PostgreSQL 和 Redis 连接信息
	Storage StorageConfig `yaml:"storage"`
	// Events 事件配置，包括 NATS 消息队列连接信息
	Events EventsConfig `yaml:"events"`
	// Logging 日志配置，包括日志级别和格式
	Logging LoggingConfig `yaml:"logging"`
	// Metrics 指标配置，用于 Prometheus 监控
	Metrics MetricsConfig `yaml:"metrics"`
	// Telemetry 遥测配置，用于分布式追踪
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig 服务器配置结构体。
// 定义了状态 API 端口和超时设置。
type ServerConfig struct {
	// HTTPPort HTTP API 服务端口，用于工作流管理 API
	// 默认值：8080
	HTTPPort int `yaml:"http_port"`
	// MetricsPort 指标服务端口，用于 Prometheus 指标暴露
	// 默认值：9090
	MetricsPort int `yaml:"metrics_port"`
	// ShutdownTimeout 优雅关闭超时时间
	// 默认值：30 秒
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RunnerConfig 执行宿主配置结构体。
// 用于指定触发监视器的底层托管方式。
type RunnerConfig struct {
	// Mode 托管模式，可选值为 "process"（独立子进程）或 "thread"（守护进程内协程）
	// 默认值：thread
	Mode string `yaml:"mode"`
	// MonitordPath 进程模式下子进程可执行文件的路径
	// 默认值：monitord（从 PATH 查找）
	MonitordPath string `yaml:"monitord_path"`
	// StopTimeout 进程模式下 SIGTERM 之后等待子进程退出的时间，超时后发送 SIGKILL
	// 默认值：10 秒
	StopTimeout time.Duration `yaml:"stop_timeout"`
	// ShmDir 共享内存健康通道的挂载目录
	// 默认值：/dev/shm
	ShmDir string `yaml:"shm_dir"`
}

// TriggerConfig 触发监视器配置结构体。
// 定义了数字输入轮询和并发执行相关的设置。
type TriggerConfig struct {
	// PollInterval 数字输入轮询间隔
	// 默认值：1 毫秒
	PollInterval time.Duration `yaml:"poll_interval"`
	// DefaultDebounceMS 工作流未指定时使用的默认去抖间隔（毫秒）
	// 默认值：200
	DefaultDebounceMS int `yaml:"default_debounce_ms"`
	// Capacity 单个监视器的并发执行槽位数，达到容量后的触发被丢弃
	// 默认值：2
	Capacity int `yaml:"capacity"`
	// DriverRetryBackoff GPIO 驱动故障后重新初始化前的固定退避时间
	// 默认值：10 秒
	DriverRetryBackoff time.Duration `yaml:"driver_retry_backoff"`
}

// FolderConfig 文件夹回放轮询器配置结构体。
type FolderConfig struct {
	// ScanInterval 周期性重扫间隔，作为文件系统事件的兜底
	// 默认值：2 秒
	ScanInterval time.Duration `yaml:"scan_interval"`
}

// InferConfig 推理执行器配置结构体。
// 定义了本机推理服务端点的相关设置。
type InferConfig struct {
	// Endpoint 推理服务 HTTP 端点，如 "http://127.0.0.1:9191"
	// 默认值：http://127.0.0.1:9191
	Endpoint string `yaml:"endpoint"`
	// Timeout 单次推理请求超时时间
	// 默认值：30 秒
	Timeout time.Duration `yaml:"timeout"`
}

// RetentionConfig 采集记录保留策略配置结构体。
type RetentionConfig struct {
	// Enabled 是否启用定时清理
	Enabled bool `yaml:"enabled"`
	// Schedule cron 表达式，定义清理任务的执行时刻
	// 默认值：0 3 * * *（每天凌晨 3 点）
	Schedule string `yaml:"schedule"`
	// MaxAge 采集记录及其产物的最大保留时间
	// 默认值：168 小时（7 天）
	MaxAge time.Duration `yaml:"max_age"`
}

// StorageConfig 存储配置结构体。
// 包含各种数据存储后端的配置。
type StorageConfig struct {
	// Postgres PostgreSQL 数据库配置
	Postgres PostgresConfig `yaml:"postgres"`
	// Redis Redis 缓存配置
	Redis RedisConfig `yaml:"redis"`
}

// PostgresConfig PostgreSQL 数据库配置结构体。
// 定义了数据库连接的相关参数。
type PostgresConfig struct {
	// Host 数据库主机地址
	Host string `yaml:"host"`
	// Port 数据库端口号
	Port int `yaml:"port"`
	// Database 数据库名称
	Database string `yaml:"database"`
	// User 数据库用户名
	User string `yaml:"user"`
	// Password 数据库密码，可通过环境变量 LUMEN_POSTGRES_PASSWORD 或
	// LUMEN_POSTGRES_PASSWORD_FILE（文件路径）覆盖
	Password string `yaml:"password"`
	// MaxConnections 最大连接数
	MaxConnections int `yaml:"max_connections"`
}

// RedisConfig Redis 缓存配置结构体。
// 定义了 Redis 连接的相关参数。
type RedisConfig struct {
	// Address Redis 服务器地址，格式为 "host:port"
	Address string `yaml:"address"`
	// Password Redis 密码，可通过环境变量 LUMEN_REDIS_PASSWORD 或
	// LUMEN_REDIS_PASSWORD_FILE（文件路径）覆盖
	Password string `yaml:"password"`
	// DB Redis 数据库编号（0-15）
	DB int `yaml:"db"`
}

// EventsConfig 事件配置结构体。
// 定义了事件消息队列的连接信息。
type EventsConfig struct {
	// NatsURL NATS 消息服务器 URL，如 "nats://localhost:4222"
	NatsURL string `yaml:"nats_url"`
}

// LoggingConfig 日志配置结构体。
// 定义了日志输出的级别和格式。
type LoggingConfig struct {
	// Level 日志级别，可选值：debug、info、warn、error
	Level string `yaml:"level"`
	// Format 日志格式，可选值：json、text
	Format string `yaml:"format"`
}

// MetricsConfig 指标配置结构体。
// 定义了 Prometheus 指标收集的相关设置。
type MetricsConfig struct {
	// Enabled 是否启用指标收集
	Enabled bool `yaml:"enabled"`
	// Namespace 指标命名空间前缀
	Namespace string `yaml:"namespace"`
}

// TelemetryConfig 遥测配置结构体。
// 定义了分布式追踪的相关设置，支持 OpenTelemetry 协议。
type TelemetryConfig struct {
	// Enabled 是否启用遥测
	Enabled bool `yaml:"enabled"`
	// Endpoint OTLP 端点地址（如 "tempo:4317"）
	// 默认值：tempo:4317
	Endpoint string `yaml:"endpoint"`
	// ServiceName 服务名称，用于追踪标识
	// 默认值：lumen-edged
	ServiceName string `yaml:"service_name"`
	// SampleRate 采样率，范围 0.0 到 1.0
	// 默认值：0.1（10% 采样）
	SampleRate float64 `yaml:"sample_rate"`
	// Environment 环境标识（如 production、staging、development）
	// 默认值：development
	Environment string `yaml:"environment"`
}

// Load 从指定路径加载配置文件。
// 该函数会读取 YAML 配置文件，应用默认值，并处理环境变量覆盖。
//
// 参数：
//   - path: 配置文件的路径
//
// 返回值：
//   - *Config: 加载并处理后的配置对象
//   - error: 如果读取或解析失败则返回错误
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides 应用环境变量覆盖。
// 该方法允许通过环境变量覆盖敏感配置项，支持两种方式：
// 1. 直接设置环境变量（如 LUMEN_POSTGRES_PASSWORD）
// 2. 通过 _FILE 后缀指定包含密钥的文件路径（如 LUMEN_POSTGRES_PASSWORD_FILE）
// _FILE 方式优先级更高，适用于 Docker Secrets 等场景。
func (c *Config) applyEnvOverrides() {
	// 敏感配置项：支持通过 *_FILE（推荐）或直接环境变量设置

	if v := readEnvOrFileAny(
		[]string{"LUMEN_POSTGRES_PASSWORD"},
		[]string{"LUMEN_POSTGRES_PASSWORD_FILE"},
	); v != "" {
		c.Storage.Postgres.Password = v
	}
	if v := readEnvOrFileAny(
		[]string{"LUMEN_REDIS_PASSWORD"},
		[]string{"LUMEN_REDIS_PASSWORD_FILE"},
	); v != "" {
		c.Storage.Redis.Password = v
	}
}

// readEnvOrFileAny 从环境变量或文件读取配置值。
// 优先从 fileKeys 指定的文件路径读取，如果文件不存在或读取失败，
// 则从 envKeys 指定的环境变量读取。
//
// 参数：
//   - envKeys: 直接存储值的环境变量名（按优先级从高到低）
//   - fileKeys: 存储文件路径的环境变量名（按优先级从高到低）
//
// 返回值：
//   - string: 读取到的配置值，如果都未设置则返回空字符串
func readEnvOrFileAny(envKeys []string, fileKeys []string) string {
	for _, fileKey := range fileKeys {
		if filePath := strings.TrimSpace(os.Getenv(fileKey)); filePath != "" {
			if b, err := os.ReadFile(filePath); err == nil {
				return strings.TrimSpace(string(b))
			}
		}
	}

	for _, envKey := range envKeys {
		if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
			return v
		}
	}

	return ""
}

// applyDefaults 应用默认配置值。
// 该方法为未设置的配置项填充合理的默认值，确保应用可以正常运行。
func (c *Config) applyDefaults() {
	// HTTP 端口默认为 8080
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 8080
	}
	// 指标端口默认为 9090
	if c.Server.MetricsPort == 0 {
		c.Server.MetricsPort = 9090
	}
	// 优雅关闭超时默认为 30 秒
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	// 托管模式默认为 thread
	if c.Runner.Mode == "" {
		c.Runner.Mode = "thread"
	}
	// 子进程可执行文件默认从 PATH 查找
	if c.Runner.MonitordPath == "" {
		c.Runner.MonitordPath = "monitord"
	}
	// 子进程停止超时默认为 10 秒
	if c.Runner.StopTimeout == 0 {
		c.Runner.StopTimeout = 10 * time.Second
	}
	// 共享内存目录默认为 /dev/shm
	if c.Runner.ShmDir == "" {
		c.Runner.ShmDir = "/dev/shm"
	}
	// 数字输入轮询间隔默认为 1 毫秒
	if c.Trigger.PollInterval == 0 {
		c.Trigger.PollInterval = time.Millisecond
	}
	// 默认去抖间隔为 200 毫秒
	if c.Trigger.DefaultDebounceMS == 0 {
		c.Trigger.DefaultDebounceMS = 200
	}
	// 并发执行槽位默认为 2
	if c.Trigger.Capacity == 0 {
		c.Trigger.Capacity = 2
	}
	// 驱动故障退避默认为 10 秒
	if c.Trigger.DriverRetryBackoff == 0 {
		c.Trigger.DriverRetryBackoff = 10 * time.Second
	}
	// 文件夹重扫间隔默认为 2 秒
	if c.Folder.ScanInterval == 0 {
		c.Folder.ScanInterval = 2 * time.Second
	}
	// 推理服务端点默认为本机回环地址
	if c.Infer.Endpoint == "" {
		c.Infer.Endpoint = "http://127.0.0.1:9191"
	}
	// 推理请求超时默认为 30 秒
	if c.Infer.Timeout == 0 {
		c.Infer.Timeout = 30 * time.Second
	}
	// 清理任务默认每天凌晨 3 点执行
	if c.Retention.Schedule == "" {
		c.Retention.Schedule = "0 3 * * *"
	}
	// 采集记录默认保留 7 天
	if c.Retention.MaxAge == 0 {
		c.Retention.MaxAge = 168 * time.Hour
	}
	// 遥测服务名称默认为 lumen-edged
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "lumen-edged"
	}
	// OTLP 端点默认为 tempo:4317
	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = "tempo:4317"
	}
	// 采样率默认为 10%
	if c.Telemetry.SampleRate == 0 {
		c.Telemetry.SampleRate = 0.1
	}
	// 环境标识默认为 development
	if c.Telemetry.Environment == "" {
		c.Telemetry.Environment = "development"
	}
}
