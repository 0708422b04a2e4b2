// Package config 提供了边缘视觉推理设备的配置管理功能。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestLoad_Defaults 测试空配置文件加载后所有默认值被正确填充。
func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("HTTPPort = %d, want 8080", cfg.Server.HTTPPort)
	}
	if cfg.Runner.Mode != "thread" {
		t.Errorf("Runner.Mode = %q, want thread", cfg.Runner.Mode)
	}
	if cfg.Runner.StopTimeout != 10*time.Second {
		t.Errorf("Runner.StopTimeout = %v, want 10s", cfg.Runner.StopTimeout)
	}
	if cfg.Trigger.PollInterval != time.Millisecond {
		t.Errorf("Trigger.PollInterval = %v, want 1ms", cfg.Trigger.PollInterval)
	}
	if cfg.Trigger.Capacity != 2 {
		t.Errorf("Trigger.Capacity = %d, want 2", cfg.Trigger.Capacity)
	}
	if cfg.Trigger.DriverRetryBackoff != 10*time.Second {
		t.Errorf("Trigger.DriverRetryBackoff = %v, want 10s", cfg.Trigger.DriverRetryBackoff)
	}
	if cfg.Trigger.DefaultDebounceMS != 200 {
		t.Errorf("Trigger.DefaultDebounceMS = %d, want 200", cfg.Trigger.DefaultDebounceMS)
	}
	if cfg.Retention.MaxAge != 168*time.Hour {
		t.Errorf("Retention.MaxAge = %v, want 168h", cfg.Retention.MaxAge)
	}
	if cfg.Telemetry.ServiceName != "lumen-edged" {
		t.Errorf("Telemetry.ServiceName = %q, want lumen-edged", cfg.Telemetry.ServiceName)
	}
}

// TestLoad_ExplicitValues 测试显式配置值不被默认值覆盖。
func TestLoad_ExplicitValues(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: 9000
runner:
  mode: process
  monitord_path: /usr/local/bin/monitord
trigger:
  poll_interval: 5ms
  capacity: 4
storage:
  postgres:
    host: db.local
    port: 5433
    database: lumen
    user: lumen
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPPort != 9000 {
		t.Errorf("HTTPPort = %d, want 9000", cfg.Server.HTTPPort)
	}
	if cfg.Runner.Mode != "process" {
		t.Errorf("Runner.Mode = %q, want process", cfg.Runner.Mode)
	}
	if cfg.Runner.MonitordPath != "/usr/local/bin/monitord" {
		t.Errorf("Runner.MonitordPath = %q", cfg.Runner.MonitordPath)
	}
	if cfg.Trigger.PollInterval != 5*time.Millisecond {
		t.Errorf("Trigger.PollInterval = %v, want 5ms", cfg.Trigger.PollInterval)
	}
	if cfg.Trigger.Capacity != 4 {
		t.Errorf("Trigger.Capacity = %d, want 4", cfg.Trigger.Capacity)
	}
	if cfg.Storage.Postgres.Host != "db.local" {
		t.Errorf("Postgres.Host = %q, want db.local", cfg.Storage.Postgres.Host)
	}
}

// TestLoad_EnvOverrides 测试通过环境变量覆盖敏感配置项。
func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
storage:
  postgres:
    password: from-file
`)

	t.Setenv("LUMEN_POSTGRES_PASSWORD", "from-env")
	t.Setenv("LUMEN_REDIS_PASSWORD", "redis-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Storage.Postgres.Password != "from-env" {
		t.Errorf("Postgres.Password = %q, want from-env", cfg.Storage.Postgres.Password)
	}
	if cfg.Storage.Redis.Password != "redis-env" {
		t.Errorf("Redis.Password = %q, want redis-env", cfg.Storage.Redis.Password)
	}
}

// TestLoad_SecretFileOverride 测试 *_FILE 方式的密钥文件覆盖优先于直接环境变量。
func TestLoad_SecretFileOverride(t *testing.T) {
	path := writeConfig(t, "")

	secretPath := filepath.Join(t.TempDir(), "pg-password")
	if err := os.WriteFile(secretPath, []byte("secret-from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LUMEN_POSTGRES_PASSWORD", "plain-env")
	t.Setenv("LUMEN_POSTGRES_PASSWORD_FILE", secretPath)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Storage.Postgres.Password != "secret-from-file" {
		t.Errorf("Postgres.Password = %q, want secret-from-file", cfg.Storage.Postgres.Password)
	}
}

// TestLoad_MissingFile 测试配置文件不存在时返回错误。
func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load() should fail for missing file")
	}
}

// writeConfig 将配置内容写入临时文件并返回路径。
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
