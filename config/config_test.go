package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/artpar/querywire/config"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
schemas:
  dir: "defs"
  watch: true
  collect_errors: true

limits:
  max_index: 500
  max_depth: 8

server:
  host: "127.0.0.1"
  port: 9090
  read_timeout: 5s
  max_body_bytes: 4096

logging:
  level: debug
  format: console

metrics:
  enabled: true
  path: /internal/metrics
`

	cfg := writeAndLoad(t, content)

	if cfg.Schemas.Dir != "defs" {
		t.Errorf("Schemas.Dir = %s, want defs", cfg.Schemas.Dir)
	}
	if !cfg.Schemas.Watch {
		t.Error("Schemas.Watch = false, want true")
	}
	if !cfg.Schemas.CollectErrors {
		t.Error("Schemas.CollectErrors = false, want true")
	}
	if cfg.Limits.MaxIndex != 500 {
		t.Errorf("Limits.MaxIndex = %d, want 500", cfg.Limits.MaxIndex)
	}
	if cfg.Limits.MaxDepth != 8 {
		t.Errorf("Limits.MaxDepth = %d, want 8", cfg.Limits.MaxDepth)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Host = %s, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v, want 5s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.MaxBodyBytes != 4096 {
		t.Errorf("MaxBodyBytes = %d, want 4096", cfg.Server.MaxBodyBytes)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" {
		t.Errorf("Logging = %+v, want debug/console", cfg.Logging)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/internal/metrics" {
		t.Errorf("Metrics = %+v, want enabled at /internal/metrics", cfg.Metrics)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := writeAndLoad(t, "{}\n")

	if cfg.Schemas.Dir != "schemas" {
		t.Errorf("default Schemas.Dir = %s, want schemas", cfg.Schemas.Dir)
	}
	if cfg.Limits.MaxIndex != 10000 {
		t.Errorf("default MaxIndex = %d, want 10000", cfg.Limits.MaxIndex)
	}
	if cfg.Limits.MaxDepth != 32 {
		t.Errorf("default MaxDepth = %d, want 32", cfg.Limits.MaxDepth)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("default Host = %s, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("default ReadTimeout = %v, want 30s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.ShutdownTimeout != 15*time.Second {
		t.Errorf("default ShutdownTimeout = %v, want 15s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.MaxBodyBytes != 1<<20 {
		t.Errorf("default MaxBodyBytes = %d, want %d", cfg.Server.MaxBodyBytes, 1<<20)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default Logging.Level = %s, want info", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("default Logging.Format = %s, want json", cfg.Logging.Format)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("default Metrics.Path = %s, want /metrics", cfg.Metrics.Path)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_SCHEMA_ROOT", "/srv/actions")

	content := `
schemas:
  dir: "${TEST_SCHEMA_ROOT}/ec2"
`
	cfg := writeAndLoad(t, content)

	if cfg.Schemas.Dir != "/srv/actions/ec2" {
		t.Errorf("Schemas.Dir = %s, want /srv/actions/ec2", cfg.Schemas.Dir)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"negative max index", "limits:\n  max_index: -1\n", "limits.max_index"},
		{"negative max depth", "limits:\n  max_depth: -3\n", "limits.max_depth"},
		{"port too large", "server:\n  port: 70000\n", "server.port"},
		{"negative body size", "server:\n  max_body_bytes: -1\n", "server.max_body_bytes"},
		{"unknown level", "logging:\n  level: loud\n", "logging.level"},
		{"unknown format", "logging:\n  format: xml\n", "logging.format"},
		{"relative metrics path", "metrics:\n  path: metrics\n", "metrics.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := writeAndLoadErr(t, tt.content)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := writeAndLoadErr(t, "server: [unclosed\n")
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Errorf("error = %v, want parse config error", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	content := `
schemas:
  dir: "from-file"
server:
  port: 9000
logging:
  level: info
`
	t.Setenv("QUERYWIRE_SCHEMAS_DIR", "from-env")
	t.Setenv("QUERYWIRE_SERVER_PORT", "9100")
	t.Setenv("QUERYWIRE_LOG_LEVEL", "warn")

	cfg := writeAndLoad(t, content)

	if cfg.Schemas.Dir != "from-env" {
		t.Errorf("Schemas.Dir = %s, want from-env", cfg.Schemas.Dir)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %s, want warn", cfg.Logging.Level)
	}
}

func TestEnvOverrides_AllSettings(t *testing.T) {
	t.Setenv("QUERYWIRE_SCHEMAS_WATCH", "true")
	t.Setenv("QUERYWIRE_SCHEMAS_COLLECT_ERRORS", "1")
	t.Setenv("QUERYWIRE_LIMITS_MAX_INDEX", "50")
	t.Setenv("QUERYWIRE_LIMITS_MAX_DEPTH", "6")
	t.Setenv("QUERYWIRE_SERVER_HOST", "localhost")
	t.Setenv("QUERYWIRE_SERVER_READ_TIMEOUT", "2s")
	t.Setenv("QUERYWIRE_SERVER_WRITE_TIMEOUT", "3s")
	t.Setenv("QUERYWIRE_SERVER_SHUTDOWN_TIMEOUT", "4s")
	t.Setenv("QUERYWIRE_SERVER_MAX_BODY_BYTES", "2048")
	t.Setenv("QUERYWIRE_LOG_FORMAT", "console")
	t.Setenv("QUERYWIRE_METRICS_ENABLED", "true")
	t.Setenv("QUERYWIRE_METRICS_PATH", "/stats")

	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv error: %v", err)
	}

	if !cfg.Schemas.Watch || !cfg.Schemas.CollectErrors {
		t.Errorf("Schemas = %+v, want watch and collect_errors", cfg.Schemas)
	}
	if cfg.Limits.MaxIndex != 50 || cfg.Limits.MaxDepth != 6 {
		t.Errorf("Limits = %+v, want 50/6", cfg.Limits)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("Host = %s, want localhost", cfg.Server.Host)
	}
	if cfg.Server.ReadTimeout != 2*time.Second {
		t.Errorf("ReadTimeout = %v, want 2s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != 3*time.Second {
		t.Errorf("WriteTimeout = %v, want 3s", cfg.Server.WriteTimeout)
	}
	if cfg.Server.ShutdownTimeout != 4*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 4s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.MaxBodyBytes != 2048 {
		t.Errorf("MaxBodyBytes = %d, want 2048", cfg.Server.MaxBodyBytes)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("Logging.Format = %s, want console", cfg.Logging.Format)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/stats" {
		t.Errorf("Metrics = %+v, want enabled at /stats", cfg.Metrics)
	}
}

func TestEnvOverrides_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port", "QUERYWIRE_SERVER_PORT", "not-a-number"},
		{"duration", "QUERYWIRE_SERVER_READ_TIMEOUT", "soon"},
		{"bool", "QUERYWIRE_SCHEMAS_WATCH", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := config.LoadFromEnv(); err == nil {
				t.Errorf("%s=%s: expected error", tt.key, tt.value)
			}
		})
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv error: %v", err)
	}
	if cfg.Schemas.Dir != "schemas" {
		t.Errorf("Schemas.Dir = %s, want schemas", cfg.Schemas.Dir)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
}

func TestLoadWithFallback_FileExists(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 7070\n")

	cfg, err := config.LoadWithFallback(path)
	if err != nil {
		t.Fatalf("LoadWithFallback error: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Port = %d, want 7070", cfg.Server.Port)
	}
}

func TestLoadWithFallback_EnvOnly(t *testing.T) {
	t.Setenv("QUERYWIRE_SERVER_PORT", "7171")

	cfg, err := config.LoadWithFallback(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadWithFallback error: %v", err)
	}
	if cfg.Server.Port != 7171 {
		t.Errorf("Port = %d, want 7171", cfg.Server.Port)
	}
}

func TestLoadWithFallback_EmptyPath(t *testing.T) {
	cfg, err := config.LoadWithFallback("")
	if err != nil {
		t.Fatalf("LoadWithFallback error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
}

func TestHasEnvConfig(t *testing.T) {
	t.Setenv("QUERYWIRE_SCHEMAS_DIR", "/tmp/schemas")

	if !config.HasEnvConfig() {
		t.Error("HasEnvConfig = false with QUERYWIRE_SCHEMAS_DIR set")
	}
}

func TestLimitsConfig_Schema(t *testing.T) {
	l := config.LimitsConfig{MaxIndex: 12, MaxDepth: 4}.Schema()
	if l.MaxIndex != 12 || l.MaxDepth != 4 {
		t.Errorf("Schema() = %+v, want {12 4}", l)
	}
}

func TestServerConfig_Addr(t *testing.T) {
	s := config.ServerConfig{Host: "127.0.0.1", Port: 8443}
	if got := s.Addr(); got != "127.0.0.1:8443" {
		t.Errorf("Addr() = %s, want 127.0.0.1:8443", got)
	}
}

// Helpers

func writeAndLoad(t *testing.T, content string) *config.Config {
	t.Helper()
	cfg, err := writeAndLoadErr(t, content)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	return cfg
}

func writeAndLoadErr(t *testing.T, content string) (*config.Config, error) {
	t.Helper()
	return config.Load(writeConfig(t, content))
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
