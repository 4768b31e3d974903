package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "GATEWAY_URL", "SESSION_ID", "EVENT_QUEUE_SIZE", "CORS_ORIGINS", "GATEWAY_TIMEOUT_SECONDS"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	if cfg.HTTPAddr != ":8080" || cfg.GatewayURL != MemoryGatewayURL {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.SessionID == "" {
		t.Fatalf("expected generated session id")
	}
	if cfg.EventQueueSize != 64 || cfg.GatewayTimeout != 5*time.Second {
		t.Fatalf("unexpected numeric defaults %+v", cfg)
	}
	if diff := cmp.Diff([]string{"*"}, cfg.CORSOrigins); diff != "" {
		t.Fatalf("cors mismatch (-want +got):\n%s", diff)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("SESSION_ID", "s-42")
	t.Setenv("EVENT_QUEUE_SIZE", "8")
	t.Setenv("GATEWAY_TIMEOUT_SECONDS", "2")
	t.Setenv("CORS_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg := FromEnv()
	if cfg.SessionID != "s-42" || cfg.EventQueueSize != 8 || cfg.GatewayTimeout != 2*time.Second {
		t.Fatalf("overrides not applied %+v", cfg)
	}
	if diff := cmp.Diff([]string{"http://a.test", "http://b.test"}, cfg.CORSOrigins); diff != "" {
		t.Fatalf("cors mismatch (-want +got):\n%s", diff)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("unexpected redis addr %q", cfg.RedisAddr)
	}
}

func TestInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("EVENT_QUEUE_SIZE", "-3")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "soon")
	cfg := FromEnv()
	if cfg.EventQueueSize != 64 || cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadReadsDotenvWithoutOverriding(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("PROJECT_KEY=from-file\nMARKER_KEY=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("PROJECT_KEY", "from-env")
	t.Setenv("MARKER_KEY", "")
	os.Unsetenv("MARKER_KEY")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ProjectKey != "from-env" {
		t.Fatalf("environment should win, got %q", cfg.ProjectKey)
	}
	if cfg.MarkerKey != "from-file" {
		t.Fatalf("expected value from file, got %q", cfg.MarkerKey)
	}
}

func TestLoadMissingFileIsFine(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{LogLevel: "debug", LogFormat: "json"}, &buf, "storefront")
	if logger.Logger.GetLevel() != logrus.DebugLevel {
		t.Fatalf("expected debug level")
	}
	logger.Debug("hello")
	if !strings.Contains(buf.String(), `"service":"storefront"`) {
		t.Fatalf("expected json with service field, got %s", buf.String())
	}
}

func TestDatabaseSettings(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://u:p@db.local/cartsync")
	t.Setenv("DB_MAX_CONNS", "4")
	t.Setenv("DB_MIN_CONNS", "")
	t.Setenv("DB_MAX_IDLE_SECONDS", "30")
	t.Setenv("DB_MAX_LIFETIME_SECONDS", "")
	t.Setenv("DB_PING_TIMEOUT_SECONDS", "2")

	got := FromEnv().Database()
	if got.DSN != "postgres://u:p@db.local/cartsync" || got.MaxConns != 4 || got.MinConns != 1 {
		t.Fatalf("unexpected pool sizing %+v", got)
	}
	if got.MaxConnIdleTime != 30*time.Second || got.MaxConnLifetime != 30*time.Minute || got.PingTimeout != 2*time.Second {
		t.Fatalf("unexpected pool timings %+v", got)
	}
}
