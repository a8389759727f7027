package config

import (
	"os"
	"testing"
)

func TestLoad_DefaultValues(t *testing.T) {
	// 清除环境变量
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// 检查默认值
	if cfg.Database.Host != "localhost" {
		t.Errorf("Expected DB_HOST default 'localhost', got '%s'", cfg.Database.Host)
	}

	if cfg.Database.Database != "walkerwatch" {
		t.Errorf("Expected DB_NAME default 'walkerwatch', got '%s'", cfg.Database.Database)
	}

	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Expected REDIS_ADDR default 'localhost:6379', got '%s'", cfg.Redis.Addr)
	}

	if cfg.MQTT.Broker != "" {
		t.Errorf("Expected MQTT disabled by default, got broker '%s'", cfg.MQTT.Broker)
	}

	if cfg.Ingest.DedupeWindowMs != 250 {
		t.Errorf("Expected dedupe window default 250, got %d", cfg.Ingest.DedupeWindowMs)
	}

	if cfg.Persist.IntervalSeconds != 5 {
		t.Errorf("Expected persist interval default 5, got %d", cfg.Persist.IntervalSeconds)
	}

	if cfg.Persist.CriticalIntervalSeconds != 1 {
		t.Errorf("Expected risk persist interval default 1, got %d", cfg.Persist.CriticalIntervalSeconds)
	}

	if cfg.Persist.FullPayloadEveryN != 3 {
		t.Errorf("Expected full payload period default 3, got %d", cfg.Persist.FullPayloadEveryN)
	}

	if cfg.Retention.MetricSamplesDays != 14 {
		t.Errorf("Expected metric samples retention default 14, got %d", cfg.Retention.MetricSamplesDays)
	}

	if cfg.Retention.DailyRollupsDays != 365 {
		t.Errorf("Expected daily rollups retention default 365, got %d", cfg.Retention.DailyRollupsDays)
	}

	if cfg.Proactive.Enabled {
		t.Error("Expected proactive disabled by default")
	}

	if cfg.Proactive.WeightThresholdKg != 20.0 {
		t.Errorf("Expected weight threshold default 20.0, got %f", cfg.Proactive.WeightThresholdKg)
	}

	if cfg.Proactive.CooldownSeconds != 20 {
		t.Errorf("Expected proactive cooldown default 20, got %d", cfg.Proactive.CooldownSeconds)
	}

	if cfg.Proactive.MaxSpeaksPerMinute != 4 {
		t.Errorf("Expected max speaks default 4, got %d", cfg.Proactive.MaxSpeaksPerMinute)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Expected LOG_LEVEL default 'info', got '%s'", cfg.Log.Level)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	// 设置环境变量
	os.Setenv("DB_HOST", "test-host")
	os.Setenv("INGEST_ALLOWED_RESIDENT_ID", "walker-001")
	os.Setenv("PERSIST_INTERVAL_SECONDS", "10")
	os.Setenv("PROACTIVE_ENABLED", "true")
	os.Setenv("PROACTIVE_BALANCE_THRESHOLD", "0.4")
	os.Setenv("LOG_LEVEL", "debug")

	defer func() {
		os.Unsetenv("DB_HOST")
		os.Unsetenv("INGEST_ALLOWED_RESIDENT_ID")
		os.Unsetenv("PERSIST_INTERVAL_SECONDS")
		os.Unsetenv("PROACTIVE_ENABLED")
		os.Unsetenv("PROACTIVE_BALANCE_THRESHOLD")
		os.Unsetenv("LOG_LEVEL")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Database.Host != "test-host" {
		t.Errorf("Expected DB_HOST 'test-host', got '%s'", cfg.Database.Host)
	}

	if cfg.Ingest.AllowedResidentID != "walker-001" {
		t.Errorf("Expected allowed resident 'walker-001', got '%s'", cfg.Ingest.AllowedResidentID)
	}

	if cfg.Persist.IntervalSeconds != 10 {
		t.Errorf("Expected persist interval 10, got %d", cfg.Persist.IntervalSeconds)
	}

	if !cfg.Proactive.Enabled {
		t.Error("Expected proactive enabled")
	}

	if cfg.Proactive.BalanceThreshold != 0.4 {
		t.Errorf("Expected balance threshold 0.4, got %f", cfg.Proactive.BalanceThreshold)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Expected LOG_LEVEL 'debug', got '%s'", cfg.Log.Level)
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db-host",
		Port:     5433,
		User:     "u",
		Password: "p",
		Database: "walkerwatch",
		SSLMode:  "disable",
	}
	want := "host=db-host port=5433 user=u password=p dbname=walkerwatch sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("Expected DSN '%s', got '%s'", want, got)
	}
}
