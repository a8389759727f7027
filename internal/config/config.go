package config

import (
	"fmt"
	"os"
	"strconv"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// DSN 获取数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT 配置（Broker 为空时不启用 MQTT 接入）
type MQTTConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	QoS         byte
	WalkerTopic string
	VisionTopic string
}

// Config 服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	HTTP struct {
		Addr string
	}

	// 接入归一化配置
	Ingest struct {
		AllowedResidentID string // 配置后，不一致的 residentId 记警告但仍接收
		DedupeWindowMs    int    // 重传去重窗口，<=0 关闭去重
	}

	// 持久化节流配置
	Persist struct {
		IntervalSeconds         int // 常规持久化间隔
		CriticalIntervalSeconds int // 风险态（跌倒/大倾角）持久化间隔
		FullPayloadEveryN       int // 每 N 次持久化保留一次全量原始负载
	}

	// 实时缓存镜像配置
	Cache struct {
		RealtimeKeyPrefix string
		RealtimeTTL       int // 秒
	}

	// 保留期清理配置
	Retention struct {
		Enabled             bool
		RunIntervalSeconds  int
		MetricSamplesDays   int
		ExerciseSamplesDays int
		IngestEventsDays    int
		HourlyRollupsDays   int
		DailyRollupsDays    int
		DailyReportsDays    int
	}

	// 主动播报配置
	Proactive struct {
		Enabled            bool
		WeightThresholdKg  float64
		BalanceThreshold   float64
		CooldownSeconds    int
		MaxSpeaksPerMinute int
	}

	// 外部协作方（消息生成/TTS/数字人通道）配置
	Collaborator struct {
		MessageBaseURL string
		MessageAPIKey  string
		MessageModel   string
		TTSBaseURL     string
		TTSAPIKey      string
		TTSVoiceID     string
		AvatarBaseURL  string
		AvatarAPIKey   string
		TimeoutSeconds int
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置（环境变量，带默认值）
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "walkerwatch")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "walkerwatch-1")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1
	cfg.MQTT.WalkerTopic = getEnv("MQTT_WALKER_TOPIC", "walker/telemetry")
	cfg.MQTT.VisionTopic = getEnv("MQTT_VISION_TOPIC", "walker/vision")

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Ingest.AllowedResidentID = getEnv("INGEST_ALLOWED_RESIDENT_ID", "")
	cfg.Ingest.DedupeWindowMs = getEnvInt("INGEST_DEDUPE_WINDOW_MS", 250)

	cfg.Persist.IntervalSeconds = getEnvInt("PERSIST_INTERVAL_SECONDS", 5)
	cfg.Persist.CriticalIntervalSeconds = getEnvInt("PERSIST_RISK_INTERVAL_SECONDS", 1)
	cfg.Persist.FullPayloadEveryN = getEnvInt("PERSIST_FULL_PAYLOAD_EVERY_N", 3)

	cfg.Cache.RealtimeKeyPrefix = getEnv("CACHE_REALTIME_PREFIX", "walker:resident:")
	cfg.Cache.RealtimeTTL = getEnvInt("CACHE_REALTIME_TTL", 300)

	cfg.Retention.Enabled = getEnvBool("RETENTION_ENABLED", true)
	cfg.Retention.RunIntervalSeconds = getEnvInt("RETENTION_RUN_INTERVAL_SECONDS", 3600)
	cfg.Retention.MetricSamplesDays = getEnvInt("RETENTION_METRIC_SAMPLES_DAYS", 14)
	cfg.Retention.ExerciseSamplesDays = getEnvInt("RETENTION_EXERCISE_SAMPLES_DAYS", 30)
	cfg.Retention.IngestEventsDays = getEnvInt("RETENTION_INGEST_EVENTS_DAYS", 60)
	cfg.Retention.HourlyRollupsDays = getEnvInt("RETENTION_HOURLY_ROLLUPS_DAYS", 90)
	cfg.Retention.DailyRollupsDays = getEnvInt("RETENTION_DAILY_ROLLUPS_DAYS", 365)
	cfg.Retention.DailyReportsDays = getEnvInt("RETENTION_DAILY_REPORTS_DAYS", 365)

	cfg.Proactive.Enabled = getEnvBool("PROACTIVE_ENABLED", false)
	cfg.Proactive.WeightThresholdKg = getEnvFloat("PROACTIVE_WEIGHT_THRESHOLD_KG", 20.0)
	cfg.Proactive.BalanceThreshold = getEnvFloat("PROACTIVE_BALANCE_THRESHOLD", 0.30)
	cfg.Proactive.CooldownSeconds = getEnvInt("PROACTIVE_COOLDOWN_SECONDS", 20)
	cfg.Proactive.MaxSpeaksPerMinute = getEnvInt("PROACTIVE_MAX_SPEAKS_PER_MINUTE", 4)

	cfg.Collaborator.MessageBaseURL = getEnv("MESSAGE_BASE_URL", "")
	cfg.Collaborator.MessageAPIKey = getEnv("MESSAGE_API_KEY", "")
	cfg.Collaborator.MessageModel = getEnv("MESSAGE_MODEL", "gpt-4o-mini")
	cfg.Collaborator.TTSBaseURL = getEnv("TTS_BASE_URL", "")
	cfg.Collaborator.TTSAPIKey = getEnv("TTS_API_KEY", "")
	cfg.Collaborator.TTSVoiceID = getEnv("TTS_VOICE_ID", "")
	cfg.Collaborator.AvatarBaseURL = getEnv("AVATAR_BASE_URL", "")
	cfg.Collaborator.AvatarAPIKey = getEnv("AVATAR_API_KEY", "")
	cfg.Collaborator.TimeoutSeconds = getEnvInt("COLLABORATOR_TIMEOUT_SECONDS", 10)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
