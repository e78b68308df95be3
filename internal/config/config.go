package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"helmet-monitor/ingestion/internal/domain"
)

type Config struct {
	// HTTP
	HTTPPort string
	AppEnv   string

	// TimescaleDB
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBMaxConns int32

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Collision detection
	AngleThreshold    float64
	VelocityThreshold float64

	// Escalation
	GraceDelay time.Duration
	Recipients []domain.Recipient

	// Notification gateway
	GatewayURL   string
	GatewayToken string
	SenderNumber string
	SenderEmail  string

	// Pipeline channels
	PersistChannelSize int
	StateChannelSize   int

	// Batch writer tuning
	DBBatchSize       int
	DBFlushIntervalMS int
	StateWorkers      int

	// Auth
	AuthCacheTTLSeconds int
	ValidAPIKeys        []string
}

func Load() *Config {
	return &Config{
		HTTPPort:            getEnv("HTTP_PORT", "4000"),
		AppEnv:              getEnv("APP_ENV", "development"),
		DBHost:              getEnv("DB_HOST", "localhost"),
		DBPort:              getEnv("DB_PORT", "5432"),
		DBUser:              getEnv("DB_USER", "helmet_user"),
		DBPassword:          getEnv("DB_PASSWORD", "helmet_password"),
		DBName:              getEnv("DB_NAME", "helmet_monitor"),
		DBMaxConns:          int32(getEnvInt("DB_MAX_CONNS", 15)),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		AngleThreshold:      getEnvFloat("ANGLE_THRESHOLD", 30.0),
		VelocityThreshold:   getEnvFloat("VELOCITY_THRESHOLD", 15.0),
		GraceDelay:          getEnvDuration("GRACE_DELAY", 60*time.Second),
		Recipients:          parseRecipients(getEnv("EMERGENCY_RECIPIENTS", "")),
		GatewayURL:          getEnv("NOTIFY_GATEWAY_URL", ""),
		GatewayToken:        getEnv("NOTIFY_GATEWAY_TOKEN", ""),
		SenderNumber:        getEnv("NOTIFY_SENDER_NUMBER", ""),
		SenderEmail:         getEnv("NOTIFY_SENDER_EMAIL", ""),
		PersistChannelSize:  getEnvInt("PERSIST_CHANNEL_SIZE", 10000),
		StateChannelSize:    getEnvInt("STATE_CHANNEL_SIZE", 50000),
		DBBatchSize:         getEnvInt("DB_BATCH_SIZE", 500),
		DBFlushIntervalMS:   getEnvInt("DB_FLUSH_INTERVAL_MS", 100),
		StateWorkers:        getEnvInt("STATE_WORKERS", 3),
		AuthCacheTTLSeconds: getEnvInt("AUTH_CACHE_TTL_SECONDS", 300),
		ValidAPIKeys:        strings.Split(getEnv("VALID_API_KEYS", ""), ","),
	}
}

// parseRecipients reads "sms:+15550100,email:ops@example.com" into an ordered
// recipient list. Entries without a channel prefix default to SMS, matching
// what the first generation of helmets was provisioned with.
func parseRecipients(raw string) []domain.Recipient {
	if raw == "" {
		return nil
	}
	var out []domain.Recipient
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		channel := domain.ChannelSMS
		address := entry
		if c, rest, ok := strings.Cut(entry, ":"); ok {
			switch strings.ToLower(c) {
			case "sms":
				channel, address = domain.ChannelSMS, rest
			case "email":
				channel, address = domain.ChannelEmail, rest
			}
		}
		out = append(out, domain.Recipient{Address: address, Channel: channel})
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
