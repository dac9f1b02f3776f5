// Package config builds the process configuration once at startup.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is passed explicitly to every component that needs settings.
type Config struct {
	Addr              string
	LogLevel          string
	SitesDir          string
	SessionTTL        time.Duration
	SessionCookieName string
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
	Redis         RedisConfig
	Gateway       GatewayConfig
	Notification  NotificationConfig
	Kafka         KafkaConfig
	Audit         AuditConfig
}

// RedisConfig configures the session store client. An empty URL keeps
// sessions in memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// GatewayConfig configures outbound API calls.
type GatewayConfig struct {
	AttemptTimeout  time.Duration
	MaxAttempts     int
	RetryDelay      time.Duration
	AllowSelfSigned bool
}

// NotificationConfig configures the notifier and its breaker.
type NotificationConfig struct {
	Timeout          time.Duration
	FailureThreshold int
	Cooldown         time.Duration
}

// KafkaConfig configures the audit sink. No brokers keeps audit in memory.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// AuditConfig sizes the async audit buffer.
type AuditConfig struct {
	Buffer int
}

// Environment variable names.
const (
	EnvAddr              = "GOVCY_ADDR"
	EnvLogLevel          = "LOG_LEVEL"
	EnvSitesDir          = "GOVCY_SITES_DIR"
	EnvSessionTTL        = "SESSION_TTL"
	EnvSessionCookieName = "SESSION_COOKIE_NAME"
	EnvSecureCookies     = "SESSION_COOKIE_SECURE"
	EnvRedisURL          = "REDIS_URL"
	EnvRedisPoolSize     = "REDIS_POOL_SIZE"
	EnvRedisMinIdle      = "REDIS_MIN_IDLE_CONNS"
	EnvRedisDialTimeout  = "REDIS_DIAL_TIMEOUT"
	EnvRedisReadTimeout  = "REDIS_READ_TIMEOUT"
	EnvRedisWriteTimeout = "REDIS_WRITE_TIMEOUT"
	EnvAttemptTimeout    = "API_ATTEMPT_TIMEOUT"
	EnvMaxAttempts       = "API_MAX_ATTEMPTS"
	EnvRetryDelay        = "API_RETRY_DELAY"
	EnvAllowSelfSigned   = "ALLOW_SELF_SIGNED_CERTIFICATES"
	EnvNotifyTimeout     = "NOTIFICATION_TIMEOUT"
	EnvNotifyFailures    = "NOTIFICATION_FAILURE_THRESHOLD"
	EnvNotifyCooldown    = "NOTIFICATION_COOLDOWN"
	EnvKafkaBrokers      = "KAFKA_BROKERS"
	EnvKafkaTopic        = "KAFKA_AUDIT_TOPIC"
	EnvAuditBuffer       = "AUDIT_BUFFER"
)

// FromEnv builds a Config from the process environment so main stays lean.
func FromEnv() Config {
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from lookup. Unset or unparsable values fall
// back to defaults.
func FromLookup(lookup func(string) (string, bool)) Config {
	e := env(lookup)
	return Config{
		Addr:              e.str(EnvAddr, ":8080"),
		LogLevel:          e.str(EnvLogLevel, "info"),
		SitesDir:          e.str(EnvSitesDir, "data"),
		SessionTTL:        e.duration(EnvSessionTTL, 30*time.Minute),
		SessionCookieName: e.str(EnvSessionCookieName, "govcy_session"),
		SecureCookies:     e.boolean(EnvSecureCookies, true),
		Redis: RedisConfig{
			URL:          e.str(EnvRedisURL, ""),
			PoolSize:     e.integer(EnvRedisPoolSize, 10),
			MinIdleConns: e.integer(EnvRedisMinIdle, 2),
			DialTimeout:  e.duration(EnvRedisDialTimeout, 5*time.Second),
			ReadTimeout:  e.duration(EnvRedisReadTimeout, 3*time.Second),
			WriteTimeout: e.duration(EnvRedisWriteTimeout, 3*time.Second),
		},
		Gateway: GatewayConfig{
			AttemptTimeout:  e.duration(EnvAttemptTimeout, 10*time.Second),
			MaxAttempts:     e.integer(EnvMaxAttempts, 3),
			RetryDelay:      e.duration(EnvRetryDelay, 500*time.Millisecond),
			AllowSelfSigned: e.boolean(EnvAllowSelfSigned, false),
		},
		Notification: NotificationConfig{
			Timeout:          e.duration(EnvNotifyTimeout, 15*time.Second),
			FailureThreshold: e.integer(EnvNotifyFailures, 5),
			Cooldown:         e.duration(EnvNotifyCooldown, 30*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: e.list(EnvKafkaBrokers),
			Topic:   e.str(EnvKafkaTopic, "govcy.audit"),
		},
		Audit: AuditConfig{
			Buffer: e.integer(EnvAuditBuffer, 256),
		},
	}
}

type env func(string) (string, bool)

func (e env) str(key, def string) string {
	if v, ok := e(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (e env) integer(key string, def int) int {
	if n, err := strconv.Atoi(e.str(key, "")); err == nil {
		return n
	}
	return def
}

func (e env) boolean(key string, def bool) bool {
	if b, err := strconv.ParseBool(e.str(key, "")); err == nil {
		return b
	}
	return def
}

func (e env) duration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(e.str(key, "")); err == nil {
		return d
	}
	return def
}

func (e env) list(key string) []string {
	var out []string
	for _, part := range strings.Split(e.str(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
