package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func lookupFrom(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFromLookup_Defaults(t *testing.T) {
	cfg := FromLookup(lookupFrom(nil))

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "govcy_session", cfg.SessionCookieName)
	assert.True(t, cfg.SecureCookies)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, 3, cfg.Gateway.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Gateway.AttemptTimeout)
	assert.False(t, cfg.Gateway.AllowSelfSigned)
	assert.Nil(t, cfg.Kafka.Brokers)
	assert.Equal(t, 256, cfg.Audit.Buffer)
}

func TestFromLookup_Overrides(t *testing.T) {
	cfg := FromLookup(lookupFrom(map[string]string{
		EnvAddr:            ":9000",
		EnvSessionTTL:      "1h",
		EnvRedisURL:        "redis://localhost:6379/0",
		EnvMaxAttempts:     "5",
		EnvAllowSelfSigned: "true",
		EnvKafkaBrokers:    " k1:9092, ,k2:9092 ",
		EnvSecureCookies:   "false",
	}))

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, 5, cfg.Gateway.MaxAttempts)
	assert.True(t, cfg.Gateway.AllowSelfSigned)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.SecureCookies)
}

func TestFromLookup_BadValuesFallBack(t *testing.T) {
	cfg := FromLookup(lookupFrom(map[string]string{
		EnvMaxAttempts:     "many",
		EnvSessionTTL:      "forever",
		EnvAllowSelfSigned: "perhaps",
	}))

	assert.Equal(t, 3, cfg.Gateway.MaxAttempts)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.False(t, cfg.Gateway.AllowSelfSigned)
}
