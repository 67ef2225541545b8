// Package testkit starts Postgres and Redis for integration tests using testcontainers.
package testkit

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds environment-driven settings for integration test infrastructure.
// Every key can be overridden with a RATESVC_TEST_ prefixed variable.
type Config struct {
	PGImage        string
	RedisImage     string
	PGDSN          string        // If set, skip the Postgres container.
	RedisAddr      string        // If set, skip the Redis container.
	StartupTimeout time.Duration // Max time to wait for containers to become ready.
	KeepContainers bool          // If true, do not terminate containers on shutdown.
}

// LoadConfig reads test infrastructure settings from the environment.
func LoadConfig() Config {
	v := viper.New()
	v.SetEnvPrefix("RATESVC_TEST")
	v.AutomaticEnv()

	v.SetDefault("pg_image", "postgres:18.1-alpine")
	v.SetDefault("redis_image", "redis:8.4.0-alpine")
	v.SetDefault("pg_dsn", "")
	v.SetDefault("redis_addr", "")
	v.SetDefault("startup_timeout", 90*time.Second)
	v.SetDefault("keep_containers", false)

	return Config{
		PGImage:        v.GetString("pg_image"),
		RedisImage:     v.GetString("redis_image"),
		PGDSN:          v.GetString("pg_dsn"),
		RedisAddr:      v.GetString("redis_addr"),
		StartupTimeout: v.GetDuration("startup_timeout"),
		KeepContainers: v.GetBool("keep_containers"),
	}
}
