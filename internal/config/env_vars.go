package config

import (
	"fmt"
	"os"
)

const (
	portEnvVar   = "PORT"
	appNameVar   = "APP_NAME"
	postgresVar  = "POSTGRES_DSN"
	redisAddrVar = "REDIS_ADDR"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "TaskHive Identity")
}

// GetPostgresDSN returns the connection string for the authoritative store.
// Empty means the server runs against the in-memory fakes (dev mode).
func (EnvVars) GetPostgresDSN() string {
	return GetEnv(postgresVar, "")
}

// GetRedisAddr returns the redis address used by the login throttle.
// Empty disables the redis throttle and falls back to the in-process limiter.
func (EnvVars) GetRedisAddr() string {
	return GetEnv(redisAddrVar, "")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
