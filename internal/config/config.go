package config

type Config interface {
	EnvConfig
	CorsConfig
	AuthConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetPostgresDSN() string
	GetRedisAddr() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Auth
	Security
}

func New() Config {
	return mainConfig{}
}
