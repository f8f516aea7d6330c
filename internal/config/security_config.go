package config

type SecurityConfig interface {
	GetSigningSecret() string
	GetIssuer() string
	GetAudience() string
	GetEnableLoginThrottle() bool
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetSigningSecret returns the symmetric key used to sign access tokens.
// The default exists for local development only.
func (Security) GetSigningSecret() string {
	return GetEnv("SIGNING_SECRET", "dev-signing-secret-do-not-deploy")
}

func (Security) GetIssuer() string {
	return GetEnv("TOKEN_ISSUER", "taskhive-identity")
}

func (Security) GetAudience() string {
	return GetEnv("TOKEN_AUDIENCE", "taskhive-api")
}

func (Security) GetEnableLoginThrottle() bool {
	return GetEnv("LOGIN_THROTTLE", "true") == "true"
}
