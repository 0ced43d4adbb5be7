package server

import (
	"time"

	"github.com/panyam/authflow/internal/config"
)

// Config holds the identity server settings, read from AUTHFLOW_* variables.
type Config struct {
	Addr              string        `env:"AUTHFLOW_LISTEN_ADDR" envDefault:":8080"`
	JWTSecretKey      string        `env:"AUTHFLOW_JWT_SECRET" envDefault:"authflow-dev-secret"`
	JWTIssuer         string        `env:"AUTHFLOW_JWT_ISSUER" envDefault:"authflow"`
	AccessTokenExpiry time.Duration `env:"AUTHFLOW_ACCESS_TOKEN_EXPIRY" envDefault:"1h"`
	TokenPath         string        `env:"AUTHFLOW_TOKEN_PATH" envDefault:"/auth/token"`
	SignupPath        string        `env:"AUTHFLOW_SIGNUP_PATH" envDefault:"/auth/signup"`
	ProfilePath       string        `env:"AUTHFLOW_PROFILE_PATH" envDefault:"/auth/me"`
	ShutdownTimeout   time.Duration `env:"AUTHFLOW_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// LoadConfig reads Config from the environment
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) ensureDefaults() {
	if c.AccessTokenExpiry <= 0 {
		c.AccessTokenExpiry = time.Hour
	}
	if c.TokenPath == "" {
		c.TokenPath = "/auth/token"
	}
	if c.SignupPath == "" {
		c.SignupPath = "/auth/signup"
	}
	if c.ProfilePath == "" {
		c.ProfilePath = "/auth/me"
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}
