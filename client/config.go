package client

import (
	"time"

	"github.com/panyam/authflow/internal/config"
)

// Config locates the identity server
type Config struct {
	ServerURL   string        `env:"AUTHFLOW_SERVER_URL" envDefault:"http://localhost:8080"`
	TokenPath   string        `env:"AUTHFLOW_TOKEN_PATH" envDefault:"/auth/token"`
	SignupPath  string        `env:"AUTHFLOW_SIGNUP_PATH" envDefault:"/auth/signup"`
	ProfilePath string        `env:"AUTHFLOW_PROFILE_PATH" envDefault:"/auth/me"`
	ClientID    string        `env:"AUTHFLOW_CLIENT_ID" envDefault:"cli"`
	Timeout     time.Duration `env:"AUTHFLOW_HTTP_TIMEOUT" envDefault:"10s"`
}

// LoadConfig reads Config from AUTHFLOW_* environment variables
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) ensureDefaults() {
	if c.TokenPath == "" {
		c.TokenPath = "/auth/token"
	}
	if c.SignupPath == "" {
		c.SignupPath = "/auth/signup"
	}
	if c.ProfilePath == "" {
		c.ProfilePath = "/auth/me"
	}
	if c.ClientID == "" {
		c.ClientID = "cli"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}
