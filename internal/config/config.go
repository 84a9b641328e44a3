// Package config loads client and server settings from the environment and an
// optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// Port is the login endpoint listen port.
	Port string `mapstructure:"PORT"`
	// LoginHost is the base URL the client forwards assertions to.
	LoginHost    string        `mapstructure:"LOGIN_HOST"`
	LoginTimeout time.Duration `mapstructure:"LOGIN_TIMEOUT"`

	// AssertionProvider selects where the client gets assertions from: idtoken, secret or static.
	AssertionProvider string `mapstructure:"ASSERTION_PROVIDER"`
	// AssertionAudience is the audience of Google ID tokens, on both sides.
	AssertionAudience string `mapstructure:"ASSERTION_AUDIENCE"`
	// AssertionIssuer names this deployment in user records.
	AssertionIssuer string `mapstructure:"ASSERTION_ISSUER"`
	// AssertionValue is the assertion handed out by the static provider.
	AssertionValue string `mapstructure:"ASSERTION_VALUE"`
	ServiceName    string `mapstructure:"SERVICE_NAME"`
	Email          string `mapstructure:"LOGIN_EMAIL"`

	GCPProjectID string `mapstructure:"GCP_PROJECT_ID"`

	// Verifier selects how the server checks assertions: idtoken or secret.
	Verifier string `mapstructure:"VERIFIER"`
	// RedisAddr enables the shared replay guard; empty keeps it in memory.
	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	ReplayTTL     time.Duration `mapstructure:"REPLAY_TTL"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	TriggerClass string `mapstructure:"TRIGGER_CLASS"`
}

// Load reads .env (if present), then builds Config from the environment.
// Env vars override .env.
func Load() (*Config, error) {
	return load(".env")
}

func load(envFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore missing .env

	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("LOGIN_HOST", "http://localhost:8080")
	v.SetDefault("LOGIN_TIMEOUT", "10s")
	v.SetDefault("ASSERTION_PROVIDER", "idtoken")
	v.SetDefault("ASSERTION_AUDIENCE", "")
	v.SetDefault("ASSERTION_ISSUER", "assertion-login")
	v.SetDefault("ASSERTION_VALUE", "")
	v.SetDefault("SERVICE_NAME", "")
	v.SetDefault("LOGIN_EMAIL", "")
	v.SetDefault("GCP_PROJECT_ID", "")
	v.SetDefault("VERIFIER", "idtoken")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REPLAY_TTL", "15m")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("TRIGGER_CLASS", "browserid")

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config unmarshal: %w", err)
	}
	return &c, nil
}

// ValidateClient checks the settings the login client needs.
func (c *Config) ValidateClient() error {
	switch c.AssertionProvider {
	case "idtoken":
		if c.AssertionAudience == "" {
			return errors.New("ASSERTION_AUDIENCE is required for the idtoken provider")
		}
	case "secret":
		if c.GCPProjectID == "" {
			return errors.New("GCP_PROJECT_ID is required for the secret provider")
		}
		if c.ServiceName == "" {
			return errors.New("SERVICE_NAME is required for the secret provider")
		}
	case "static":
	default:
		return fmt.Errorf("unknown ASSERTION_PROVIDER %q", c.AssertionProvider)
	}
	if c.LoginHost == "" {
		return errors.New("LOGIN_HOST must not be empty")
	}
	return nil
}

// ValidateServer checks the settings the login endpoint needs.
func (c *Config) ValidateServer() error {
	switch c.Verifier {
	case "idtoken":
		if c.AssertionAudience == "" {
			return errors.New("ASSERTION_AUDIENCE is required for the idtoken verifier")
		}
	case "secret":
		if c.GCPProjectID == "" {
			return errors.New("GCP_PROJECT_ID is required for the secret verifier")
		}
	default:
		return fmt.Errorf("unknown VERIFIER %q", c.Verifier)
	}
	if c.ReplayTTL <= 0 {
		return errors.New("REPLAY_TTL must be positive")
	}
	return nil
}
