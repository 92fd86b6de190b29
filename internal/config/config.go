package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config interface {
	EnvConfig
	IdentityConfig
	DatabaseConfig
	SessionConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetMetricsAddr() string
}

type mainConfig struct {
	EnvVars
	Identity
	Database
	Session
}

// New parses the environment into a Config. Unset variables take their defaults.
func New() (Config, error) {
	var c mainConfig
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("[config.New] parse env: %w", err)
	}
	return c, nil
}

type EnvVars struct {
	AppName     string `env:"APP_NAME" envDefault:"Voter Registration"`
	Env         string `env:"ENV" envDefault:"DEV"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	MetricsAddr string `env:"METRICS_ADDR"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	return e.Env
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

// GetMetricsAddr returns the listen address for /metrics; empty disables it.
func (e EnvVars) GetMetricsAddr() string {
	return e.MetricsAddr
}
