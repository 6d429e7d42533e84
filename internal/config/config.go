package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env"
)

type Config struct {
	ServerAddr           string        `env:"RUN_ADDRESS"`
	LogLevel             string        `env:"LOG_LEVEL"`
	DatabaseURI          string        `env:"DATABASE_URI"`
	ProviderAddr         string        `env:"PROVIDER_ADDRESS"`
	ProviderAPIKey       string        `env:"PROVIDER_API_KEY"`
	ProviderPollInterval time.Duration `env:"PROVIDER_POLL_INTERVAL"`
	JWTSecretKey         string        `env:"JWT_SECRET_KEY"`
	AdminEmail           string        `env:"ADMIN_EMAIL"`
	AdminPassword        string        `env:"ADMIN_PASSWORD"`
}

func NewConfig() (Config, error) {
	cfg := Config{}

	flag.StringVar(&cfg.ServerAddr, "a", "0.0.0.0:8080", "server listening address [env:RUN_ADDRESS]")
	flag.StringVar(&cfg.LogLevel, "l", "info", "log output level [env:LOG_LEVEL]")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database connection string [env:DATABASE_URI]")
	flag.StringVar(&cfg.ProviderAddr, "r", "https://api.jasaotp.id/v2", "OTP provider base URL [env:PROVIDER_ADDRESS]")
	flag.StringVar(&cfg.ProviderAPIKey, "k", "", "OTP provider API key [env:PROVIDER_API_KEY]")
	flag.StringVar(&cfg.JWTSecretKey, "s", "secretkey", "JWT secret to sign tokens [env:JWT_SECRET_KEY]")
	flag.DurationVar(&cfg.ProviderPollInterval, "i", 5*time.Second, "pending order poll interval [env:PROVIDER_POLL_INTERVAL]")
	flag.StringVar(&cfg.AdminEmail, "admin-email", "", "bootstrap admin account email [env:ADMIN_EMAIL]")
	flag.StringVar(&cfg.AdminPassword, "admin-password", "", "bootstrap admin account password [env:ADMIN_PASSWORD]")
	flag.Parse()

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("env.Parse: %w", err)
	}

	return cfg, nil
}
