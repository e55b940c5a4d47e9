package core

import (
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EngineMemory   = "memory"
	EnginePostgres = "postgres"
)

type (
	Config struct {
		AppName string
		Build   string
		Env     string // DEV (local; default), TEST, QA, PROD
		Debug   bool

		Server   ServerConfig
		Auth     AuthConfig
		Database DatabaseConfig
		Logging  LoggingConfig
		Jobs     JobsConfig
	}

	ServerConfig struct {
		Host            string
		Address         string
		DebugAddress    string
		ShutdownTimeout time.Duration
	}

	AuthConfig struct {
		// JWTSecret verifies bearer tokens issued by the identity provider.
		JWTSecret string
		// ServiceKeyHash is the bcrypt hash of the API key required by privileged endpoints.
		ServiceKeyHash string
	}

	DatabaseConfig struct {
		Engine     string // memory | postgres
		Host       string
		Port       int
		Name       string
		User       string
		Password   string
		DisableTLS bool
		MaxConns   int
	}

	LoggingConfig struct {
		Level        string
		RollbarToken string
		SentryDSN    string
	}

	JobsConfig struct {
		ExpiryInterval time.Duration
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// IsProd reports whether the app runs in production.
func (c *Config) IsProd() bool {
	return c.Env == "PROD"
}

// NewConfig loads the configuration from the environment.
// `config/.env.<env>` is loaded first if it exists; real env vars (prefixed with the env name,
// eg. DEV_DATABASE_HOST) take precedence over it.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("database_engine", EngineMemory)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName: v.GetString("app_name"),
		Build:   v.GetString("build"),
		Env:     env,
		Debug:   v.GetBool("debug"),
		Server: ServerConfig{
			Host:            v.GetString("server_host"),
			Address:         v.GetString("server_address"),
			DebugAddress:    v.GetString("server_debug_address"),
			ShutdownTimeout: v.GetDuration("server_shutdown_timeout"),
		},
		Auth: AuthConfig{
			JWTSecret:      v.GetString("jwt_secret"),
			ServiceKeyHash: v.GetString("service_key_hash"),
		},
		Database: DatabaseConfig{
			Engine:     v.GetString("database_engine"),
			Host:       v.GetString("database_host"),
			Port:       v.GetInt("database_port"),
			Name:       v.GetString("database_name"),
			User:       v.GetString("database_user"),
			Password:   v.GetString("database_password"),
			DisableTLS: v.GetBool("database_disable_tls"),
			MaxConns:   v.GetInt("database_max_conns"),
		},
		Logging: LoggingConfig{
			Level:        v.GetString("log_level"),
			RollbarToken: v.GetString("rollbar_token"),
			SentryDSN:    v.GetString("sentry_dsn"),
		},
		Jobs: JobsConfig{
			ExpiryInterval: v.GetDuration("jobs_expiry_interval"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("app_name", "LinguaLab")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)

	v.SetDefault("server_host", "localhost")
	v.SetDefault("server_address", ":8000")
	v.SetDefault("server_debug_address", ":4000")
	v.SetDefault("server_shutdown_timeout", 5*time.Second)

	v.SetDefault("jwt_secret", "dev-secret-change-me")
	v.SetDefault("service_key_hash", "")

	v.SetDefault("database_engine", EnginePostgres)
	v.SetDefault("database_host", "localhost")
	v.SetDefault("database_port", 5432)
	v.SetDefault("database_name", "lingualab")
	v.SetDefault("database_user", "lingualab")
	v.SetDefault("database_password", "lingualab")
	v.SetDefault("database_disable_tls", true)
	v.SetDefault("database_max_conns", 10)

	v.SetDefault("log_level", "info")
	v.SetDefault("rollbar_token", "")
	v.SetDefault("sentry_dsn", "")

	v.SetDefault("jobs_expiry_interval", time.Hour)
}

// DSN builds a postgres connection URL out of the database config.
func (c DatabaseConfig) DSN() string {
	sslMode := "require"
	if c.DisableTLS {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=%s&timezone=utc", c.User, c.Password, c.Address(), c.Name, sslMode)
}
