package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Trigger   TriggerConfig   `mapstructure:"trigger"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	FreqCap   FreqCapConfig   `mapstructure:"freq_cap"`
}

type ServerConfig struct {
	Port           int     `mapstructure:"port"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// TriggerConfig protects the cron-provider entry points. The secret is
// accepted via the X-Cron-Secret header or as a bearer token.
type TriggerConfig struct {
	Secret string `mapstructure:"secret"`
}

type SchedulerConfig struct {
	LeaseTTL time.Duration `mapstructure:"lease_ttl"`
}

type ReconcileConfig struct {
	GracePeriod time.Duration `mapstructure:"grace_period"`
	BatchSize   int           `mapstructure:"batch_size"`
}

type AlertingConfig struct {
	OperatorEmail string        `mapstructure:"operator_email"`
	Cooldown      time.Duration `mapstructure:"cooldown"`
}

type FreqCapConfig struct {
	DailyLimit int `mapstructure:"daily_limit"`
}

// envOverrides are secrets and endpoints that deployments inject via
// the environment rather than the config file.
type envOverrides struct {
	DatabasePassword string `envconfig:"DB_PASSWORD"`
	RedisAddr        string `envconfig:"REDIS_ADDR"`
	SMTPPassword     string `envconfig:"SMTP_PASSWORD"`
	TriggerSecret    string `envconfig:"CRON_SECRET"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var env envOverrides
	if err := envconfig.Process("curbwise", &env); err != nil {
		return nil, fmt.Errorf("failed to process env overrides: %w", err)
	}
	if env.DatabasePassword != "" {
		config.Database.Password = env.DatabasePassword
	}
	if env.RedisAddr != "" {
		config.Redis.Addr = env.RedisAddr
	}
	if env.SMTPPassword != "" {
		config.SMTP.Password = env.SMTPPassword
	}
	if env.TriggerSecret != "" {
		config.Trigger.Secret = env.TriggerSecret
	}

	if config.Trigger.Secret == "" {
		return nil, fmt.Errorf("trigger secret must be configured")
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.timeout_seconds", 120)
	viper.SetDefault("server.rate_limit_rps", 10.0)
	viper.SetDefault("server.rate_limit_burst", 20)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("smtp.port", 587)
	viper.SetDefault("scheduler.lease_ttl", 30*time.Minute)
	viper.SetDefault("reconcile.grace_period", time.Hour)
	viper.SetDefault("reconcile.batch_size", 200)
	viper.SetDefault("alerting.cooldown", 4*time.Hour)
	viper.SetDefault("freq_cap.daily_limit", 3)
}
