package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	SiteID    string          `yaml:"site_id"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Web       WebConfig       `yaml:"web"`
	Messaging MessagingConfig `yaml:"messaging"`
	Capacity  CapacityConfig  `yaml:"capacity"`
	Reports   ReportsConfig   `yaml:"reports"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // "sqlite" or "postgres"
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type WebConfig struct {
	Host              string `yaml:"host"`
	Port              int    `yaml:"port"`
	SessionSecret     string `yaml:"session_secret"`
	AdminUser         string `yaml:"admin_user"`
	AdminPasswordHash string `yaml:"admin_password_hash"` // bcrypt; empty disables auth on write endpoints
}

type MessagingConfig struct {
	Backend             string        `yaml:"backend"` // "kafka", "mqtt" or "none"
	Kafka               KafkaConfig   `yaml:"kafka"`
	MQTT                MQTTConfig    `yaml:"mqtt"`
	EventsTopic         string        `yaml:"events_topic"`
	OutboxDrainInterval time.Duration `yaml:"outbox_drain_interval"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	QoS      byte   `yaml:"qos"`
}

type CapacityConfig struct {
	DefaultRackSizeU int           `yaml:"default_rack_size_u"`
	CheckIncoming    bool          `yaml:"check_incoming"`
	LockBackend      string        `yaml:"lock_backend"` // "local" or "redis"
	LockTTL          time.Duration `yaml:"lock_ttl"`
	FleetConcurrency int           `yaml:"fleet_concurrency"`
}

// ReportsConfig controls periodic archiving of fleet utilization workbooks.
type ReportsConfig struct {
	Archive  bool          `yaml:"archive"`
	Interval time.Duration `yaml:"interval"`
	MinIO    MinIOConfig   `yaml:"minio"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// DefaultSessionSecret is the placeholder shipped in Defaults. It is refused
// once an admin password is configured.
const DefaultSessionSecret = "rackcore-change-me"

func Defaults() *Config {
	return &Config{
		SiteID: "dc1",
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: "rackcore.db"},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "rackcore",
				User:     "rackcore",
				SSLMode:  "disable",
			},
		},
		Redis: RedisConfig{
			Address: "localhost:6379",
		},
		Web: WebConfig{
			Host:          "0.0.0.0",
			Port:          8085,
			SessionSecret: DefaultSessionSecret,
			AdminUser:     "admin",
		},
		Messaging: MessagingConfig{
			Backend:             "none",
			Kafka:               KafkaConfig{Brokers: []string{"localhost:9092"}},
			MQTT:                MQTTConfig{Broker: "tcp://localhost:1883", ClientID: "rackcore"},
			EventsTopic:         "rackcore.events",
			OutboxDrainInterval: 5 * time.Second,
		},
		Capacity: CapacityConfig{
			DefaultRackSizeU: 42,
			LockBackend:      "local",
			LockTTL:          10 * time.Second,
			FleetConcurrency: 8,
		},
		Reports: ReportsConfig{
			Interval: time.Hour,
			MinIO: MinIOConfig{
				Endpoint: "localhost:9000",
				Bucket:   "rackcore-reports",
			},
		},
	}
}

// Load reads a YAML config over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	switch c.Messaging.Backend {
	case "kafka", "mqtt", "none", "":
	default:
		return fmt.Errorf("unsupported messaging backend: %s", c.Messaging.Backend)
	}
	switch c.Capacity.LockBackend {
	case "local", "redis":
	default:
		return fmt.Errorf("unsupported lock backend: %s", c.Capacity.LockBackend)
	}
	if c.Capacity.LockBackend == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("lock backend redis requires redis.enabled")
	}
	if c.Capacity.DefaultRackSizeU <= 0 {
		return fmt.Errorf("capacity.default_rack_size_u must be positive, got %d", c.Capacity.DefaultRackSizeU)
	}
	if c.Capacity.FleetConcurrency <= 0 {
		return fmt.Errorf("capacity.fleet_concurrency must be positive, got %d", c.Capacity.FleetConcurrency)
	}
	if c.Web.AdminPasswordHash != "" {
		if c.Web.SessionSecret == "" || c.Web.SessionSecret == DefaultSessionSecret {
			return fmt.Errorf("web.session_secret must be set to a private value when web.admin_password_hash is configured")
		}
	}
	if c.Reports.Archive {
		if c.Reports.Interval <= 0 {
			return fmt.Errorf("reports.interval must be positive")
		}
		if c.Reports.MinIO.Endpoint == "" || c.Reports.MinIO.Bucket == "" {
			return fmt.Errorf("reports.archive requires reports.minio.endpoint and bucket")
		}
	}
	return nil
}

// Save writes the config back as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
