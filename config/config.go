package config

import (
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	mu sync.RWMutex `yaml:"-"`

	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Web       WebConfig       `yaml:"web"`
	Messaging MessagingConfig `yaml:"messaging"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Retention RetentionConfig `yaml:"retention"`
}

type DatabaseConfig struct {
	SQLite SQLiteConfig `yaml:"sqlite"`
	D1     D1Config     `yaml:"d1"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// D1Config holds Cloudflare D1 credentials. When all three fields are set
// the service runs against the remote D1 database instead of local SQLite.
type D1Config struct {
	AccountID  string        `yaml:"account_id"`
	APIToken   string        `yaml:"api_token"`
	DatabaseID string        `yaml:"database_id"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Configured reports whether remote credentials are present.
func (c *D1Config) Configured() bool {
	return c.AccountID != "" && c.APIToken != "" && c.DatabaseID != ""
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type WebConfig struct {
	Host          string   `yaml:"host"`
	Port          int      `yaml:"port"`
	SessionSecret string   `yaml:"session_secret"`
	CORSOrigins   []string `yaml:"cors_origins"`
}

type MessagingConfig struct {
	MQTT                MQTTConfig    `yaml:"mqtt"`
	Kafka               KafkaConfig   `yaml:"kafka"`
	ReadingsTopic       string        `yaml:"readings_topic"`
	AlertsTopic         string        `yaml:"alerts_topic"`
	OutboxDrainInterval time.Duration `yaml:"outbox_drain_interval"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
	Enabled  bool   `yaml:"enabled"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Enabled bool     `yaml:"enabled"`
}

type AlertsConfig struct {
	DefaultLowThreshold      int `yaml:"default_low_threshold"`
	DefaultCriticalThreshold int `yaml:"default_critical_threshold"`
	CooldownMinutes          int `yaml:"cooldown_minutes"`
}

type RetentionConfig struct {
	Days            int           `yaml:"days"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

func Defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			SQLite: SQLiteConfig{Path: "binwatch.db"},
			D1:     D1Config{Timeout: 30 * time.Second},
		},
		Redis: RedisConfig{
			Address:  "localhost:6379",
			Password: "",
			DB:       0,
		},
		Web: WebConfig{
			Host:          "0.0.0.0",
			Port:          8000,
			SessionSecret: "change-me-in-production",
			CORSOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		},
		Messaging: MessagingConfig{
			MQTT: MQTTConfig{
				Broker:   "localhost",
				Port:     1883,
				ClientID: "binwatch",
			},
			Kafka: KafkaConfig{
				Brokers: []string{"localhost:9092"},
			},
			ReadingsTopic:       "bins/+/reading",
			AlertsTopic:         "binwatch.alerts",
			OutboxDrainInterval: 5 * time.Second,
		},
		Alerts: AlertsConfig{
			DefaultLowThreshold:      10,
			DefaultCriticalThreshold: 5,
			CooldownMinutes:          30,
		},
		Retention: RetentionConfig{
			Days:            90,
			CleanupInterval: 24 * time.Hour,
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
