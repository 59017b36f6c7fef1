package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port    int               `yaml:"port"`
		APIKeys map[string]string `yaml:"apiKeys"` // tenant -> key, kosong = auth mati
		RateLimit struct {
			Capacity   int `yaml:"capacity"`
			RefillRate int `yaml:"refillRate"` // token per detik
		} `yaml:"rateLimit"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // memory | mysql | postgres
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Storage struct {
		Driver string `yaml:"driver"` // minio | fs
		Root   string `yaml:"root"`   // dipakai driver fs
	} `yaml:"storage"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Redis struct {
		Enabled       bool   `yaml:"enabled"`
		Addr          string `yaml:"addr"`
		Password      string `yaml:"password"`
		DB            int    `yaml:"db"`
		Limit         int    `yaml:"limit"` // request per window per tenant
		WindowSeconds int    `yaml:"windowSeconds"`
	} `yaml:"redis"`

	Kafka struct {
		Enabled       bool     `yaml:"enabled"`
		Brokers       []string `yaml:"brokers"`
		AnalysisTopic string   `yaml:"analysisTopic"`
		BatchTopic    string   `yaml:"batchTopic"`
	} `yaml:"kafka"`

	OpenAI struct {
		APIKey string `yaml:"apiKey"`
		Model  string `yaml:"model"`
	} `yaml:"openai"`

	Analysis struct {
		Workers                int      `yaml:"workers"`
		QueueSize              int      `yaml:"queueSize"`
		DetectorTimeoutSeconds int      `yaml:"detectorTimeoutSeconds"`
		DisabledDetectors      []string `yaml:"disabledDetectors"`
		Retry struct {
			Attempts int `yaml:"attempts"`
			BaseMS   int `yaml:"baseMs"`
			MaxMS    int `yaml:"maxMs"`
		} `yaml:"retry"`
		Weights struct {
			Content   float64 `yaml:"content"`
			Structure float64 `yaml:"structure"`
			Metadata  float64 `yaml:"metadata"`
			Visual    float64 `yaml:"visual"`
		} `yaml:"weights"`
		Thresholds struct {
			Low    float64 `yaml:"low"`
			Medium float64 `yaml:"medium"`
			High   float64 `yaml:"high"`
		} `yaml:"thresholds"`
	} `yaml:"analysis"`
}

// Load baca file config.yaml lalu timpa dengan env.
// File boleh tidak ada; env saja cukup untuk jalan.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// applyEnv timpa secret dan endpoint dari environment,
// supaya yaml yang di-commit tidak perlu bawa credential
func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	// API_KEYS=tenant1:key1,tenant2:key2
	if v := os.Getenv("API_KEYS"); v != "" {
		keys := map[string]string{}
		for _, pair := range strings.Split(v, ",") {
			parts := strings.SplitN(pair, ":", 2)
			if len(parts) == 2 && parts[0] != "" {
				keys[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
			}
		}
		if len(keys) > 0 {
			c.Server.APIKeys = keys
		}
	}
	if v := os.Getenv("DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Database.Port = p
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Database.Name = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		c.Minio.Endpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		c.Minio.AccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		c.Minio.SecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		c.Minio.BucketName = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		c.OpenAI.Model = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RateLimit.Capacity == 0 {
		c.Server.RateLimit.Capacity = 60
	}
	if c.Server.RateLimit.RefillRate == 0 {
		c.Server.RateLimit.RefillRate = 30
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "memory"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Storage.Driver == "" {
		if c.Minio.Endpoint != "" {
			c.Storage.Driver = "minio"
		} else {
			c.Storage.Driver = "fs"
		}
	}
	if c.Storage.Root == "" {
		c.Storage.Root = "./data/documents"
	}
	if c.Redis.Limit == 0 {
		c.Redis.Limit = 120
	}
	if c.Redis.WindowSeconds == 0 {
		c.Redis.WindowSeconds = 60
	}
	if c.Kafka.AnalysisTopic == "" {
		c.Kafka.AnalysisTopic = "forensics.analysis.completed"
	}
	if c.Kafka.BatchTopic == "" {
		c.Kafka.BatchTopic = "forensics.batch.completed"
	}
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Helper untuk build DSN Postgres (lib/pq key=value)
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
