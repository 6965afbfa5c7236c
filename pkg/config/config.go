package config

import "time"

// Chat definition chat_service YAML structure
type Chat struct {
	Port     string `mapstructure:"port"`
	GRPCPort string `mapstructure:"grpc_port"`
	Debug    bool   `mapstructure:"debug"`

	MongoSQL   DatabaseConfig   `mapstructure:"mongo"`
	Redis      RedisConfig      `mapstructure:"redis"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	PostgreSQL DatabaseConfig   `mapstructure:"pg"`
	Moderation ModerationConfig `mapstructure:"moderation"`
	Events     EventConfig      `mapstructure:"events"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
}

// RedisConfig definition redis setting, Addr 有值時使用單節點，否則使用 .env 的 sentinel
type RedisConfig struct {
	Addr    string `mapstructure:"addr"`
	RedisDB int    `mapstructure:"redis_db"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// MinIOConfig definition image bucket setting
type MinIOConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	User          string        `mapstructure:"user"`
	Password      string        `mapstructure:"password"`
	BucketName    string        `mapstructure:"bucket"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	URLExpiry     time.Duration `mapstructure:"url_expiry"`
	MaxImageBytes int64         `mapstructure:"max_image_bytes"`
	RetryInterval int           `mapstructure:"retry_interval"`
	RetryCount    int           `mapstructure:"retry_count"`
}

// ModerationConfig definition content moderation endpoint
type ModerationConfig struct {
	URL     string        `mapstructure:"url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
	RPS     float64       `mapstructure:"rps"`
	Burst   int           `mapstructure:"burst"`
}

// EventConfig definition chat event bus, Driver: kafka | rabbitmq | none
type EventConfig struct {
	Driver        string   `mapstructure:"driver"`
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	AMQPURL       string   `mapstructure:"amqp_url"`
	Exchange      string   `mapstructure:"exchange"`
	RetryInterval int      `mapstructure:"retry_interval"`
	RetryCount    int      `mapstructure:"retry_count"`
}

// JWTConfig definition token setting
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// RateLimitConfig definition per member send limit
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}
