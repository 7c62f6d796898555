package planstore

import (
	"time"
)

// Config is the root configuration for the planstore client and server.
// Its YAML shape is shared with the server's config file format.
type Config struct {
	// KVStore selects and configures the key-value store backend.
	KVStore KVStoreConfig `yaml:"kvstore" json:"kvstore"`

	// Server contains HTTP server settings.
	Server ServerConfig `yaml:"server" json:"server"`

	// Auth contains JWKS-based authentication settings for write routes.
	Auth AuthConfig `yaml:"auth" json:"auth"`

	// Icons contains object storage settings for plan icons.
	Icons IconsConfig `yaml:"icons" json:"icons"`

	// Events contains change-notification settings.
	Events EventsConfig `yaml:"events" json:"events"`
}

// KVStoreConfig selects and configures the key-value store backend.
type KVStoreConfig struct {
	// Type specifies the backend: "memory", "redis", "dynamodb", "mysql" or
	// "badger".
	Type string `yaml:"type" json:"type"`

	Redis    RedisConfig    `yaml:"redis" json:"redis"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb" json:"dynamodb"`
	MySQL    MySQLConfig    `yaml:"mysql" json:"mysql"`
	Badger   BadgerConfig   `yaml:"badger" json:"badger"`

	// MaxRetries is the maximum number of retries for failed operations.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// DialTimeout is the timeout for establishing connections.
	DialTimeout time.Duration `yaml:"dial_timeout" json:"dial_timeout"`

	// ReadTimeout is the timeout for read operations.
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`

	// WriteTimeout is the timeout for write operations.
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// RedisConfig contains Redis-specific settings.
type RedisConfig struct {
	Endpoints    []string `yaml:"endpoints" json:"endpoints"`
	ClusterMode  bool     `yaml:"cluster_mode" json:"cluster_mode"`
	Password     string   `yaml:"password,omitempty" json:"password,omitempty"`
	DB           int      `yaml:"db" json:"db"`
	PoolSize     int      `yaml:"pool_size" json:"pool_size"`
	MinIdleConns int      `yaml:"min_idle_conns" json:"min_idle_conns"`
}

// DynamoDBConfig contains DynamoDB-specific settings. Endpoint is optional
// and supports LocalStack.
type DynamoDBConfig struct {
	Region          string `yaml:"region" json:"region"`
	TableName       string `yaml:"table_name" json:"table_name"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
}

// MySQLConfig contains MySQL-specific settings.
type MySQLConfig struct {
	Host         string        `yaml:"host" json:"host"`
	Port         int           `yaml:"port" json:"port"`
	Database     string        `yaml:"database" json:"database"`
	Username     string        `yaml:"username" json:"username"`
	Password     string        `yaml:"password,omitempty" json:"password,omitempty"`
	TableName    string        `yaml:"table_name" json:"table_name"`
	MaxOpenConns int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

// BadgerConfig contains Badger-specific settings.
type BadgerConfig struct {
	Path     string `yaml:"path" json:"path"`
	InMemory bool   `yaml:"in_memory" json:"in_memory"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	ListenAddr  string   `yaml:"listen_addr" json:"listen_addr"`
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`
}

// AuthConfig contains JWKS-based authentication settings for write routes.
type AuthConfig struct {
	Enabled         bool          `yaml:"enabled" json:"enabled"`
	JWKSURL         string        `yaml:"jwks_url" json:"jwks_url"`
	RefreshInterval time.Duration `yaml:"refresh_interval" json:"refresh_interval"`
}

// IconsConfig contains S3-compatible object storage settings for plan icons.
type IconsConfig struct {
	Enabled         bool   `yaml:"enabled" json:"enabled"`
	Bucket          string `yaml:"bucket" json:"bucket"`
	Region          string `yaml:"region" json:"region"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
}

// EventsConfig contains change-notification settings.
type EventsConfig struct {
	// Sink selects the event sink: "none" or "kafka".
	Sink string `yaml:"sink" json:"sink"`

	// PublishRate is the maximum number of events published per second.
	PublishRate int `yaml:"publish_rate" json:"publish_rate"`

	// BufferSize is the capacity of the in-process event queue.
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`

	Kafka KafkaConfig `yaml:"kafka" json:"kafka"`
}

// KafkaConfig contains Kafka producer settings for the event sink.
type KafkaConfig struct {
	Brokers         []string      `yaml:"brokers" json:"brokers"`
	Topic           string        `yaml:"topic" json:"topic"`
	BatchSize       int           `yaml:"batch_size" json:"batch_size"`
	BatchTimeout    time.Duration `yaml:"batch_timeout" json:"batch_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	RequiredAcks    int           `yaml:"required_acks" json:"required_acks"`
	MaxMessageBytes int           `yaml:"max_message_bytes" json:"max_message_bytes"`
}

// DefaultConfig returns a configuration suitable for local development: the
// in-memory backend, no auth, no icon storage, no event sink.
func DefaultConfig() *Config {
	return &Config{
		KVStore: KVStoreConfig{
			Type: "memory",
			Redis: RedisConfig{
				Endpoints:    []string{"localhost:6379"},
				DB:           0,
				PoolSize:     10,
				MinIdleConns: 5,
			},
			MySQL: MySQLConfig{
				Host:         "localhost",
				Port:         3306,
				TableName:    "kv_entries",
				MaxOpenConns: 25,
				MaxIdleConns: 5,
				ConnLifetime: 5 * time.Minute,
			},
			Badger: BadgerConfig{
				Path: "data/planstore",
			},
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Server: ServerConfig{
			ListenAddr:  ":8080",
			CORSOrigins: []string{"*"},
		},
		Auth: AuthConfig{
			Enabled:         false,
			RefreshInterval: 15 * time.Minute,
		},
		Events: EventsConfig{
			Sink:        "none",
			PublishRate: 10,
			BufferSize:  1024,
			Kafka: KafkaConfig{
				Brokers:         []string{"localhost:9092"},
				Topic:           "planstore-events",
				BatchSize:       100,
				BatchTimeout:    10 * time.Millisecond,
				WriteTimeout:    10 * time.Second,
				RequiredAcks:    -1,
				MaxMessageBytes: 1000000,
			},
		},
	}
}
