package registry

import "time"

// InternalConfig is the fully resolved service configuration used by internal
// packages. It mirrors the public pkg/planstore.Config shape so that YAML
// produced from the public config parses directly into it.
type InternalConfig struct {
	KVStore InternalKVStoreConfig `yaml:"kvstore" json:"kvstore"`
	Server  InternalServerConfig  `yaml:"server" json:"server"`
	Auth    InternalAuthConfig    `yaml:"auth" json:"auth"`
	Icons   InternalIconsConfig   `yaml:"icons" json:"icons"`
	Events  InternalEventsConfig  `yaml:"events" json:"events"`
}

// InternalKVStoreConfig selects and configures the key-value store backend.
type InternalKVStoreConfig struct {
	// Type selects the backend: "memory", "redis", "dynamodb", "mysql" or "badger".
	Type string `yaml:"type" json:"type"`

	RedisConfig    InternalRedisConfig    `yaml:"redis" json:"redis"`
	DynamoDBConfig InternalDynamoDBConfig `yaml:"dynamodb" json:"dynamodb"`
	MySQLConfig    InternalMySQLConfig    `yaml:"mysql" json:"mysql"`
	BadgerConfig   InternalBadgerConfig   `yaml:"badger" json:"badger"`

	MaxRetries   int           `yaml:"max_retries" json:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// InternalRedisConfig contains Redis-specific settings.
type InternalRedisConfig struct {
	Endpoints    []string `yaml:"endpoints" json:"endpoints"`
	ClusterMode  bool     `yaml:"cluster_mode" json:"cluster_mode"`
	Password     string   `yaml:"password" json:"password"`
	DB           int      `yaml:"db" json:"db"`
	PoolSize     int      `yaml:"pool_size" json:"pool_size"`
	MinIdleConns int      `yaml:"min_idle_conns" json:"min_idle_conns"`
}

// InternalDynamoDBConfig contains DynamoDB-specific settings.
type InternalDynamoDBConfig struct {
	Region          string `yaml:"region" json:"region"`
	TableName       string `yaml:"table_name" json:"table_name"`
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key"`
}

// InternalMySQLConfig contains MySQL-specific settings.
type InternalMySQLConfig struct {
	Host         string        `yaml:"host" json:"host"`
	Port         int           `yaml:"port" json:"port"`
	Database     string        `yaml:"database" json:"database"`
	Username     string        `yaml:"username" json:"username"`
	Password     string        `yaml:"password" json:"password"`
	TableName    string        `yaml:"table_name" json:"table_name"`
	MaxOpenConns int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

// InternalBadgerConfig contains Badger-specific settings.
type InternalBadgerConfig struct {
	Path     string `yaml:"path" json:"path"`
	InMemory bool   `yaml:"in_memory" json:"in_memory"`
}

// InternalServerConfig contains HTTP server settings.
type InternalServerConfig struct {
	ListenAddr  string   `yaml:"listen_addr" json:"listen_addr"`
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`
}

// InternalAuthConfig contains JWKS-based authentication settings for write routes.
type InternalAuthConfig struct {
	Enabled         bool          `yaml:"enabled" json:"enabled"`
	JWKSURL         string        `yaml:"jwks_url" json:"jwks_url"`
	RefreshInterval time.Duration `yaml:"refresh_interval" json:"refresh_interval"`
}

// InternalIconsConfig contains S3-compatible object storage settings for plan icons.
type InternalIconsConfig struct {
	Enabled         bool   `yaml:"enabled" json:"enabled"`
	Bucket          string `yaml:"bucket" json:"bucket"`
	Region          string `yaml:"region" json:"region"`
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key"`
}

// InternalEventsConfig contains change-notification settings.
type InternalEventsConfig struct {
	// Sink selects the event sink: "none" or "kafka".
	Sink        string              `yaml:"sink" json:"sink"`
	PublishRate int                 `yaml:"publish_rate" json:"publish_rate"`
	BufferSize  int                 `yaml:"buffer_size" json:"buffer_size"`
	KafkaConfig InternalKafkaConfig `yaml:"kafka" json:"kafka"`
}

// InternalKafkaConfig contains Kafka producer settings for the event sink.
type InternalKafkaConfig struct {
	Brokers         []string      `yaml:"brokers" json:"brokers"`
	Topic           string        `yaml:"topic" json:"topic"`
	BatchSize       int           `yaml:"batch_size" json:"batch_size"`
	BatchTimeout    time.Duration `yaml:"batch_timeout" json:"batch_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	RequiredAcks    int           `yaml:"required_acks" json:"required_acks"`
	MaxMessageBytes int           `yaml:"max_message_bytes" json:"max_message_bytes"`
}
