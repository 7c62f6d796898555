package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigValidator is the Strategy interface for validating configuration.
// Each KV store backend provides its own validator to validate
// backend-specific configuration.
type ConfigValidator interface {
	// Validate validates the internal configuration for this KV store type.
	Validate(config *InternalConfig) error

	// Type returns the type identifier for this validator (e.g., "redis", "dynamodb").
	Type() string
}

var (
	// validatorRegistry stores all registered config validators.
	validatorRegistry = make(map[string]ConfigValidator)

	// validatorRegistryMutex protects the validator registry from concurrent access.
	validatorRegistryMutex sync.RWMutex
)

// RegisterValidator registers a config validator.
// This is called automatically by each backend's init() function.
func RegisterValidator(validator ConfigValidator) {
	if validator == nil {
		panic("validator cannot be nil")
	}
	if validator.Type() == "" {
		panic("validator type cannot be empty")
	}

	validatorRegistryMutex.Lock()
	defer validatorRegistryMutex.Unlock()

	if _, exists := validatorRegistry[validator.Type()]; exists {
		panic(fmt.Sprintf("validator for type %q is already registered", validator.Type()))
	}

	validatorRegistry[validator.Type()] = validator
}

// GetValidator retrieves a validator by type.
func GetValidator(validatorType string) (ConfigValidator, bool) {
	validatorRegistryMutex.RLock()
	defer validatorRegistryMutex.RUnlock()

	validator, exists := validatorRegistry[validatorType]
	return validator, exists
}

// ConfigManager handles loading and managing configuration from various sources.
type ConfigManager struct {
	config *InternalConfig
}

// NewConfigManager creates a new configuration manager with default configuration.
func NewConfigManager() *ConfigManager {
	return &ConfigManager{
		config: defaultInternalConfig(),
	}
}

// defaultInternalConfig returns a configuration with sensible defaults.
func defaultInternalConfig() *InternalConfig {
	return &InternalConfig{
		KVStore: InternalKVStoreConfig{
			Type: "memory",
			RedisConfig: InternalRedisConfig{
				Endpoints:    []string{"localhost:6379"},
				DB:           0,
				PoolSize:     10,
				MinIdleConns: 5,
			},
			MySQLConfig: InternalMySQLConfig{
				Host:         "localhost",
				Port:         3306,
				TableName:    "kv_entries",
				MaxOpenConns: 25,
				MaxIdleConns: 5,
				ConnLifetime: 5 * time.Minute,
			},
			BadgerConfig: InternalBadgerConfig{
				Path: "data/planstore",
			},
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Server: InternalServerConfig{
			ListenAddr:  ":8080",
			CORSOrigins: []string{"*"},
		},
		Auth: InternalAuthConfig{
			Enabled:         false,
			RefreshInterval: 15 * time.Minute,
		},
		Events: InternalEventsConfig{
			Sink:        "none",
			PublishRate: 10,
			BufferSize:  1024,
			KafkaConfig: InternalKafkaConfig{
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

// LoadFromFile loads configuration from a YAML or JSON file.
// The file format is determined by the file extension.
func (cm *ConfigManager) LoadFromFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".yaml", ".yml":
		return cm.LoadFromYAML(data)
	case ".json":
		return cm.LoadFromJSON(data)
	default:
		return fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}
}

// LoadFromYAML loads configuration from YAML data.
func (cm *ConfigManager) LoadFromYAML(data []byte) error {
	config := defaultInternalConfig()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := cm.validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cm.config = config
	return nil
}

// LoadFromJSON loads configuration from JSON data.
func (cm *ConfigManager) LoadFromJSON(data []byte) error {
	config := defaultInternalConfig()
	if len(data) > 0 {
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	}

	if err := cm.validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cm.config = config
	return nil
}

// LoadFromEnv loads configuration from environment variables on top of the
// defaults. Variables follow the pattern PLANSTORE_<SECTION>_<KEY>, e.g.:
//   - PLANSTORE_KVSTORE_TYPE=redis
//   - PLANSTORE_KVSTORE_ENDPOINTS=localhost:6379,localhost:6380
//   - PLANSTORE_SERVER_LISTEN_ADDR=:9090
//   - PLANSTORE_AUTH_JWKS_URL=https://auth.example.com/.well-known/jwks.json
func (cm *ConfigManager) LoadFromEnv() error {
	config := defaultInternalConfig()

	if val := os.Getenv("PLANSTORE_KVSTORE_TYPE"); val != "" {
		config.KVStore.Type = val
	}
	if val := os.Getenv("PLANSTORE_KVSTORE_ENDPOINTS"); val != "" {
		config.KVStore.RedisConfig.Endpoints = strings.Split(val, ",")
	}
	if val := os.Getenv("PLANSTORE_KVSTORE_PASSWORD"); val != "" {
		config.KVStore.RedisConfig.Password = val
	}
	if val := os.Getenv("PLANSTORE_KVSTORE_DB"); val != "" {
		var db int
		if _, err := fmt.Sscanf(val, "%d", &db); err == nil {
			config.KVStore.RedisConfig.DB = db
		}
	}
	if val := os.Getenv("PLANSTORE_KVSTORE_REGION"); val != "" {
		config.KVStore.DynamoDBConfig.Region = val
	}
	if val := os.Getenv("PLANSTORE_KVSTORE_TABLE_NAME"); val != "" {
		config.KVStore.DynamoDBConfig.TableName = val
		config.KVStore.MySQLConfig.TableName = val
	}
	if val := os.Getenv("PLANSTORE_KVSTORE_ENDPOINT"); val != "" {
		config.KVStore.DynamoDBConfig.Endpoint = val
	}
	if val := os.Getenv("PLANSTORE_KVSTORE_BADGER_PATH"); val != "" {
		config.KVStore.BadgerConfig.Path = val
	}
	if val := os.Getenv("PLANSTORE_KVSTORE_MYSQL_HOST"); val != "" {
		config.KVStore.MySQLConfig.Host = val
	}
	if val := os.Getenv("PLANSTORE_KVSTORE_MYSQL_PORT"); val != "" {
		var port int
		if _, err := fmt.Sscanf(val, "%d", &port); err == nil {
			config.KVStore.MySQLConfig.Port = port
		}
	}
	if val := os.Getenv("PLANSTORE_KVSTORE_MYSQL_DATABASE"); val != "" {
		config.KVStore.MySQLConfig.Database = val
	}
	if val := os.Getenv("PLANSTORE_KVSTORE_MYSQL_USERNAME"); val != "" {
		config.KVStore.MySQLConfig.Username = val
	}
	if val := os.Getenv("PLANSTORE_KVSTORE_MYSQL_PASSWORD"); val != "" {
		config.KVStore.MySQLConfig.Password = val
	}

	if val := os.Getenv("PLANSTORE_SERVER_LISTEN_ADDR"); val != "" {
		config.Server.ListenAddr = val
	}
	if val := os.Getenv("PLANSTORE_SERVER_CORS_ORIGINS"); val != "" {
		config.Server.CORSOrigins = strings.Split(val, ",")
	}

	if val := os.Getenv("PLANSTORE_AUTH_ENABLED"); val != "" {
		config.Auth.Enabled = (val == "true" || val == "1")
	}
	if val := os.Getenv("PLANSTORE_AUTH_JWKS_URL"); val != "" {
		config.Auth.JWKSURL = val
	}

	if val := os.Getenv("PLANSTORE_ICONS_ENABLED"); val != "" {
		config.Icons.Enabled = (val == "true" || val == "1")
	}
	if val := os.Getenv("PLANSTORE_ICONS_BUCKET"); val != "" {
		config.Icons.Bucket = val
	}
	if val := os.Getenv("PLANSTORE_ICONS_REGION"); val != "" {
		config.Icons.Region = val
	}
	if val := os.Getenv("PLANSTORE_ICONS_ENDPOINT"); val != "" {
		config.Icons.Endpoint = val
	}

	if val := os.Getenv("PLANSTORE_EVENTS_SINK"); val != "" {
		config.Events.Sink = val
	}
	if val := os.Getenv("PLANSTORE_EVENTS_PUBLISH_RATE"); val != "" {
		var rate int
		if _, err := fmt.Sscanf(val, "%d", &rate); err == nil {
			config.Events.PublishRate = rate
		}
	}
	if val := os.Getenv("PLANSTORE_EVENTS_KAFKA_BROKERS"); val != "" {
		config.Events.KafkaConfig.Brokers = strings.Split(val, ",")
	}
	if val := os.Getenv("PLANSTORE_EVENTS_KAFKA_TOPIC"); val != "" {
		config.Events.KafkaConfig.Topic = val
	}

	if err := cm.validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cm.config = config
	return nil
}

// GetConfig returns the current internal configuration.
func (cm *ConfigManager) GetConfig() *InternalConfig {
	return cm.config
}

// validateConfig validates the configuration and returns an error if invalid.
// KV store validation is delegated to the backend's registered validator.
func (cm *ConfigManager) validateConfig(config *InternalConfig) error {
	if config.KVStore.Type == "" {
		return fmt.Errorf("kvstore.type is required")
	}

	validator, exists := GetValidator(config.KVStore.Type)
	if !exists {
		return fmt.Errorf("unsupported KV store type: %s", config.KVStore.Type)
	}
	if err := validator.Validate(config); err != nil {
		return fmt.Errorf("kvstore validation failed: %w", err)
	}

	if config.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}

	if config.Auth.Enabled {
		if config.Auth.JWKSURL == "" {
			return fmt.Errorf("auth.jwks_url is required when auth is enabled")
		}
		if config.Auth.RefreshInterval <= 0 {
			return fmt.Errorf("auth.refresh_interval must be greater than 0")
		}
	}

	if config.Icons.Enabled {
		if config.Icons.Bucket == "" {
			return fmt.Errorf("icons.bucket is required when icons are enabled")
		}
		if config.Icons.Region == "" && config.Icons.Endpoint == "" {
			return fmt.Errorf("icons.region or icons.endpoint is required when icons are enabled")
		}
	}

	switch config.Events.Sink {
	case "", "none":
	case "kafka":
		if len(config.Events.KafkaConfig.Brokers) == 0 {
			return fmt.Errorf("events.kafka.brokers is required when sink is 'kafka'")
		}
		if config.Events.KafkaConfig.Topic == "" {
			return fmt.Errorf("events.kafka.topic is required when sink is 'kafka'")
		}
	default:
		return fmt.Errorf("events.sink must be 'none' or 'kafka'")
	}
	if config.Events.PublishRate <= 0 {
		return fmt.Errorf("events.publish_rate must be greater than 0")
	}
	if config.Events.BufferSize <= 0 {
		return fmt.Errorf("events.buffer_size must be greater than 0")
	}

	return nil
}
