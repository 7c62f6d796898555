// Package client wires the configured backend into the plan service and
// exposes the operations the public package re-exports.
package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/festivalops/planstore/internal/core"
	"github.com/festivalops/planstore/internal/kvstore"
	"github.com/festivalops/planstore/internal/plans"
	"github.com/festivalops/planstore/internal/read"
	"github.com/festivalops/planstore/internal/registry"
)

// ConfigProvider supplies configuration as YAML without importing the public
// package.
type ConfigProvider interface {
	GetYAML() ([]byte, error)
}

// ClientImpl owns the KV store connection and the plan service built on it.
type ClientImpl struct {
	mu        sync.RWMutex
	configMgr *registry.ConfigManager
	store     core.KVStore
	plans     *plans.Service
	closed    bool
}

// NewClientImpl creates a client from the given configuration.
func NewClientImpl(configProvider ConfigProvider) (*ClientImpl, error) {
	if configProvider == nil {
		return nil, fmt.Errorf("config provider cannot be nil")
	}

	configMgr := registry.NewConfigManager()
	yamlData, err := configProvider.GetYAML()
	if err != nil {
		return nil, fmt.Errorf("failed to get config YAML: %w", err)
	}
	if err := configMgr.LoadFromYAML(yamlData); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	store, err := CreateStore(configMgr.GetConfig())
	if err != nil {
		return nil, err
	}

	return &ClientImpl{
		configMgr: configMgr,
		store:     store,
		plans:     plans.NewService(store),
	}, nil
}

// CreateStore builds a KV store from the resolved configuration through the
// factory registry.
func CreateStore(config *registry.InternalConfig) (core.KVStore, error) {
	kvConfig := kvstore.KVStoreConfig{
		Type:         config.KVStore.Type,
		MaxRetries:   config.KVStore.MaxRetries,
		DialTimeout:  config.KVStore.DialTimeout,
		ReadTimeout:  config.KVStore.ReadTimeout,
		WriteTimeout: config.KVStore.WriteTimeout,

		Endpoints:    config.KVStore.RedisConfig.Endpoints,
		ClusterMode:  config.KVStore.RedisConfig.ClusterMode,
		DB:           config.KVStore.RedisConfig.DB,
		PoolSize:     config.KVStore.RedisConfig.PoolSize,
		MinIdleConns: config.KVStore.RedisConfig.MinIdleConns,

		Region:   config.KVStore.DynamoDBConfig.Region,
		Endpoint: config.KVStore.DynamoDBConfig.Endpoint,

		Host:     config.KVStore.MySQLConfig.Host,
		Port:     config.KVStore.MySQLConfig.Port,
		Database: config.KVStore.MySQLConfig.Database,
		Username: config.KVStore.MySQLConfig.Username,

		Path:     config.KVStore.BadgerConfig.Path,
		InMemory: config.KVStore.BadgerConfig.InMemory,
	}

	// Fields shared between backends resolve per the selected type.
	switch config.KVStore.Type {
	case "redis":
		kvConfig.Password = config.KVStore.RedisConfig.Password
	case "dynamodb":
		kvConfig.TableName = config.KVStore.DynamoDBConfig.TableName
		kvConfig.AccessKeyID = config.KVStore.DynamoDBConfig.AccessKeyID
		kvConfig.SecretAccessKey = config.KVStore.DynamoDBConfig.SecretAccessKey
	case "mysql":
		kvConfig.Password = config.KVStore.MySQLConfig.Password
		kvConfig.TableName = config.KVStore.MySQLConfig.TableName
		kvConfig.PoolSize = config.KVStore.MySQLConfig.MaxOpenConns
		kvConfig.MinIdleConns = config.KVStore.MySQLConfig.MaxIdleConns
	}

	store, err := kvstore.Create(kvConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create KV store: %w", err)
	}
	return store, nil
}

// Store returns the underlying KV store.
func (c *ClientImpl) Store() core.KVStore {
	return c.store
}

// Plans returns the plan service.
func (c *ClientImpl) Plans() *plans.Service {
	return c.plans
}

// Config returns the resolved configuration.
func (c *ClientImpl) Config() *registry.InternalConfig {
	return c.configMgr.GetConfig()
}

// BulkGet fetches the values for keys in one call.
func (c *ClientImpl) BulkGet(ctx context.Context, keys []string, format core.DecodeFormat) (core.BulkResult, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return read.BulkFetch(ctx, c.store, keys, read.WithFormat(format))
}

// BulkGetWithMetadata fetches values and store metadata for keys in one call.
func (c *ClientImpl) BulkGetWithMetadata(ctx context.Context, keys []string, format core.DecodeFormat) (core.BulkResult, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return read.BulkFetch(ctx, c.store, keys, read.WithFormat(format), read.WithMetadata())
}

func (c *ClientImpl) checkOpen() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return fmt.Errorf("client is closed")
	}
	return nil
}

// Close releases the store connection.
func (c *ClientImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if err := c.store.Close(); err != nil {
		return fmt.Errorf("failed to close KV store: %w", err)
	}
	return nil
}
