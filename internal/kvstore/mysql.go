package kvstore

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/festivalops/planstore/internal/core"
	"github.com/festivalops/planstore/internal/registry"
)

// tableNamePattern restricts table names to safe identifiers since the table
// name is interpolated into SQL statements.
var tableNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// MySQLKVStore implements the core.KVStore interface on top of a MySQL table.
//
// Expected schema:
//
//	CREATE TABLE kv_entries (
//	    k          VARCHAR(512) NOT NULL PRIMARY KEY,
//	    v          LONGBLOB     NOT NULL,
//	    expires_at BIGINT       NULL,
//	    created_at TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
//	    updated_at TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
//	);
type MySQLKVStore struct {
	db        *sql.DB
	tableName string
	closed    bool
}

// NewMySQLKVStore creates a new MySQL KV store implementation.
func NewMySQLKVStore(host string, port int, database, username, password, tableName string, maxOpenConns, maxIdleConns int, connMaxLifetime, connectionTimeout time.Duration) (*MySQLKVStore, error) {
	if !tableNamePattern.MatchString(tableName) {
		return nil, fmt.Errorf("invalid table name: %s", tableName)
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&timeout=%s",
		username, password, host, port, database, connectionTimeout)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &MySQLKVStore{
		db:        db,
		tableName: tableName,
	}, nil
}

func expiresAt(ttl time.Duration) sql.NullInt64 {
	if ttl <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: time.Now().Add(ttl).Unix(), Valid: true}
}

// Get retrieves a value by key from the store.
func (m *MySQLKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.closed {
		return nil, fmt.Errorf("KV store is closed")
	}

	query := fmt.Sprintf("SELECT v, expires_at FROM %s WHERE k = ?", m.tableName)
	var value []byte
	var expiry sql.NullInt64
	err := m.db.QueryRowContext(ctx, query, key).Scan(&value, &expiry)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	if err != nil {
		log.Printf("[MYSQL] ERROR: Failed to get key %s: %v", key, err)
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	if expiry.Valid && time.Now().Unix() > expiry.Int64 {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	return value, nil
}

// Set stores a key-value pair with an optional TTL.
func (m *MySQLKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.closed {
		return fmt.Errorf("KV store is closed")
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (k, v, expires_at) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE v = VALUES(v), expires_at = VALUES(expires_at)",
		m.tableName)
	if _, err := m.db.ExecContext(ctx, query, key, value, expiresAt(ttl)); err != nil {
		log.Printf("[MYSQL] ERROR: Failed to set key %s: %v", key, err)
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Delete removes a key from the store.
func (m *MySQLKVStore) Delete(ctx context.Context, key string) error {
	if m.closed {
		return fmt.Errorf("KV store is closed")
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE k = ?", m.tableName)
	if _, err := m.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Exists checks if a key exists in the store.
func (m *MySQLKVStore) Exists(ctx context.Context, key string) (bool, error) {
	if m.closed {
		return false, fmt.Errorf("KV store is closed")
	}

	query := fmt.Sprintf("SELECT expires_at FROM %s WHERE k = ?", m.tableName)
	var expiry sql.NullInt64
	err := m.db.QueryRowContext(ctx, query, key).Scan(&expiry)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check existence of key %s: %w", key, err)
	}
	if expiry.Valid && time.Now().Unix() > expiry.Int64 {
		return false, nil
	}
	return true, nil
}

// BatchSet stores multiple key-value pairs with a shared TTL in one transaction.
func (m *MySQLKVStore) BatchSet(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	if m.closed {
		return fmt.Errorf("KV store is closed")
	}

	if len(items) == 0 {
		return nil
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(
		"INSERT INTO %s (k, v, expires_at) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE v = VALUES(v), expires_at = VALUES(expires_at)",
		m.tableName)
	expiry := expiresAt(ttl)
	for key, value := range items {
		if _, err := tx.ExecContext(ctx, query, key, value, expiry); err != nil {
			return fmt.Errorf("failed to batch set key %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch set: %w", err)
	}
	return nil
}

// BulkGetValues retrieves the values for all requested keys with a single
// SELECT ... IN query. Keys with no stored row map to a nil entry.
func (m *MySQLKVStore) BulkGetValues(ctx context.Context, keys []string, opts core.BulkGetOptions) (core.BulkResult, error) {
	return m.bulkGet(ctx, keys, opts, false)
}

// BulkGetValuesWithMetadata behaves like BulkGetValues and additionally
// returns per-entry metadata (created_at, updated_at, expires_at).
func (m *MySQLKVStore) BulkGetValuesWithMetadata(ctx context.Context, keys []string, opts core.BulkGetOptions) (core.BulkResult, error) {
	return m.bulkGet(ctx, keys, opts, true)
}

func (m *MySQLKVStore) bulkGet(ctx context.Context, keys []string, opts core.BulkGetOptions, withMetadata bool) (core.BulkResult, error) {
	if m.closed {
		return nil, fmt.Errorf("KV store is closed")
	}

	log.Printf("[MYSQL] Bulk SELECT operation - %d keys", len(keys))

	result := make(core.BulkResult, len(keys))
	for _, key := range keys {
		// Absence marker; overwritten below for keys that come back.
		result[key] = nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	query := fmt.Sprintf(
		"SELECT k, v, expires_at, created_at, updated_at FROM %s WHERE k IN (%s)",
		m.tableName, placeholders)

	args := make([]interface{}, len(keys))
	for i, key := range keys {
		args[i] = key
	}

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk get keys: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	for rows.Next() {
		var key string
		var raw []byte
		var expiry sql.NullInt64
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&key, &raw, &expiry, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if expiry.Valid && now.Unix() > expiry.Int64 {
			continue
		}

		value, err := core.DecodeValue(opts.Format, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode key %s: %w", key, err)
		}

		entry := &core.BulkEntry{Value: value}
		if withMetadata {
			metadata := map[string]any{
				"created_at": createdAt.UTC().Format(time.RFC3339),
				"updated_at": updatedAt.UTC().Format(time.RFC3339),
			}
			if expiry.Valid {
				metadata["expires_at"] = time.Unix(expiry.Int64, 0).UTC().Format(time.RFC3339)
			}
			entry.Metadata = metadata
		}
		result[key] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}

// ListKeys returns all live keys starting with prefix.
func (m *MySQLKVStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	if m.closed {
		return nil, fmt.Errorf("KV store is closed")
	}

	query := fmt.Sprintf(
		"SELECT k FROM %s WHERE k LIKE CONCAT(?, '%%') AND (expires_at IS NULL OR expires_at > ?) ORDER BY k",
		m.tableName)
	rows, err := m.db.QueryContext(ctx, query, prefix, time.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to list keys with prefix %s: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Close closes the database connection.
func (m *MySQLKVStore) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}

// MySQLKVStoreFactory implements the KVStoreFactory interface for MySQL.
type MySQLKVStoreFactory struct{}

// Type returns the type identifier for this factory.
func (f *MySQLKVStoreFactory) Type() string {
	return "mysql"
}

// Validate validates the MySQL-specific configuration.
func (f *MySQLKVStoreFactory) Validate(config KVStoreConfig) error {
	if config.Type != "mysql" {
		return fmt.Errorf("invalid type for MySQL factory: %s", config.Type)
	}
	if config.Host == "" {
		return fmt.Errorf("host is required for MySQL")
	}
	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got: %d", config.Port)
	}
	if config.Database == "" {
		return fmt.Errorf("database is required for MySQL")
	}
	if config.Username == "" {
		return fmt.Errorf("username is required for MySQL")
	}
	if !tableNamePattern.MatchString(config.TableName) {
		return fmt.Errorf("invalid table name: %s", config.TableName)
	}
	return nil
}

// Create creates a new MySQL KV store instance based on the provided configuration.
func (f *MySQLKVStoreFactory) Create(config KVStoreConfig) (core.KVStore, error) {
	maxOpenConns := config.PoolSize
	if maxOpenConns <= 0 {
		maxOpenConns = 10
	}
	maxIdleConns := config.MinIdleConns
	if maxIdleConns <= 0 {
		maxIdleConns = 2
	}

	mysqlStore, err := NewMySQLKVStore(
		config.Host,
		config.Port,
		config.Database,
		config.Username,
		config.Password,
		config.TableName,
		maxOpenConns,
		maxIdleConns,
		time.Hour,
		config.DialTimeout,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create MySQL KV store: %w", err)
	}
	return mysqlStore, nil
}

// MySQLConfigValidator implements the ConfigValidator interface for MySQL.
type MySQLConfigValidator struct{}

// Type returns the type identifier for this validator.
func (v *MySQLConfigValidator) Type() string {
	return "mysql"
}

// Validate validates the MySQL-specific configuration in the internal config.
func (v *MySQLConfigValidator) Validate(config *registry.InternalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	kvConfig := config.KVStore
	if kvConfig.Type != "mysql" {
		return fmt.Errorf("invalid type for MySQL validator: %s", kvConfig.Type)
	}

	mysqlConfig := kvConfig.MySQLConfig
	if mysqlConfig.Host == "" {
		return fmt.Errorf("host is required for MySQL")
	}
	if mysqlConfig.Port <= 0 || mysqlConfig.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got: %d", mysqlConfig.Port)
	}
	if mysqlConfig.Database == "" {
		return fmt.Errorf("database is required for MySQL")
	}
	if mysqlConfig.Username == "" {
		return fmt.Errorf("username is required for MySQL")
	}
	if !tableNamePattern.MatchString(mysqlConfig.TableName) {
		return fmt.Errorf("invalid table name: %s", mysqlConfig.TableName)
	}
	if mysqlConfig.MaxOpenConns < 0 {
		return fmt.Errorf("max_open_conns must be non-negative, got: %d", mysqlConfig.MaxOpenConns)
	}
	if mysqlConfig.MaxIdleConns < 0 {
		return fmt.Errorf("max_idle_conns must be non-negative, got: %d", mysqlConfig.MaxIdleConns)
	}
	if kvConfig.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be greater than 0, got: %v", kvConfig.DialTimeout)
	}
	return nil
}

func init() {
	RegisterFactory(&MySQLKVStoreFactory{})
	registry.RegisterValidator(&MySQLConfigValidator{})
}
