package kvstore

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/festivalops/planstore/internal/core"
	"github.com/festivalops/planstore/internal/registry"
)

// DynamoDBKVStore implements the core.KVStore interface using AWS DynamoDB.
type DynamoDBKVStore struct {
	client    *dynamodb.Client
	tableName string
	closed    bool
}

// NewDynamoDBKVStore creates a new DynamoDB KV store implementation.
func NewDynamoDBKVStore(region, tableName, endpoint, accessKeyID, secretAccessKey string) (*DynamoDBKVStore, error) {
	if region == "" {
		return nil, fmt.Errorf("region is required")
	}
	if tableName == "" {
		return nil, fmt.Errorf("table name is required")
	}

	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if accessKeyID != "" && secretAccessKey != "" {
		cfg.Credentials = credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")
	}

	clientOptions := []func(*dynamodb.Options){}
	if endpoint != "" {
		// Custom endpoint (e.g., for LocalStack)
		clientOptions = append(clientOptions, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}

	client := dynamodb.NewFromConfig(cfg, clientOptions...)

	// Test connection by describing the table
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DynamoDB table %s: %w", tableName, err)
	}

	return &DynamoDBKVStore{
		client:    client,
		tableName: tableName,
	}, nil
}

// Get retrieves a value by key from the store.
func (d *DynamoDBKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if d.closed {
		return nil, fmt.Errorf("KV store is closed")
	}

	input := &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"key": &types.AttributeValueMemberS{Value: key},
		},
	}

	result, err := d.client.GetItem(ctx, input)
	if err != nil {
		log.Printf("[DYNAMODB] ERROR: Failed to get key %s: %v", key, err)
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	value, live := itemValue(result.Item, time.Now())
	if !live {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	return value, nil
}

// Set stores a key-value pair with an optional TTL.
func (d *DynamoDBKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if d.closed {
		return fmt.Errorf("KV store is closed")
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      buildItem(key, value, ttl),
	}

	if _, err := d.client.PutItem(ctx, input); err != nil {
		log.Printf("[DYNAMODB] ERROR: Failed to set key %s: %v", key, err)
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

func buildItem(key string, value []byte, ttl time.Duration) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"key":        &types.AttributeValueMemberS{Value: key},
		"value":      &types.AttributeValueMemberB{Value: value},
		"created_at": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
	}
	if ttl > 0 {
		ttlTimestamp := time.Now().Add(ttl).Unix()
		item["ttl"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ttlTimestamp)}
	}
	return item
}

// itemValue extracts the binary value from an item, reporting false when the
// item is missing, malformed, or past its TTL.
func itemValue(item map[string]types.AttributeValue, now time.Time) ([]byte, bool) {
	if item == nil {
		return nil, false
	}

	if ttl, ok := itemTTL(item); ok && now.Unix() > ttl {
		return nil, false
	}

	valueAttr, ok := item["value"]
	if !ok {
		return nil, false
	}
	valueMember, ok := valueAttr.(*types.AttributeValueMemberB)
	if !ok {
		return nil, false
	}
	return valueMember.Value, true
}

func itemTTL(item map[string]types.AttributeValue) (int64, bool) {
	ttlAttr, ok := item["ttl"]
	if !ok {
		return 0, false
	}
	ttlMember, ok := ttlAttr.(*types.AttributeValueMemberN)
	if !ok {
		return 0, false
	}
	var ttl int64
	if _, err := fmt.Sscanf(ttlMember.Value, "%d", &ttl); err != nil {
		return 0, false
	}
	return ttl, true
}

func itemKey(item map[string]types.AttributeValue) (string, bool) {
	keyAttr, ok := item["key"]
	if !ok {
		return "", false
	}
	keyMember, ok := keyAttr.(*types.AttributeValueMemberS)
	if !ok {
		return "", false
	}
	return keyMember.Value, true
}

// Delete removes a key from the store.
func (d *DynamoDBKVStore) Delete(ctx context.Context, key string) error {
	if d.closed {
		return fmt.Errorf("KV store is closed")
	}

	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"key": &types.AttributeValueMemberS{Value: key},
		},
	}

	if _, err := d.client.DeleteItem(ctx, input); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Exists checks if a key exists in the store.
func (d *DynamoDBKVStore) Exists(ctx context.Context, key string) (bool, error) {
	if d.closed {
		return false, fmt.Errorf("KV store is closed")
	}

	input := &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"key": &types.AttributeValueMemberS{Value: key},
		},
	}

	result, err := d.client.GetItem(ctx, input)
	if err != nil {
		return false, fmt.Errorf("failed to check existence of key %s: %w", key, err)
	}

	_, live := itemValue(result.Item, time.Now())
	return live, nil
}

// BatchSet stores multiple key-value pairs with a shared TTL.
// Note: DynamoDB doesn't support true atomic batch writes across items,
// but we use BatchWriteItem for efficiency.
func (d *DynamoDBKVStore) BatchSet(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	if d.closed {
		return fmt.Errorf("KV store is closed")
	}

	if len(items) == 0 {
		return nil
	}

	// DynamoDB BatchWriteItem can handle up to 25 items per request
	const maxBatchSize = 25
	allItems := make([]map[string]types.AttributeValue, 0, len(items))
	for key, value := range items {
		allItems = append(allItems, buildItem(key, value, ttl))
	}

	for i := 0; i < len(allItems); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(allItems) {
			end = len(allItems)
		}

		batch := allItems[i:end]
		writeRequests := make([]types.WriteRequest, 0, len(batch))
		for _, item := range batch {
			writeRequests = append(writeRequests, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: item},
			})
		}

		input := &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				d.tableName: writeRequests,
			},
		}
		if _, err := d.client.BatchWriteItem(ctx, input); err != nil {
			return fmt.Errorf("failed to batch set keys: %w", err)
		}
	}

	return nil
}

// BulkGetValues retrieves the values for all requested keys using
// BatchGetItem. Keys with no stored item map to a nil entry.
func (d *DynamoDBKVStore) BulkGetValues(ctx context.Context, keys []string, opts core.BulkGetOptions) (core.BulkResult, error) {
	return d.bulkGet(ctx, keys, opts, false)
}

// BulkGetValuesWithMetadata behaves like BulkGetValues and additionally
// returns per-entry metadata (created_at, expires_at).
func (d *DynamoDBKVStore) BulkGetValuesWithMetadata(ctx context.Context, keys []string, opts core.BulkGetOptions) (core.BulkResult, error) {
	return d.bulkGet(ctx, keys, opts, true)
}

func (d *DynamoDBKVStore) bulkGet(ctx context.Context, keys []string, opts core.BulkGetOptions, withMetadata bool) (core.BulkResult, error) {
	if d.closed {
		return nil, fmt.Errorf("KV store is closed")
	}

	log.Printf("[DYNAMODB] BatchGetItem operation - %d keys", len(keys))

	now := time.Now()
	result := make(core.BulkResult, len(keys))
	for _, key := range keys {
		// Absence marker; overwritten below for keys that come back.
		result[key] = nil
	}

	// BatchGetItem can handle up to 100 keys per request
	const maxBatchSize = 100
	for i := 0; i < len(keys); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(keys) {
			end = len(keys)
		}

		requestKeys := make([]map[string]types.AttributeValue, 0, end-i)
		for _, key := range keys[i:end] {
			requestKeys = append(requestKeys, map[string]types.AttributeValue{
				"key": &types.AttributeValueMemberS{Value: key},
			})
		}

		request := map[string]types.KeysAndAttributes{
			d.tableName: {Keys: requestKeys},
		}

		// Drain UnprocessedKeys until DynamoDB has answered for every key.
		for len(request[d.tableName].Keys) > 0 {
			output, err := d.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
				RequestItems: request,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to batch get keys: %w", err)
			}

			for _, item := range output.Responses[d.tableName] {
				key, ok := itemKey(item)
				if !ok {
					continue
				}
				raw, live := itemValue(item, now)
				if !live {
					continue
				}

				value, err := core.DecodeValue(opts.Format, raw)
				if err != nil {
					return nil, fmt.Errorf("failed to decode key %s: %w", key, err)
				}

				entry := &core.BulkEntry{Value: value}
				if withMetadata {
					metadata := map[string]any{}
					if createdAttr, ok := item["created_at"]; ok {
						if createdMember, ok := createdAttr.(*types.AttributeValueMemberS); ok {
							metadata["created_at"] = createdMember.Value
						}
					}
					if ttl, ok := itemTTL(item); ok {
						metadata["expires_at"] = time.Unix(ttl, 0).UTC().Format(time.RFC3339)
					}
					entry.Metadata = metadata
				}
				result[key] = entry
			}

			unprocessed, ok := output.UnprocessedKeys[d.tableName]
			if !ok || len(unprocessed.Keys) == 0 {
				break
			}
			request = map[string]types.KeysAndAttributes{d.tableName: unprocessed}
		}
	}

	return result, nil
}

// ListKeys returns all live keys starting with prefix by scanning the table.
func (d *DynamoDBKVStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	if d.closed {
		return nil, fmt.Errorf("KV store is closed")
	}

	input := &dynamodb.ScanInput{
		TableName:            aws.String(d.tableName),
		ProjectionExpression: aws.String("#k, #t"),
		ExpressionAttributeNames: map[string]string{
			"#k": "key",
			"#t": "ttl",
		},
	}
	if prefix != "" {
		input.FilterExpression = aws.String("begins_with(#k, :prefix)")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":prefix": &types.AttributeValueMemberS{Value: prefix},
		}
	}

	now := time.Now()
	var keys []string
	for {
		output, err := d.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to list keys with prefix %s: %w", prefix, err)
		}

		for _, item := range output.Items {
			if ttl, ok := itemTTL(item); ok && now.Unix() > ttl {
				continue
			}
			if key, ok := itemKey(item); ok {
				keys = append(keys, key)
			}
		}

		if output.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = output.LastEvaluatedKey
	}

	return keys, nil
}

// Close closes the connection to the KV store.
func (d *DynamoDBKVStore) Close() error {
	if d.closed {
		return nil
	}
	// DynamoDB client doesn't need explicit closing, but we mark it as closed
	d.closed = true
	return nil
}

// DynamoDBKVStoreFactory implements the KVStoreFactory interface for DynamoDB.
type DynamoDBKVStoreFactory struct{}

// Type returns the type identifier for this factory.
func (f *DynamoDBKVStoreFactory) Type() string {
	return "dynamodb"
}

// Validate validates the DynamoDB-specific configuration.
func (f *DynamoDBKVStoreFactory) Validate(config KVStoreConfig) error {
	if config.Type != "dynamodb" {
		return fmt.Errorf("invalid type for DynamoDB factory: %s", config.Type)
	}
	if config.Region == "" {
		return fmt.Errorf("region is required for DynamoDB")
	}
	if config.TableName == "" {
		return fmt.Errorf("table_name is required for DynamoDB")
	}
	return nil
}

// Create creates a new DynamoDB KV store instance based on the provided configuration.
func (f *DynamoDBKVStoreFactory) Create(config KVStoreConfig) (core.KVStore, error) {
	dynamoStore, err := NewDynamoDBKVStore(
		config.Region,
		config.TableName,
		config.Endpoint,
		config.AccessKeyID,
		config.SecretAccessKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create DynamoDB KV store: %w", err)
	}
	return dynamoStore, nil
}

// DynamoDBConfigValidator implements the ConfigValidator interface for DynamoDB.
type DynamoDBConfigValidator struct{}

// Type returns the type identifier for this validator.
func (v *DynamoDBConfigValidator) Type() string {
	return "dynamodb"
}

// Validate validates the DynamoDB-specific configuration in the internal config.
func (v *DynamoDBConfigValidator) Validate(config *registry.InternalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	kvConfig := config.KVStore
	if kvConfig.Type != "dynamodb" {
		return fmt.Errorf("invalid type for DynamoDB validator: %s", kvConfig.Type)
	}

	dynamoConfig := kvConfig.DynamoDBConfig
	if dynamoConfig.Region == "" {
		return fmt.Errorf("region is required for DynamoDB")
	}
	if dynamoConfig.TableName == "" {
		return fmt.Errorf("table_name is required for DynamoDB")
	}

	if kvConfig.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be greater than 0, got: %v", kvConfig.DialTimeout)
	}
	if kvConfig.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be greater than 0, got: %v", kvConfig.ReadTimeout)
	}
	if kvConfig.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be greater than 0, got: %v", kvConfig.WriteTimeout)
	}
	if kvConfig.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative, got: %d", kvConfig.MaxRetries)
	}

	return nil
}

func init() {
	RegisterFactory(&DynamoDBKVStoreFactory{})
	registry.RegisterValidator(&DynamoDBConfigValidator{})
}
