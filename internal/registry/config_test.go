package registry_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/festivalops/planstore/internal/registry"

	// Register the backend validators.
	_ "github.com/festivalops/planstore/internal/kvstore"
)

func TestDefaultsAreValid(t *testing.T) {
	cm := registry.NewConfigManager()
	config := cm.GetConfig()

	assert.Equal(t, "memory", config.KVStore.Type)
	assert.Equal(t, ":8080", config.Server.ListenAddr)
	assert.False(t, config.Auth.Enabled)
	assert.Equal(t, "none", config.Events.Sink)
}

func TestLoadFromYAMLOverridesDefaults(t *testing.T) {
	yaml := `
kvstore:
  type: redis
  redis:
    endpoints:
      - redis-1:6379
      - redis-2:6379
    db: 3
server:
  listen_addr: ":9090"
  cors_origins:
    - https://festival.example
events:
  sink: kafka
  publish_rate: 25
  kafka:
    brokers:
      - kafka-1:9092
    topic: plan-events
`
	cm := registry.NewConfigManager()
	require.NoError(t, cm.LoadFromYAML([]byte(yaml)))

	config := cm.GetConfig()
	assert.Equal(t, "redis", config.KVStore.Type)
	assert.Equal(t, []string{"redis-1:6379", "redis-2:6379"}, config.KVStore.RedisConfig.Endpoints)
	assert.Equal(t, 3, config.KVStore.RedisConfig.DB)
	// Unset fields keep their defaults.
	assert.Equal(t, 10, config.KVStore.RedisConfig.PoolSize)
	assert.Equal(t, 5*time.Second, config.KVStore.DialTimeout)

	assert.Equal(t, ":9090", config.Server.ListenAddr)
	assert.Equal(t, []string{"https://festival.example"}, config.Server.CORSOrigins)

	assert.Equal(t, "kafka", config.Events.Sink)
	assert.Equal(t, 25, config.Events.PublishRate)
	assert.Equal(t, "plan-events", config.Events.KafkaConfig.Topic)
}

func TestLoadFromJSON(t *testing.T) {
	cm := registry.NewConfigManager()
	require.NoError(t, cm.LoadFromJSON([]byte(`{"kvstore":{"type":"memory"},"server":{"listen_addr":":7070"}}`)))
	assert.Equal(t, ":7070", cm.GetConfig().Server.ListenAddr)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	cm := registry.NewConfigManager()
	err := cm.LoadFromYAML([]byte("kvstore:\n  type: etcd\n"))
	assert.ErrorContains(t, err, "unsupported KV store type")
}

func TestLoadRejectsMissingKafkaSettings(t *testing.T) {
	cm := registry.NewConfigManager()
	err := cm.LoadFromYAML([]byte(`
events:
  sink: kafka
  kafka:
    brokers: []
`))
	assert.ErrorContains(t, err, "events.kafka.brokers")
}

func TestLoadRejectsAuthWithoutJWKSURL(t *testing.T) {
	cm := registry.NewConfigManager()
	err := cm.LoadFromYAML([]byte("auth:\n  enabled: true\n"))
	assert.ErrorContains(t, err, "auth.jwks_url")
}

func TestLoadRejectsIconsWithoutBucket(t *testing.T) {
	cm := registry.NewConfigManager()
	err := cm.LoadFromYAML([]byte("icons:\n  enabled: true\n"))
	assert.ErrorContains(t, err, "icons.bucket")
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PLANSTORE_KVSTORE_TYPE", "memory")
	t.Setenv("PLANSTORE_SERVER_LISTEN_ADDR", ":6060")
	t.Setenv("PLANSTORE_SERVER_CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("PLANSTORE_EVENTS_SINK", "kafka")
	t.Setenv("PLANSTORE_EVENTS_KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("PLANSTORE_EVENTS_KAFKA_TOPIC", "plan-events")

	cm := registry.NewConfigManager()
	require.NoError(t, cm.LoadFromEnv())

	config := cm.GetConfig()
	assert.Equal(t, ":6060", config.Server.ListenAddr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, config.Server.CORSOrigins)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, config.Events.KafkaConfig.Brokers)
	assert.Equal(t, "plan-events", config.Events.KafkaConfig.Topic)
}
