package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv kosongkan semua env yang dibaca applyEnv, biar test tidak
// kebawa environment CI. t.Setenv sekalian restore setelah selesai.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "API_KEYS",
		"DB_DRIVER", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME",
		"MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_BUCKET",
		"REDIS_ADDR", "REDIS_PASSWORD", "KAFKA_BROKERS",
		"OPENAI_API_KEY", "OPENAI_MODEL",
	} {
		t.Setenv(k, "")
	}
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 60, cfg.Server.RateLimit.Capacity)
	assert.Equal(t, 30, cfg.Server.RateLimit.RefillRate)
	assert.Empty(t, cfg.Server.APIKeys)

	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	assert.Equal(t, "fs", cfg.Storage.Driver)
	assert.Equal(t, "./data/documents", cfg.Storage.Root)

	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 120, cfg.Redis.Limit)
	assert.Equal(t, 60, cfg.Redis.WindowSeconds)

	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "forensics.analysis.completed", cfg.Kafka.AnalysisTopic)
	assert.Equal(t, "forensics.batch.completed", cfg.Kafka.BatchTopic)
}

func TestLoad_YAMLFileParsed(t *testing.T) {
	clearEnv(t)

	path := writeYAML(t, `
server:
  port: 9090
  apiKeys:
    acme: secret-1
  rateLimit:
    capacity: 10
    refillRate: 5
database:
  driver: postgres
  host: db.internal
  port: 5432
  user: forensics
  password: hunter2
  name: forensics
storage:
  driver: fs
  root: /var/lib/forensics
analysis:
  workers: 8
  queueSize: 256
  detectorTimeoutSeconds: 12
  disabledDetectors: [exif]
  retry:
    attempts: 5
    baseMs: 100
    maxMs: 2000
  weights:
    content: 0.5
    structure: 0.2
    metadata: 0.15
    visual: 0.15
  thresholds:
    low: 0.25
    medium: 0.55
    high: 0.8
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, map[string]string{"acme": "secret-1"}, cfg.Server.APIKeys)
	assert.Equal(t, 10, cfg.Server.RateLimit.Capacity)
	assert.Equal(t, 5, cfg.Server.RateLimit.RefillRate)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "disable", cfg.Database.SSLMode) // default tetap masuk

	assert.Equal(t, "/var/lib/forensics", cfg.Storage.Root)

	assert.Equal(t, 8, cfg.Analysis.Workers)
	assert.Equal(t, 256, cfg.Analysis.QueueSize)
	assert.Equal(t, 12, cfg.Analysis.DetectorTimeoutSeconds)
	assert.Equal(t, []string{"exif"}, cfg.Analysis.DisabledDetectors)
	assert.Equal(t, 5, cfg.Analysis.Retry.Attempts)
	assert.Equal(t, 100, cfg.Analysis.Retry.BaseMS)
	assert.Equal(t, 2000, cfg.Analysis.Retry.MaxMS)
	assert.InDelta(t, 0.5, cfg.Analysis.Weights.Content, 1e-9)
	assert.InDelta(t, 0.8, cfg.Analysis.Thresholds.High, 1e-9)
}

func TestLoad_MalformedYAML(t *testing.T) {
	clearEnv(t)

	path := writeYAML(t, "server: [not a map\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)

	path := writeYAML(t, `
server:
  port: 9090
database:
  driver: mysql
  host: from-file
openai:
  model: gpt-4o-mini
`)

	t.Setenv("PORT", "7777")
	t.Setenv("DB_HOST", "from-env")
	t.Setenv("DB_PORT", "3307")
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_NAME", "docs")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "gpt-4o")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "from-env", cfg.Database.Host)
	assert.Equal(t, 3307, cfg.Database.Port)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
}

func TestLoad_BadPortEnvIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "not-a-number")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_APIKeysFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_KEYS", "acme: secret-1 ,beta:s2,broken,:nokey")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"acme": "secret-1", "beta": "s2"}, cfg.Server.APIKeys)
}

func TestLoad_RedisAndKafkaEnabledByEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_MinioEndpointFlipsStorageDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("MINIO_ENDPOINT", "minio:9000")
	t.Setenv("MINIO_ACCESS_KEY", "ak")
	t.Setenv("MINIO_SECRET_KEY", "sk")
	t.Setenv("MINIO_BUCKET", "documents")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "minio", cfg.Storage.Driver)
	assert.Equal(t, "minio:9000", cfg.Minio.Endpoint)
	assert.Equal(t, "documents", cfg.Minio.BucketName)
}

func TestDSNHelpers(t *testing.T) {
	var cfg Config
	cfg.Database.Host = "db.internal"
	cfg.Database.Port = 3306
	cfg.Database.User = "forensics"
	cfg.Database.Password = "hunter2"
	cfg.Database.Name = "docs"
	cfg.Database.SSLMode = "require"

	assert.Equal(t,
		"forensics:hunter2@tcp(db.internal:3306)/docs?parseTime=true&charset=utf8mb4&loc=UTC",
		cfg.MySQLDSN())

	cfg.Database.Port = 5432
	assert.Equal(t,
		"host=db.internal port=5432 user=forensics password=hunter2 dbname=docs sslmode=require",
		cfg.PostgresDSN())
}
