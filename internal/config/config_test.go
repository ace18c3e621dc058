package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/tokendrop-backend/internal/domain"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load("", noEnv)

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultBatchPolicy(), cfg.Policy())
	assert.Equal(t, int64(5*1024*1024), cfg.Limits().MaxFileSizeBytes)
	assert.Equal(t, 1000, cfg.Limits().MaxAddressCount)
	assert.Equal(t, int32(18), cfg.Limits().TokenDecimals)
	assert.True(t, cfg.Limits().MaxAmount.IsZero())
	assert.Equal(t, 500*time.Millisecond, cfg.DebounceWindow())
	assert.True(t, cfg.CostBuffer().Equal(decimal.RequireFromString("1.2")))
}

func TestLoad_FileThenEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  grpcAddress: ":9000"
ingest:
  maxAddressCount: 5000
  maxAmount: "1000"
batch:
  maxBatchSize: 10
  maxRetries: 4
  costBufferMultiplier: "1.5"
session:
  account: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := load(path, envMap(map[string]string{
		"TOKENDROP_MAX_BATCH_SIZE":           "20",
		"TOKENDROP_RETRY_DELAY_MS":           "100",
		"TOKENDROP_LOG_LEVEL":                "debug",
		"TOKENDROP_METRICS_ENABLED":          "false",
		"TOKENDROP_DISPATCH_RATE_PER_SECOND": "2.5",
	}))

	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.GRPCAddress)
	assert.Equal(t, 5000, cfg.Ingest.MaxAddressCount)
	assert.Equal(t, 20, cfg.Batch.MaxBatchSize, "environment wins over file")
	assert.Equal(t, 4, cfg.Batch.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.Policy().RetryDelay)
	assert.Equal(t, 2.5, cfg.Policy().DispatchRatePerSecond)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Metrics.Enabled)
	assert.True(t, cfg.Limits().MaxAmount.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", cfg.OperatorSession().Account)
	assert.Equal(t, 2000*time.Millisecond, cfg.Policy().InterBatchDelay, "untouched keys keep defaults")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "Unparseable Integer", env: map[string]string{"TOKENDROP_MAX_RETRIES": "many"}},
		{name: "Negative Retries", env: map[string]string{"TOKENDROP_MAX_RETRIES": "-1"}},
		{name: "Buffer Below One", env: map[string]string{"TOKENDROP_COST_BUFFER_MULTIPLIER": "0.9"}},
		{name: "Zero Chunk Size", env: map[string]string{"TOKENDROP_CHUNK_SIZE": "0"}},
		{name: "Inverted Bounds", env: map[string]string{"TOKENDROP_MIN_ADDRESS_COUNT": "10", "TOKENDROP_MAX_ADDRESS_COUNT": "5"}},
		{name: "Bad Max Amount", env: map[string]string{"TOKENDROP_MAX_AMOUNT": "lots"}},
		{name: "Empty Token", env: map[string]string{"TOKENDROP_API_TOKEN": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load("", envMap(tt.env))
			assert.Error(t, err)
		})
	}

	_, err := load(filepath.Join(t.TempDir(), "missing.yaml"), noEnv)
	assert.Error(t, err)
}
