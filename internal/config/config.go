package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/simaogato/tokendrop-backend/internal/domain"
	"github.com/simaogato/tokendrop-backend/internal/usecase/ingest"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "TOKENDROP_"

// Config is the complete service configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Batch   BatchConfig   `yaml:"batch"`
	Session SessionConfig `yaml:"session"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Export  ExportConfig  `yaml:"export"`
}

type ServerConfig struct {
	GRPCAddress       string `yaml:"grpcAddress"`
	APIToken          string `yaml:"apiToken"`
	ShutdownTimeoutMs int    `yaml:"shutdownTimeoutMs"`
	Reflection        bool   `yaml:"reflection"` // lists services only; airdrop bodies are structpb
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Address   string `yaml:"address"`
	Namespace string `yaml:"namespace"`
}

type IngestConfig struct {
	MaxFileSizeBytes     int64  `yaml:"maxFileSizeBytes"`
	MaxAddressCount      int    `yaml:"maxAddressCount"`
	MinAddressCount      int    `yaml:"minAddressCount"`
	ChunkSize            int    `yaml:"chunkSize"`
	ValidationDebounceMs int    `yaml:"validationDebounceMs"`
	TokenDecimals        int32  `yaml:"tokenDecimals"`
	MaxAmount            string `yaml:"maxAmount"` // empty means unbounded
}

type BatchConfig struct {
	MaxBatchSize           int     `yaml:"maxBatchSize"`
	InterBatchDelayMs      int     `yaml:"interBatchDelayMs"`
	SubGroupDelayMs        int     `yaml:"subGroupDelayMs"`
	MaxConcurrencyPerBatch int     `yaml:"maxConcurrencyPerBatch"`
	MaxRetries             int     `yaml:"maxRetries"`
	RetryDelayMs           int     `yaml:"retryDelayMs"`
	CostBufferMultiplier   string  `yaml:"costBufferMultiplier"`
	DispatchRatePerSecond  float64 `yaml:"dispatchRatePerSecond"`
	EstimateConcurrency    int     `yaml:"estimateConcurrency"`
}

type SessionConfig struct {
	Account      string `yaml:"account"`
	TokenAddress string `yaml:"tokenAddress"`
	ChainID      int64  `yaml:"chainId"`
}

type LedgerConfig struct {
	GasPerTransfer uint64  `yaml:"gasPerTransfer"`
	FeeRate        string  `yaml:"feeRate"`
	TokenBalance   string  `yaml:"tokenBalance"`
	NativeBalance  string  `yaml:"nativeBalance"`
	LatencyMs      int     `yaml:"latencyMs"`
	FailureRate    float64 `yaml:"failureRate"`
}

type ExportConfig struct {
	BucketURL string `yaml:"bucketUrl"` // empty disables publishing
	Prefix    string `yaml:"prefix"`
}

// Default returns the configuration used when nothing is overridden
func Default() Config {
	return Config{
		Server: ServerConfig{
			GRPCAddress:       ":8080",
			APIToken:          "dev-token",
			ShutdownTimeoutMs: 30000,
			Reflection:        true,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Enabled: true, Address: ":9090", Namespace: "tokendrop"},
		Ingest: IngestConfig{
			MaxFileSizeBytes:     5 * 1024 * 1024,
			MaxAddressCount:      1000,
			MinAddressCount:      1,
			ChunkSize:            1000,
			ValidationDebounceMs: 500,
			TokenDecimals:        18,
		},
		Batch: BatchConfig{
			MaxBatchSize:           50,
			InterBatchDelayMs:      2000,
			SubGroupDelayMs:        500,
			MaxConcurrencyPerBatch: 5,
			MaxRetries:             2,
			RetryDelayMs:           5000,
			CostBufferMultiplier:   "1.2",
			EstimateConcurrency:    8,
		},
		Session: SessionConfig{ChainID: 1337},
		Ledger: LedgerConfig{
			GasPerTransfer: 52000,
			FeeRate:        "0.000000002",
			TokenBalance:   "1000000",
			NativeBalance:  "10",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at path,
// then TOKENDROP_* environment variables, in that order of precedence
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate ensures the configuration can start the service
func (c Config) Validate() error {
	var errs []error

	if c.Server.GRPCAddress == "" {
		errs = append(errs, errors.New("server.grpcAddress is required"))
	}
	if c.Server.APIToken == "" {
		errs = append(errs, errors.New("server.apiToken is required"))
	}
	if c.Ingest.MaxFileSizeBytes < 1 {
		errs = append(errs, errors.New("ingest.maxFileSizeBytes must be positive"))
	}
	if c.Ingest.MinAddressCount < 0 || c.Ingest.MaxAddressCount < c.Ingest.MinAddressCount {
		errs = append(errs, errors.New("ingest address count bounds are inconsistent"))
	}
	if c.Ingest.ChunkSize < 1 {
		errs = append(errs, errors.New("ingest.chunkSize must be positive"))
	}
	if c.Ingest.TokenDecimals < 0 {
		errs = append(errs, errors.New("ingest.tokenDecimals cannot be negative"))
	}
	if c.Ingest.MaxAmount != "" {
		if _, err := decimal.NewFromString(c.Ingest.MaxAmount); err != nil {
			errs = append(errs, fmt.Errorf("ingest.maxAmount: %w", err))
		}
	}
	if err := c.Policy().Validate(); err != nil {
		errs = append(errs, err)
	}
	buffer, err := decimal.NewFromString(c.Batch.CostBufferMultiplier)
	if err != nil {
		errs = append(errs, fmt.Errorf("batch.costBufferMultiplier: %w", err))
	} else if buffer.LessThan(decimal.NewFromInt(1)) {
		errs = append(errs, domain.ErrInvalidCostBuffer)
	}
	for name, value := range map[string]string{
		"ledger.feeRate":       c.Ledger.FeeRate,
		"ledger.tokenBalance":  c.Ledger.TokenBalance,
		"ledger.nativeBalance": c.Ledger.NativeBalance,
	} {
		if _, err := decimal.NewFromString(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Limits converts the ingest section for the pipeline
func (c Config) Limits() ingest.Limits {
	limits := ingest.Limits{
		MaxFileSizeBytes: c.Ingest.MaxFileSizeBytes,
		MaxAddressCount:  c.Ingest.MaxAddressCount,
		MinAddressCount:  c.Ingest.MinAddressCount,
		ChunkSize:        c.Ingest.ChunkSize,
		TokenDecimals:    c.Ingest.TokenDecimals,
	}
	if c.Ingest.MaxAmount != "" {
		limits.MaxAmount, _ = decimal.NewFromString(c.Ingest.MaxAmount)
	}
	return limits
}

// Policy converts the batch section for the orchestrator
func (c Config) Policy() domain.BatchPolicy {
	return domain.BatchPolicy{
		MaxBatchSize:           c.Batch.MaxBatchSize,
		MaxConcurrencyPerBatch: c.Batch.MaxConcurrencyPerBatch,
		MaxRetries:             c.Batch.MaxRetries,
		InterBatchDelay:        millis(c.Batch.InterBatchDelayMs),
		SubGroupDelay:          millis(c.Batch.SubGroupDelayMs),
		RetryDelay:             millis(c.Batch.RetryDelayMs),
		DispatchRatePerSecond:  c.Batch.DispatchRatePerSecond,
	}
}

// CostBuffer returns the multiplier applied to aggregate cost estimates
func (c Config) CostBuffer() decimal.Decimal {
	buffer, err := decimal.NewFromString(c.Batch.CostBufferMultiplier)
	if err != nil {
		return decimal.NewFromInt(1)
	}
	return buffer
}

// OperatorSession returns the configured operator session
func (c Config) OperatorSession() domain.Session {
	return domain.Session{
		Account:       c.Session.Account,
		TokenAddress:  c.Session.TokenAddress,
		ChainID:       c.Session.ChainID,
		TokenDecimals: c.Ingest.TokenDecimals,
	}
}

// DebounceWindow returns the re-validation debounce
func (c Config) DebounceWindow() time.Duration {
	return millis(c.Ingest.ValidationDebounceMs)
}

// ShutdownTimeout returns how long graceful shutdown may take
func (c Config) ShutdownTimeout() time.Duration {
	return millis(c.Server.ShutdownTimeoutMs)
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

type envBinding struct {
	key string
	set func(value string) error
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	bindings := []envBinding{
		{"GRPC_ADDRESS", setString(&cfg.Server.GRPCAddress)},
		{"API_TOKEN", setString(&cfg.Server.APIToken)},
		{"SHUTDOWN_TIMEOUT_MS", setInt(&cfg.Server.ShutdownTimeoutMs)},
		{"REFLECTION", setBool(&cfg.Server.Reflection)},
		{"LOG_LEVEL", setString(&cfg.Logging.Level)},
		{"LOG_FORMAT", setString(&cfg.Logging.Format)},
		{"METRICS_ENABLED", setBool(&cfg.Metrics.Enabled)},
		{"METRICS_ADDRESS", setString(&cfg.Metrics.Address)},
		{"MAX_FILE_SIZE_BYTES", setInt64(&cfg.Ingest.MaxFileSizeBytes)},
		{"MAX_ADDRESS_COUNT", setInt(&cfg.Ingest.MaxAddressCount)},
		{"MIN_ADDRESS_COUNT", setInt(&cfg.Ingest.MinAddressCount)},
		{"CHUNK_SIZE", setInt(&cfg.Ingest.ChunkSize)},
		{"VALIDATION_DEBOUNCE_MS", setInt(&cfg.Ingest.ValidationDebounceMs)},
		{"TOKEN_DECIMALS", setInt32(&cfg.Ingest.TokenDecimals)},
		{"MAX_AMOUNT", setString(&cfg.Ingest.MaxAmount)},
		{"MAX_BATCH_SIZE", setInt(&cfg.Batch.MaxBatchSize)},
		{"INTER_BATCH_DELAY_MS", setInt(&cfg.Batch.InterBatchDelayMs)},
		{"SUB_GROUP_DELAY_MS", setInt(&cfg.Batch.SubGroupDelayMs)},
		{"MAX_CONCURRENCY_PER_BATCH", setInt(&cfg.Batch.MaxConcurrencyPerBatch)},
		{"MAX_RETRIES", setInt(&cfg.Batch.MaxRetries)},
		{"RETRY_DELAY_MS", setInt(&cfg.Batch.RetryDelayMs)},
		{"COST_BUFFER_MULTIPLIER", setString(&cfg.Batch.CostBufferMultiplier)},
		{"DISPATCH_RATE_PER_SECOND", setFloat(&cfg.Batch.DispatchRatePerSecond)},
		{"SESSION_ACCOUNT", setString(&cfg.Session.Account)},
		{"SESSION_TOKEN_ADDRESS", setString(&cfg.Session.TokenAddress)},
		{"SESSION_CHAIN_ID", setInt64(&cfg.Session.ChainID)},
		{"LEDGER_FAILURE_RATE", setFloat(&cfg.Ledger.FailureRate)},
		{"LEDGER_LATENCY_MS", setInt(&cfg.Ledger.LatencyMs)},
		{"EXPORT_BUCKET_URL", setString(&cfg.Export.BucketURL)},
		{"EXPORT_PREFIX", setString(&cfg.Export.Prefix)},
	}

	for _, b := range bindings {
		value, ok := lookup(EnvPrefix + b.key)
		if !ok {
			continue
		}
		if err := b.set(value); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, b.key, err)
		}
	}
	return nil
}

func setString(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func setInt(dst *int) func(string) error {
	return func(v string) error {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = parsed
		return nil
	}
}

func setInt32(dst *int32) func(string) error {
	return func(v string) error {
		parsed, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return err
		}
		*dst = int32(parsed)
		return nil
	}
}

func setInt64(dst *int64) func(string) error {
	return func(v string) error {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		*dst = parsed
		return nil
	}
}

func setFloat(dst *float64) func(string) error {
	return func(v string) error {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*dst = parsed
		return nil
	}
}

func setBool(dst *bool) func(string) error {
	return func(v string) error {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst = parsed
		return nil
	}
}
