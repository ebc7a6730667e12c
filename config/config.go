// Package config loads runtime settings from an optional app.env file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverSQLite3  = "sqlite3"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverWAL      = "wal"
)

// Output formats accepted in OUTPUT_FORMAT.
const (
	FormatCSV   = "csv"
	FormatJSONL = "jsonl"
	FormatKafka = "kafka"
)

// Config stores all configuration of the application.
//
// The values are read by viper from app.env or environment variables;
// environment variables win.
type Config struct {
	StoreDriver         string `mapstructure:"STORE_DRIVER" validate:"oneof=memory sqlite3 sqlite postgres wal"`
	StoreSource         string `mapstructure:"STORE_SOURCE" validate:"required_if=StoreDriver sqlite3,required_if=StoreDriver sqlite,required_if=StoreDriver postgres"`
	WALDir              string `mapstructure:"WAL_DIR" validate:"required_if=StoreDriver wal"`
	WALSegmentThreshold int    `mapstructure:"WAL_SEGMENT_THRESHOLD" validate:"min=1"`
	ResetOnStart        bool   `mapstructure:"RESET_ON_START"`
	ReconstructWorkers  int    `mapstructure:"RECONSTRUCT_WORKERS" validate:"min=1,max=1024"`

	OutputFormat string `mapstructure:"OUTPUT_FORMAT" validate:"oneof=csv jsonl kafka"`
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS" validate:"required_if=OutputFormat kafka"`
	KafkaTopic   string `mapstructure:"KAFKA_TOPIC" validate:"required_if=OutputFormat kafka"`

	ServerAddress string `mapstructure:"SERVER_ADDRESS" validate:"required"`

	Environment string `mapstructure:"GO_ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`

	OTelEnabled  bool   `mapstructure:"OTEL_ENABLED"`
	OTelEndpoint string `mapstructure:"OTEL_ENDPOINT" validate:"omitempty,url"`
}

var defaults = map[string]any{
	"STORE_DRIVER":          DriverSQLite3,
	"STORE_SOURCE":          "transactions.db",
	"WAL_DIR":               "./wal/ledger",
	"WAL_SEGMENT_THRESHOLD": 1000,
	"RESET_ON_START":        true,
	"RECONSTRUCT_WORKERS":   4,
	"OUTPUT_FORMAT":         FormatCSV,
	"KAFKA_BROKERS":         "",
	"KAFKA_TOPIC":           "accounts",
	"SERVER_ADDRESS":        ":8080",
	"GO_ENV":                "production",
	"LOG_LEVEL":             "info",
	"OTEL_ENABLED":          true,
	"OTEL_ENDPOINT":         "",
}

// Load reads app.env from path, if present, then the environment, and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	var c Config

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.AddConfigPath(path)
		v.SetConfigName("app")
		v.SetConfigType("env")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return c, fmt.Errorf("read config: %w", err)
			}
		}
	}

	v.AutomaticEnv()

	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decode config: %w", err)
	}
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	c.OutputFormat = strings.ToLower(strings.TrimSpace(c.OutputFormat))

	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Brokers splits KAFKA_BROKERS on commas.
func (c Config) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// IsDevelopment reports whether GO_ENV selects human-readable logs.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development"
}
