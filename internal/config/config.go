// Package config handles loading and parsing of zonewarden configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for zonewarden.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Repository    RepositoryConfig    `yaml:"repository"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ObservabilityConfig holds settings for metrics and health check endpoints.
type ObservabilityConfig struct {
	// Metrics registers zonewarden's collectors with the default Prometheus
	// registry at startup. The /metrics route is served either way.
	Metrics bool `yaml:"metrics"`
	// HealthCheck is parsed but not read by the server; /health is always
	// served, and there are no /healthz or /readyz routes.
	HealthCheck bool `yaml:"health_check"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `yaml:"level"`
	// Format is the log output format: "text" or "json".
	Format string `yaml:"format"`
}

// ServerConfig holds HTTP server settings for the thin zones CRUD surface.
type ServerConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	Region          string `yaml:"region"`
	ShutdownTimeout int    `yaml:"shutdown_timeout"` // Graceful shutdown timeout in seconds (default: 30).
}

// AuthConfig holds the authenticator's composition-time policy. This is
// passed explicitly into auth.Config and the crypto algebra constructor
// rather than read from a global at call sites.
type AuthConfig struct {
	// EncryptUserSecrets gates whether stored principal (SigV4) secrets are
	// encrypted at rest and must be decrypted before use. TSIG keys are
	// always passed through the configured algebra, whatever this is set to.
	EncryptUserSecrets bool `yaml:"encrypt_user_secrets"`
	// CryptoAlgebra selects the algebra implementation: "noop" or "aesgcm".
	CryptoAlgebra string `yaml:"crypto_algebra"`
	// EncryptionKeyHex is the hex-encoded 32-byte key for the aesgcm algebra.
	EncryptionKeyHex string `yaml:"encryption_key_hex"`
}

// RepositoryConfig holds zone/principal repository settings.
type RepositoryConfig struct {
	// Engine is the repository backend ("memory", "sqlite", "dynamodb",
	// "firestore", "cosmos").
	Engine    string          `yaml:"engine"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	DynamoDB  DynamoDBConfig  `yaml:"dynamodb"`
	Firestore FirestoreConfig `yaml:"firestore"`
	Cosmos    CosmosConfig    `yaml:"cosmos"`
}

// SQLiteConfig holds SQLite-specific repository settings.
type SQLiteConfig struct {
	// Path is the filesystem path for the SQLite database file.
	Path string `yaml:"path"`
}

// DynamoDBConfig holds DynamoDB-specific repository settings.
type DynamoDBConfig struct {
	// Table is the DynamoDB table name.
	Table string `yaml:"table"`
	// Region is the AWS region.
	Region string `yaml:"region"`
	// EndpointURL is a custom DynamoDB endpoint (for local testing).
	EndpointURL string `yaml:"endpoint_url"`
}

// FirestoreConfig holds Firestore-specific repository settings.
type FirestoreConfig struct {
	// ProjectID is the GCP project ID.
	ProjectID string `yaml:"project_id"`
	// Collection is the Firestore collection holding zone documents.
	Collection string `yaml:"collection"`
	// CredentialsFile is the path to a service account JSON file.
	CredentialsFile string `yaml:"credentials_file"`
}

// CosmosConfig holds Azure Cosmos DB-specific repository settings.
type CosmosConfig struct {
	// Endpoint is the Cosmos DB account endpoint.
	Endpoint string `yaml:"endpoint"`
	// Database is the Cosmos DB database name.
	Database string `yaml:"database"`
	// Container is the Cosmos DB container name.
	Container string `yaml:"container"`
	// MasterKey is the Cosmos DB master key. Empty means use azidentity's
	// default credential chain instead of key-based auth.
	MasterKey string `yaml:"master_key"`
}

// Load reads a YAML configuration file from the given path and returns a
// parsed Config, applying sensible defaults for unset values. If the
// primary path fails, it falls back to zonewarden.example.yaml in the same
// directory or parent directory.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		fallbackPaths := []string{
			filepath.Join(filepath.Dir(path), "zonewarden.example.yaml"),
			filepath.Join(filepath.Dir(path), "..", "zonewarden.example.yaml"),
		}
		var fallbackErr error
		for _, fp := range fallbackPaths {
			data, fallbackErr = os.ReadFile(fp)
			if fallbackErr == nil {
				break
			}
		}
		if fallbackErr != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(cfg)

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8443,
			Region:          "us-east-1",
			ShutdownTimeout: 30,
		},
		Auth: AuthConfig{
			EncryptUserSecrets: false,
			CryptoAlgebra:      "noop",
		},
		Repository: RepositoryConfig{
			Engine: "sqlite",
			SQLite: SQLiteConfig{
				Path: "./data/zonewarden.db",
			},
		},
		Observability: ObservabilityConfig{
			Metrics:     true,
			HealthCheck: true,
		},
	}
}

// applyDefaults fills in any fields that are still at their zero value
// after YAML unmarshaling.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8443
	}
	if cfg.Server.Region == "" {
		cfg.Server.Region = "us-east-1"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30
	}
	if cfg.Auth.CryptoAlgebra == "" {
		cfg.Auth.CryptoAlgebra = "noop"
	}
	if cfg.Repository.Engine == "" {
		cfg.Repository.Engine = "sqlite"
	}
	if cfg.Repository.SQLite.Path == "" {
		cfg.Repository.SQLite.Path = "./data/zonewarden.db"
	}
}
