// Package config loads ledger service configuration from environment
// variables, with YAML compliance profiles layered on top.
package config

import (
	"os"
	"strconv"
)

// Config holds ledger service configuration.
type Config struct {
	LogLevel    string
	Environment string

	// StoreDriver selects the persistence backend: "sqlite" or "postgres".
	StoreDriver string
	DatabaseURL string
	SQLitePath  string

	// SigningKeyVar names the environment variable holding the master
	// signing key; the key material itself never passes through Config.
	SigningKeyVar string
	KeystorePath  string

	RedisURL     string
	AlertChannel string

	ExportBucket string
	ExportPrefix string

	// ProfilesDir holds the profile_<code>.yaml compliance profiles.
	ProfilesDir string

	OTLPEndpoint string

	VerifyChunkSize int64
	VerifyRateLimit float64
}

// Load loads configuration from environment variables.
func Load() *Config {
	logLevel := os.Getenv("LEDGER_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	env := os.Getenv("LEDGER_ENV")
	if env == "" {
		env = "development"
	}

	driver := os.Getenv("LEDGER_STORE_DRIVER")
	if driver == "" {
		driver = "sqlite"
	}

	sqlitePath := os.Getenv("LEDGER_SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = "ledger.db"
	}

	dbURL := os.Getenv("LEDGER_DATABASE_URL")
	if dbURL == "" {
		dbURL = "postgres://ledger@localhost:5432/ledger?sslmode=disable"
	}

	keyVar := os.Getenv("LEDGER_SIGNING_KEY_VAR")
	if keyVar == "" {
		keyVar = "LEDGER_SIGNING_KEY"
	}

	channel := os.Getenv("LEDGER_ALERT_CHANNEL")
	if channel == "" {
		channel = "ledger:alerts"
	}

	prefix := os.Getenv("LEDGER_EXPORT_PREFIX")
	if prefix == "" {
		prefix = "audit-exports"
	}

	profilesDir := os.Getenv("LEDGER_PROFILES_DIR")
	if profilesDir == "" {
		profilesDir = "profiles"
	}

	return &Config{
		LogLevel:        logLevel,
		Environment:     env,
		StoreDriver:     driver,
		DatabaseURL:     dbURL,
		SQLitePath:      sqlitePath,
		SigningKeyVar:   keyVar,
		KeystorePath:    os.Getenv("LEDGER_KEYSTORE_PATH"),
		RedisURL:        os.Getenv("LEDGER_REDIS_URL"),
		AlertChannel:    channel,
		ExportBucket:    os.Getenv("LEDGER_EXPORT_BUCKET"),
		ExportPrefix:    prefix,
		ProfilesDir:     profilesDir,
		OTLPEndpoint:    os.Getenv("LEDGER_OTLP_ENDPOINT"),
		VerifyChunkSize: envInt64("LEDGER_VERIFY_CHUNK_SIZE", 512),
		VerifyRateLimit: envFloat("LEDGER_VERIFY_RATE_LIMIT", 0),
	}
}

// Production reports whether the service runs with production key policy.
func (c *Config) Production() bool {
	return c.Environment == "production"
}

func envInt64(key string, def int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return f
}
