package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ehr/patients/internal/platform/store"
)

type Config struct {
	Port            string        `mapstructure:"PORT"`
	Env             string        `mapstructure:"ENV"`
	StoreDriver     string        `mapstructure:"STORE_DRIVER"`
	StorePath       string        `mapstructure:"STORE_PATH"`
	StoreDocument   string        `mapstructure:"STORE_DOCUMENT"`
	SQLitePath      string        `mapstructure:"SQLITE_PATH"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32         `mapstructure:"DB_MIN_CONNS"`
	MongoURI        string        `mapstructure:"MONGO_URI"`
	MongoDatabase   string        `mapstructure:"MONGO_DATABASE"`
	S3Bucket        string        `mapstructure:"S3_BUCKET"`
	S3Key           string        `mapstructure:"S3_KEY"`
	S3Region        string        `mapstructure:"S3_REGION"`
	S3Endpoint      string        `mapstructure:"S3_ENDPOINT"`
	S3PathStyle     bool          `mapstructure:"S3_PATH_STYLE"`
	CORSOrigins     []string      `mapstructure:"CORS_ORIGINS"`
	BodyLimit       string        `mapstructure:"BODY_LIMIT"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	SerializeWrites bool          `mapstructure:"SERIALIZE_WRITES"`
}

var keys = []string{
	"PORT", "ENV",
	"STORE_DRIVER", "STORE_PATH", "STORE_DOCUMENT", "SQLITE_PATH",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"MONGO_URI", "MONGO_DATABASE",
	"S3_BUCKET", "S3_KEY", "S3_REGION", "S3_ENDPOINT", "S3_PATH_STYLE",
	"CORS_ORIGINS", "BODY_LIMIT", "REQUEST_TIMEOUT", "SERIALIZE_WRITES",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_DRIVER", store.DriverFile)
	v.SetDefault("STORE_PATH", "patients.json")
	v.SetDefault("STORE_DOCUMENT", "patients")
	v.SetDefault("SQLITE_PATH", "patients.db")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("MONGO_DATABASE", "patients")
	v.SetDefault("S3_KEY", "patients.json")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_PATH_STYLE", false)
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("SERIALIZE_WRITES", true)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the selected store driver is known and that the
// settings it needs are present.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case store.DriverFile:
		if c.StorePath == "" {
			return fmt.Errorf("STORE_PATH is required when STORE_DRIVER is %q", c.StoreDriver)
		}
	case store.DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORE_DRIVER is %q", c.StoreDriver)
		}
	case store.DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %q", c.StoreDriver)
		}
		if c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
		}
	case store.DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when STORE_DRIVER is %q", c.StoreDriver)
		}
	case store.DriverS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORE_DRIVER is %q", c.StoreDriver)
		}
	case store.DriverMemory:
		if !c.IsDev() {
			return fmt.Errorf("STORE_DRIVER %q is only allowed in development", c.StoreDriver)
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be one of %s, got %q", strings.Join(store.Drivers, ", "), c.StoreDriver)
	}

	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative, got %s", c.RequestTimeout)
	}
	return nil
}

// StoreOptions translates the config into store.Open options.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Driver:        c.StoreDriver,
		Name:          c.StoreDocument,
		FilePath:      c.StorePath,
		SQLitePath:    c.SQLitePath,
		DatabaseURL:   c.DatabaseURL,
		DBMaxConns:    c.DBMaxConns,
		DBMinConns:    c.DBMinConns,
		MongoURI:      c.MongoURI,
		MongoDatabase: c.MongoDatabase,
		S3: store.S3Config{
			Bucket:    c.S3Bucket,
			Key:       c.S3Key,
			Region:    c.S3Region,
			Endpoint:  c.S3Endpoint,
			PathStyle: c.S3PathStyle,
		},
	}
}
