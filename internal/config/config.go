package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Garzer09/biz-data-guide-sub001/internal/db"

	"github.com/hashicorp/go-multierror"
	"github.com/robfig/cron/v3"
)

// Storage backends.
const (
	StorageSupabase = "supabase"
	StorageS3       = "s3"
	StorageLocal    = "local"
)

// Config is the full service configuration, built once at start-up and passed
// explicitly to every component.
type Config struct {
	Server   ServerConfig
	Database db.Config
	Storage  StorageConfig
	Auth     AuthConfig
	Import   ImportConfig
	Watchdog WatchdogConfig
	Log      LogConfig
}

type ServerConfig struct {
	Addr            string
	CORSOrigins     []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type StorageConfig struct {
	Backend            string
	Bucket             string
	SupabaseURL        string
	SupabaseServiceKey string
	S3Endpoint         string
	S3Region           string
	S3AccessKey        string
	S3SecretKey        string
	LocalDir           string
}

type AuthConfig struct {
	JWTSecret string
	Audience  string
	AdminRole string
	CacheTTL  time.Duration
}

type ImportConfig struct {
	MaxBytes      int64
	MaxRows       int
	SampleErrors  int
	ProgressEvery int
}

type WatchdogConfig struct {
	Enabled    bool
	Schedule   string
	StaleAfter time.Duration
}

type LogConfig struct {
	Level       string
	Development bool
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: db.DefaultConfig(),
		Storage: StorageConfig{
			Backend:  StorageSupabase,
			Bucket:   "imports",
			S3Region: "us-east-1",
			LocalDir: "./data/uploads",
		},
		Auth: AuthConfig{
			Audience:  "authenticated",
			AdminRole: "admin",
			CacheTTL:  30 * time.Second,
		},
		Import: ImportConfig{
			MaxBytes:      10 << 20,
			MaxRows:       10000,
			SampleErrors:  10,
			ProgressEvery: 500,
		},
		Watchdog: WatchdogConfig{
			Enabled:    true,
			Schedule:   "@every 5m",
			StaleAfter: 30 * time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var result *multierror.Error

	if strings.TrimSpace(c.Server.Addr) == "" {
		result = multierror.Append(result, fmt.Errorf("server.addr is required"))
	}
	if c.Database.URL == "" && (c.Database.Host == "" || c.Database.DBName == "") {
		result = multierror.Append(result, fmt.Errorf("database.url or database.host and database.dbname are required"))
	}

	switch c.Storage.Backend {
	case StorageSupabase:
		if c.Storage.SupabaseURL == "" || c.Storage.SupabaseServiceKey == "" {
			result = multierror.Append(result, fmt.Errorf("storage.supabase_url and storage.supabase_service_key are required for the supabase backend"))
		}
		if c.Storage.Bucket == "" {
			result = multierror.Append(result, fmt.Errorf("storage.bucket is required"))
		}
	case StorageS3:
		if c.Storage.Bucket == "" {
			result = multierror.Append(result, fmt.Errorf("storage.bucket is required"))
		}
		if c.Storage.S3Region == "" {
			result = multierror.Append(result, fmt.Errorf("storage.s3_region is required for the s3 backend"))
		}
	case StorageLocal:
		if c.Storage.LocalDir == "" {
			result = multierror.Append(result, fmt.Errorf("storage.local_dir is required for the local backend"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("storage.backend must be one of %s, %s, %s; got %q", StorageSupabase, StorageS3, StorageLocal, c.Storage.Backend))
	}

	if c.Auth.JWTSecret == "" {
		result = multierror.Append(result, fmt.Errorf("auth.jwt_secret is required"))
	}

	if c.Import.MaxBytes <= 0 {
		result = multierror.Append(result, fmt.Errorf("import.max_bytes must be positive"))
	}
	if c.Import.MaxRows <= 0 {
		result = multierror.Append(result, fmt.Errorf("import.max_rows must be positive"))
	}
	if c.Import.SampleErrors <= 0 {
		result = multierror.Append(result, fmt.Errorf("import.sample_errors must be positive"))
	}

	if c.Watchdog.Enabled {
		if _, err := cron.ParseStandard(c.Watchdog.Schedule); err != nil {
			result = multierror.Append(result, fmt.Errorf("watchdog.schedule %q: %w", c.Watchdog.Schedule, err))
		}
		if c.Watchdog.StaleAfter < time.Minute {
			result = multierror.Append(result, fmt.Errorf("watchdog.stale_after must be at least 1m"))
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		result = multierror.Append(result, fmt.Errorf("log.level must be debug, info, warn or error; got %q", c.Log.Level))
	}

	return result.ErrorOrNil()
}
