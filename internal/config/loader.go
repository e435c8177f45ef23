package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envAliases lets the service read the variable names the hosting platform
// already exports, in addition to the FINSIGHT_ prefixed ones.
var envAliases = map[string][]string{
	"database.url":                 {"DATABASE_URL"},
	"storage.supabase_url":         {"SUPABASE_URL"},
	"storage.supabase_service_key": {"SUPABASE_SERVICE_ROLE_KEY"},
	"auth.jwt_secret":              {"SUPABASE_JWT_SECRET"},
}

// Load reads config.yaml from configPath (optional), a .env file next to it
// (optional) and FINSIGHT_* environment variables, in increasing precedence.
func Load(configPath string) (Config, error) {
	cfg := Default()

	if err := godotenv.Load(filepath.Join(configPath, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.SetEnvPrefix("FINSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, cfg)
	for key, aliases := range envAliases {
		names := append([]string{"FINSIGHT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, aliases...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return cfg, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}

	cfg.Server.Addr = v.GetString("server.addr")
	cfg.Server.CORSOrigins = splitList(v.GetStringSlice("server.cors_origins"))
	cfg.Server.ReadTimeout = v.GetDuration("server.read_timeout")
	cfg.Server.WriteTimeout = v.GetDuration("server.write_timeout")
	cfg.Server.ShutdownTimeout = v.GetDuration("server.shutdown_timeout")

	cfg.Database.URL = v.GetString("database.url")
	cfg.Database.Host = v.GetString("database.host")
	cfg.Database.Port = v.GetInt("database.port")
	cfg.Database.User = v.GetString("database.user")
	cfg.Database.Password = v.GetString("database.password")
	cfg.Database.DBName = v.GetString("database.dbname")
	cfg.Database.SSLMode = v.GetString("database.sslmode")
	cfg.Database.MaxConns = v.GetInt32("database.max_conns")

	cfg.Storage.Backend = strings.ToLower(v.GetString("storage.backend"))
	cfg.Storage.Bucket = v.GetString("storage.bucket")
	cfg.Storage.SupabaseURL = v.GetString("storage.supabase_url")
	cfg.Storage.SupabaseServiceKey = v.GetString("storage.supabase_service_key")
	cfg.Storage.S3Endpoint = v.GetString("storage.s3_endpoint")
	cfg.Storage.S3Region = v.GetString("storage.s3_region")
	cfg.Storage.S3AccessKey = v.GetString("storage.s3_access_key")
	cfg.Storage.S3SecretKey = v.GetString("storage.s3_secret_key")
	cfg.Storage.LocalDir = v.GetString("storage.local_dir")

	cfg.Auth.JWTSecret = v.GetString("auth.jwt_secret")
	cfg.Auth.Audience = v.GetString("auth.audience")
	cfg.Auth.AdminRole = v.GetString("auth.admin_role")
	cfg.Auth.CacheTTL = v.GetDuration("auth.cache_ttl")

	cfg.Import.MaxBytes = v.GetInt64("import.max_bytes")
	cfg.Import.MaxRows = v.GetInt("import.max_rows")
	cfg.Import.SampleErrors = v.GetInt("import.sample_errors")
	cfg.Import.ProgressEvery = v.GetInt("import.progress_every")

	cfg.Watchdog.Enabled = v.GetBool("watchdog.enabled")
	cfg.Watchdog.Schedule = v.GetString("watchdog.schedule")
	cfg.Watchdog.StaleAfter = v.GetDuration("watchdog.stale_after")

	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.Development = v.GetBool("log.development")

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.cors_origins", cfg.Server.CORSOrigins)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)

	v.SetDefault("database.url", cfg.Database.URL)
	v.SetDefault("database.host", cfg.Database.Host)
	v.SetDefault("database.port", cfg.Database.Port)
	v.SetDefault("database.user", cfg.Database.User)
	v.SetDefault("database.password", cfg.Database.Password)
	v.SetDefault("database.dbname", cfg.Database.DBName)
	v.SetDefault("database.sslmode", cfg.Database.SSLMode)
	v.SetDefault("database.max_conns", cfg.Database.MaxConns)

	v.SetDefault("storage.backend", cfg.Storage.Backend)
	v.SetDefault("storage.bucket", cfg.Storage.Bucket)
	v.SetDefault("storage.supabase_url", cfg.Storage.SupabaseURL)
	v.SetDefault("storage.supabase_service_key", cfg.Storage.SupabaseServiceKey)
	v.SetDefault("storage.s3_endpoint", cfg.Storage.S3Endpoint)
	v.SetDefault("storage.s3_region", cfg.Storage.S3Region)
	v.SetDefault("storage.s3_access_key", cfg.Storage.S3AccessKey)
	v.SetDefault("storage.s3_secret_key", cfg.Storage.S3SecretKey)
	v.SetDefault("storage.local_dir", cfg.Storage.LocalDir)

	v.SetDefault("auth.jwt_secret", cfg.Auth.JWTSecret)
	v.SetDefault("auth.audience", cfg.Auth.Audience)
	v.SetDefault("auth.admin_role", cfg.Auth.AdminRole)
	v.SetDefault("auth.cache_ttl", cfg.Auth.CacheTTL)

	v.SetDefault("import.max_bytes", cfg.Import.MaxBytes)
	v.SetDefault("import.max_rows", cfg.Import.MaxRows)
	v.SetDefault("import.sample_errors", cfg.Import.SampleErrors)
	v.SetDefault("import.progress_every", cfg.Import.ProgressEvery)

	v.SetDefault("watchdog.enabled", cfg.Watchdog.Enabled)
	v.SetDefault("watchdog.schedule", cfg.Watchdog.Schedule)
	v.SetDefault("watchdog.stale_after", cfg.Watchdog.StaleAfter)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.development", cfg.Log.Development)
}

// splitList accepts both YAML lists and comma separated environment values.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
