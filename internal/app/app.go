// Package app wires configuration into the import pipeline's collaborators.
package app

import (
	"context"
	"fmt"

	"github.com/Garzer09/biz-data-guide-sub001/internal/auth"
	"github.com/Garzer09/biz-data-guide-sub001/internal/config"
	"github.com/Garzer09/biz-data-guide-sub001/internal/db"
	"github.com/Garzer09/biz-data-guide-sub001/internal/domain"
	"github.com/Garzer09/biz-data-guide-sub001/internal/ingestion"
	"github.com/Garzer09/biz-data-guide-sub001/internal/repository"
	"github.com/Garzer09/biz-data-guide-sub001/internal/schema/validator"
	"github.com/Garzer09/biz-data-guide-sub001/internal/storage"
	"github.com/Garzer09/biz-data-guide-sub001/internal/watchdog"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// App holds the long lived components shared by the server and the CLI.
type App struct {
	Conn     *db.Connection
	Jobs     repository.ImportJobRepository
	Logs     repository.ImportLogRepository
	Service  *ingestion.Service
	Watchdog *watchdog.Watchdog
}

// New connects to the database and builds the import service.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if err := CheckDescriptors(domain.Descriptors()); err != nil {
		return nil, fmt.Errorf("record descriptors: %w", err)
	}

	conn, err := db.NewConnection(ctx, cfg.Database, logger.Named("db"))
	if err != nil {
		return nil, err
	}

	downloader, err := NewDownloader(ctx, cfg.Storage)
	if err != nil {
		conn.Close()
		return nil, err
	}

	jobs := repository.NewImportJobRepository(conn)
	logs := repository.NewImportLogRepository(conn.Pool)
	access := repository.NewAccessRepository(conn.Pool, cfg.Auth.AdminRole)
	authorizer := auth.NewCachedAuthorizer(auth.NewPolicyAuthorizer(access), cfg.Auth.CacheTTL)

	service := ingestion.NewService(ingestion.Repositories{
		Jobs:      jobs,
		Logs:      logs,
		Companies: repository.NewCompanyRepository(conn.Pool),
		Facts:     repository.NewFactRepository(conn.Pool),
	}, downloader, authorizer,
		ingestion.WithLogger(logger.Named("ingestion")),
		ingestion.WithLimits(ingestion.Limits{
			MaxBytes:      cfg.Import.MaxBytes,
			MaxRows:       cfg.Import.MaxRows,
			SampleErrors:  cfg.Import.SampleErrors,
			ProgressEvery: cfg.Import.ProgressEvery,
		}),
	)

	return &App{
		Conn:     conn,
		Jobs:     jobs,
		Logs:     logs,
		Service:  service,
		Watchdog: watchdog.New(jobs, cfg.Watchdog.StaleAfter, logger.Named("watchdog")),
	}, nil
}

// CheckDescriptors reports every descriptor that cannot drive the pipeline.
func CheckDescriptors(descs []domain.RecordDescriptor) error {
	var result *multierror.Error
	for _, desc := range descs {
		if err := validator.ValidateDescriptor(desc); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Close stops background work and releases the pool.
func (a *App) Close() {
	a.Watchdog.Stop()
	a.Conn.Close()
}

// NewDownloader selects the blob store backend.
func NewDownloader(ctx context.Context, cfg config.StorageConfig) (storage.Downloader, error) {
	switch cfg.Backend {
	case config.StorageSupabase:
		return storage.NewSupabaseDownloader(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.Bucket), nil
	case config.StorageS3:
		return storage.NewS3Downloader(ctx, storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	case config.StorageLocal:
		return storage.NewLocalDownloader(cfg.LocalDir), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
