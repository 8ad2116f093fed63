package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"docstore/internal/config"
	"docstore/internal/database"
	"docstore/internal/database/migration"
	"docstore/internal/repository"
	"docstore/internal/repository/jsonfile"
	"docstore/internal/repository/postgres"
	"docstore/internal/repository/sqlite"
	"docstore/internal/storage"
)

// openRegistry builds the metadata registry selected by REGISTRY_DRIVER.
// The returned close func releases the underlying database, if any.
func openRegistry(ctx context.Context, cfg *config.AppConfig, log zerolog.Logger) (repository.DocumentRegistry, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Storage.RegistryDriver {
	case config.RegistryFile:
		reg, err := jsonfile.Open(cfg.Storage.DataDir)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("event", "registry_opened").Str("driver", "file").Str("path", reg.Path()).Msg("metadata registry ready")
		return reg, noop, nil

	case config.RegistrySQLite:
		db, err := database.NewSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := migrate(ctx, db, migration.SQLite, log); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		log.Info().Str("event", "registry_opened").Str("driver", "sqlite").Str("path", cfg.Storage.SQLitePath).Msg("metadata registry ready")
		return sqlite.NewDocumentSQLite(db), db.Close, nil

	case config.RegistryPostgres:
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := migrate(ctx, db, migration.Postgres, log); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		log.Info().Str("event", "registry_opened").Str("driver", "postgres").Str("host", cfg.Database.Host).Msg("metadata registry ready")
		return postgres.NewDocumentPostgres(db), db.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported REGISTRY_DRIVER %q", cfg.Storage.RegistryDriver)
	}
}

func migrate(ctx context.Context, db *sql.DB, dialect migration.Dialect, log zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return migration.EnsureMigrated(ctx, db, dialect, log)
}

// openBlobStore builds the blob store selected by BLOB_DRIVER.
func openBlobStore(cfg *config.AppConfig, log zerolog.Logger) (storage.BlobStore, error) {
	switch cfg.Storage.BlobDriver {
	case config.BlobFS:
		fs, err := storage.NewFS(cfg.Storage.UploadDir, cfg.Storage.MaxUploadBytes)
		if err != nil {
			return nil, err
		}
		log.Info().Str("event", "blob_store_opened").Str("driver", "fs").Str("path", fs.Root()).Msg("blob store ready")
		return fs, nil

	case config.BlobMinIO:
		store, err := storage.NewMinIO(cfg.MinIO, cfg.Storage.MaxUploadBytes)
		if err != nil {
			return nil, err
		}
		log.Info().Str("event", "blob_store_opened").Str("driver", "minio").Str("bucket", cfg.MinIO.Bucket).Msg("blob store ready")
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported BLOB_DRIVER %q", cfg.Storage.BlobDriver)
	}
}
