package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"docstore/internal/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSN(t *testing.T) {
	base := config.DatabaseConfig{Host: "db", Port: "5432", User: "docstore", Name: "documents"}

	t.Run("components", func(t *testing.T) {
		tests := []struct {
			name     string
			password string
			sslMode  string
			want     string
		}{
			{name: "password and sslmode", password: "s3cret", sslMode: "disable", want: "postgres://docstore:s3cret@db:5432/documents?sslmode=disable"},
			{name: "no password", sslMode: "require", want: "postgres://docstore@db:5432/documents?sslmode=require"},
			{name: "bare", want: "postgres://docstore@db:5432/documents"},
			{name: "password is escaped", password: "p@ss/word", want: "postgres://docstore:p%40ss%2Fword@db:5432/documents"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				c := base
				c.Password = tt.password
				c.SSLMode = tt.sslMode
				got, err := BuildPostgresDSN(c)
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			})
		}
	})

	t.Run("required fields", func(t *testing.T) {
		unsetters := map[string]func(*config.DatabaseConfig){
			"host": func(c *config.DatabaseConfig) { c.Host = "" },
			"port": func(c *config.DatabaseConfig) { c.Port = "" },
			"user": func(c *config.DatabaseConfig) { c.User = "" },
			"name": func(c *config.DatabaseConfig) { c.Name = "" },
		}
		for field, unset := range unsetters {
			c := base
			unset(&c)
			_, err := BuildPostgresDSN(c)
			assert.Error(t, err, "missing %s", field)
		}
	})
}

func TestNewPostgres(t *testing.T) {
	conf := config.DatabaseConfig{
		Host:               "localhost",
		Port:               "5432",
		User:               "user",
		Password:           "pass",
		Name:               "dbname",
		MaxOpenConns:       10,
		MaxIdleConns:       5,
		ConnMaxLifetimeSec: 300,
	}

	t.Run("success", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		// Mock sqlOpen to return the mock db
		origSqlOpen := sqlOpen
		sqlOpen = func(driverName, dataSourceName string) (*sql.DB, error) {
			return db, nil
		}
		defer func() { sqlOpen = origSqlOpen }()

		mock.ExpectPing()

		gotDB, err := NewPostgres(conf)
		assert.NoError(t, err)
		assert.NotNil(t, gotDB)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("sqlOpen error", func(t *testing.T) {
		// Mock sqlOpen to return error
		origSqlOpen := sqlOpen
		sqlOpen = func(driverName, dataSourceName string) (*sql.DB, error) {
			return nil, errors.New("open error")
		}
		defer func() { sqlOpen = origSqlOpen }()

		gotDB, err := NewPostgres(conf)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "sql open: open error")
		assert.Nil(t, gotDB)
	})

	t.Run("ping error", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		// No need to defer db.Close() because NewPostgres should close it on ping error

		origSqlOpen := sqlOpen
		sqlOpen = func(driverName, dataSourceName string) (*sql.DB, error) {
			return db, nil
		}
		defer func() { sqlOpen = origSqlOpen }()

		mock.ExpectPing().WillReturnError(errors.New("ping failed"))

		gotDB, err := NewPostgres(conf)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "db ping: ping failed")
		assert.Nil(t, gotDB)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid DSN", func(t *testing.T) {
		invalidConf := config.DatabaseConfig{} // missing host etc
		gotDB, err := NewPostgres(invalidConf)
		assert.Error(t, err)
		assert.Nil(t, gotDB)
	})
}

func TestBuildSQLiteDSN(t *testing.T) {
	dsn, err := BuildSQLiteDSN("/var/lib/docstore/documents.db")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dsn, "file:///var/lib/docstore/documents.db?"))
	assert.Contains(t, dsn, "journal_mode%28WAL%29")
	assert.Contains(t, dsn, "busy_timeout%285000%29")

	_, err = BuildSQLiteDSN("")
	assert.Error(t, err)
}

func TestNewSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "documents.db")

	db, err := NewSQLite(path)
	require.NoError(t, err)
	defer db.Close()

	var mode string
	require.NoError(t, db.QueryRowContext(context.Background(), "PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", strings.ToLower(mode))
	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
}
