package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"textile-store/internal/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	dsn, err := BuildDSN(config.DatabaseConfig{
		Host:     "db",
		Port:     "5432",
		User:     "store",
		Password: "p@ss",
		Database: "textiles",
		SSLMode:  "disable",
		Schema:   "public",
	})
	require.NoError(t, err)
	assert.Equal(t, "postgres://store:p%40ss@db:5432/textiles?search_path=public&sslmode=disable", dsn)

	dsn, err = BuildDSN(config.DatabaseConfig{Host: "db", Port: "5432", User: "store", Database: "textiles"})
	require.NoError(t, err)
	assert.Equal(t, "postgres://store@db:5432/textiles", dsn)

	_, err = BuildDSN(config.DatabaseConfig{Host: "db"})
	assert.Error(t, err)
}

func TestNew_OpenFailure(t *testing.T) {
	orig := sqlOpen
	defer func() { sqlOpen = orig }()

	sqlOpen = func(driverName, dsn string) (*sql.DB, error) {
		return nil, errors.New("boom")
	}

	_, err := New(config.DatabaseConfig{Host: "db", Port: "5432", User: "u", Database: "d"})
	assert.ErrorContains(t, err, "boom")
}

func TestHealth(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	svc := Wrap(db)

	mock.ExpectPing()
	stats := svc.Health(context.Background())
	assert.Equal(t, "up", stats["status"])

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	stats = svc.Health(context.Background())
	assert.Equal(t, "down", stats["status"])
	assert.Contains(t, stats["error"], "connection refused")

	assert.NoError(t, mock.ExpectationsWereMet())
}
