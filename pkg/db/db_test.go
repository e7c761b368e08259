package db

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ledgersync/pkg/config"
)

func TestDialect(t *testing.T) {
	cfg := &config.Config{}

	cfg.Database.Type = "sqlite"
	cfg.Database.Path = "file::memory:"
	d, err := Dialect(cfg)
	require.NoError(t, err)
	require.Equal(t, "sqlite", d.Name())

	cfg.Database.Type = "postgres"
	d, err = Dialect(cfg)
	require.NoError(t, err)
	require.Equal(t, "postgres", d.Name())

	cfg.Database.Type = "mysql"
	d, err = Dialect(cfg)
	require.NoError(t, err)
	require.Equal(t, "mysql", d.Name())

	cfg.Database.Type = "oracle"
	_, err = Dialect(cfg)
	require.Error(t, err)
}

func TestExtractDBNameFromDSN(t *testing.T) {
	require.Equal(t, "ledger", extractDBNameFromDSN("host=db user=u password=p dbname=ledger port=5432 sslmode=disable"))
	require.Equal(t, "ledger", extractDBNameFromDSN("u:p@tcp(db:3306)/ledger?charset=utf8mb4"))
	require.Equal(t, "unknown", extractDBNameFromDSN("host=db"))
}
