package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("CATALOG_DATABASE_URL", "postgres://sync@localhost/erp")
	t.Setenv("ODOO_URL", "https://erp.example.com")
	t.Setenv("ODOO_DB", "prod")
	t.Setenv("ODOO_USERNAME", "sync")
	t.Setenv("ODOO_PASSWORD", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cfg.OdooTimeout)
	assert.Equal(t, "mappings.yaml", cfg.MappingsFile)
	assert.Equal(t, "reports", cfg.ReportDir)
	assert.Equal(t, "none", cfg.ReportCompression)
	assert.Equal(t, "WH/Existencias", cfg.StockLocation)
	assert.Equal(t, int64(1), cfg.SellerCompanyID)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Development())
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ODOO_TIMEOUT", "15s")
	t.Setenv("REPORT_COMPRESSION", "ZSTD")
	t.Setenv("SELLER_COMPANY_ID", "3")
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.OdooTimeout)
	assert.Equal(t, "zstd", cfg.ReportCompression)
	assert.Equal(t, int64(3), cfg.SellerCompanyID)
	assert.True(t, cfg.Development())
}

func TestLoad_EnvFile(t *testing.T) {
	for _, k := range []string{"CATALOG_DATABASE_URL", "ODOO_URL", "ODOO_DB", "ODOO_USERNAME", "ODOO_PASSWORD"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte(
		"CATALOG_DATABASE_URL=postgres://x@db/erp\n"+
			"ODOO_URL=http://odoo:8069\n"+
			"ODOO_DB=test\nODOO_USERNAME=u\nODOO_PASSWORD=p\n"), 0o600))
	t.Cleanup(func() {
		for _, k := range []string{"CATALOG_DATABASE_URL", "ODOO_URL", "ODOO_DB", "ODOO_USERNAME", "ODOO_PASSWORD"} {
			_ = os.Unsetenv(k)
		}
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://odoo:8069", cfg.OdooURL)
	assert.Equal(t, "test", cfg.OdooDB)
}

func TestLoad_NamedEnvFileMustExist(t *testing.T) {
	setRequired(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load env file")

	// Without a named file a missing .env is not an error.
	t.Chdir(t.TempDir())
	_, err = Load()
	require.NoError(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	setRequired(t)
	t.Setenv("ODOO_URL", "not a url")
	t.Setenv("REPORT_COMPRESSION", "gzip")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ODOO_URL")
	assert.Contains(t, err.Error(), "REPORT_COMPRESSION")
}

func TestLoad_BadNumbers(t *testing.T) {
	setRequired(t)
	t.Setenv("ODOO_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ODOO_TIMEOUT")
}
