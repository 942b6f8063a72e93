package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Store.Backend = StoreMemory
	cfg.Store.WALPath = "/tmp/ledger.wal"
	cfg.Auth.JWTSecret = "s3cret"
	cfg.Engine.OperationTimeout = 3 * time.Second

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, got.Store.Backend)
	assert.Equal(t, "/tmp/ledger.wal", got.Store.WALPath)
	assert.Equal(t, "s3cret", got.Auth.JWTSecret)
	assert.Equal(t, 3*time.Second, got.Engine.OperationTimeout)
	assert.Equal(t, 24*time.Hour, got.Auth.TokenTTL)
	assert.Equal(t, "bank_ledger", got.MySQL.DBName)
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, StoreMySQL, cfg.Store.Backend)
	assert.Equal(t, ":50051", cfg.Server.GRPCAddr)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, 5*time.Second, cfg.Engine.OperationTimeout)
	assert.Equal(t, "info", cfg.Log.Level)

	limit, err := cfg.MaxDeposit()
	require.NoError(t, err)
	assert.Equal(t, "100000", limit.String())
	require.NoError(t, cfg.Validate())
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "store:\n  backend: memory\nmysql:\n  host: db\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.Equal(t, "wal.log", cfg.Store.WALPath)
	assert.Equal(t, "db", cfg.MySQL.Host)
	assert.Equal(t, 3306, cfg.MySQL.Port)
	assert.Equal(t, 100, cfg.MySQL.MaxOpenConns)
	assert.Equal(t, "100000", cfg.Engine.MaxDeposit)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LEDGER_MYSQL_PASSWORD", "from-env")
	t.Setenv("LEDGER_JWT_SECRET", "env-secret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, Save(path, Default()))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.MySQL.Password)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Store.Backend = "sqlite"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Engine.MaxDeposit = "-5"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Engine.MaxDeposit = "1e30000000"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Store.SnowflakeNode = 4096
	assert.Error(t, cfg.Validate())
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestYAMLFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, Save(path, Default()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "backend: mysql")
	assert.Contains(t, contents, "snowflake_node: 1")
	assert.Contains(t, contents, "operation_timeout: 5s")
}
