package mysql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults(t *testing.T) {
	cfg := Config{Host: "db", User: "root", DBName: "finance"}
	cfg.ApplyDefaults()

	assert.Equal(t, 3306, cfg.Port)
	assert.Equal(t, 100, cfg.MaxOpenConns)
	assert.Equal(t, 10, cfg.MaxIdleConns)
	assert.Equal(t, 30*time.Minute, cfg.ConnMaxLifetime)
	assert.Equal(t, 10, cfg.ConnectRetries)
}

func TestDSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 3307, User: "root", Password: "pw", DBName: "finance"}
	cfg.ApplyDefaults()

	assert.Equal(t,
		"root:pw@tcp(db:3307)/finance?charset=utf8mb4&parseTime=True&loc=UTC&timeout=5s&readTimeout=10s&writeTimeout=10s",
		cfg.DSN())

	cfg.DSNOverride = "u:p@tcp(other:3306)/x"
	assert.Equal(t, "u:p@tcp(other:3306)/x", cfg.DSN())
}
