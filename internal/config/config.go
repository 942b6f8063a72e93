package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/pkg/mysql"
)

// DefaultPath 預設設定檔位置
const DefaultPath = "config/config.yaml"

// 儲存層選項
const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

// Config config.yaml 的頂層結構
type Config struct {
	Store  StoreConfig  `yaml:"store"`
	MySQL  mysql.Config `yaml:"mysql"`
	Server ServerConfig `yaml:"server"`
	Auth   AuthConfig   `yaml:"auth"`
	Engine EngineConfig `yaml:"engine"`
	Log    LogConfig    `yaml:"log"`
}

// StoreConfig 帳本儲存層
type StoreConfig struct {
	// Backend: "mysql" | "memory"
	Backend string `yaml:"backend"`
	// WALPath memory 模式的 Write-Ahead Log 檔案
	WALPath string `yaml:"wal_path"`
	// SnowflakeNode memory 模式交易 ID 產生器的節點編號 (0-1023)
	SnowflakeNode int64 `yaml:"snowflake_node"`
}

// ServerConfig 監聽位址，空字串表示不啟動
type ServerConfig struct {
	GRPCAddr string `yaml:"grpc_addr"`
	HTTPAddr string `yaml:"http_addr"`
}

// AuthConfig 身分 token 與交易密碼雜湊
type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
	BcryptCost int           `yaml:"bcrypt_cost"`
}

// EngineConfig 帳務引擎限制
type EngineConfig struct {
	MaxDeposit       string        `yaml:"max_deposit"`
	OperationTimeout time.Duration `yaml:"operation_timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load 讀取設定檔，補上預設值並套用環境變數
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyEnv()
	cfg.MySQL.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save 將設定寫成 YAML
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default 本機開發用的預設值
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:       StoreMySQL,
			WALPath:       "wal.log",
			SnowflakeNode: 1,
		},
		MySQL: mysql.Config{
			Host:   "127.0.0.1",
			Port:   3306,
			User:   "root",
			DBName: "bank_ledger",
		},
		Server: ServerConfig{
			GRPCAddr: ":50051",
			HTTPAddr: ":8080",
		},
		Auth: AuthConfig{
			TokenTTL:   24 * time.Hour,
			BcryptCost: 10,
		},
		Engine: EngineConfig{
			MaxDeposit:       "100000",
			OperationTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// applyEnv 機密資訊可以用環境變數覆蓋，不必寫進設定檔
func (c *Config) applyEnv() {
	if v := os.Getenv("LEDGER_MYSQL_PASSWORD"); v != "" {
		c.MySQL.Password = v
	}
	if v := os.Getenv("LEDGER_MYSQL_DSN"); v != "" {
		c.MySQL.DSNOverride = v
	}
	if v := os.Getenv("LEDGER_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
}

// Validate 檢查設定是否可用
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreMySQL, StoreMemory:
	default:
		return fmt.Errorf("invalid store.backend %q (want %q or %q)", c.Store.Backend, StoreMySQL, StoreMemory)
	}
	if c.Store.Backend == StoreMemory && c.Store.WALPath == "" {
		return fmt.Errorf("store.wal_path is required for the memory backend")
	}
	if c.Store.SnowflakeNode < 0 || c.Store.SnowflakeNode > 1023 {
		return fmt.Errorf("store.snowflake_node must be within 0-1023")
	}
	if _, err := c.MaxDeposit(); err != nil {
		return err
	}
	return nil
}

// MaxDeposit 解析單筆存款上限
func (c *Config) MaxDeposit() (decimal.Decimal, error) {
	d, err := domain.ParseAmount(c.Engine.MaxDeposit)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid engine.max_deposit %q", c.Engine.MaxDeposit)
	}
	return d, nil
}
