package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"

	memory_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/mysql"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/internal/auth"
	"github.com/JoeShih716/go-bank-ledger/internal/config"
	"github.com/JoeShih716/go-bank-ledger/internal/logger"
	"github.com/JoeShih716/go-bank-ledger/pkg/mysql"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

// app 組裝好的帳務服務元件
type app struct {
	cfg     *config.Config
	core    *usecase.CoreUseCase
	mysql   *mysql_adapter.MySQLLedger
	closers []func() error
}

// newApp 依設定建立儲存層與 CoreUseCase
func newApp(cfg *config.Config) (*app, error) {
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))

	a := &app{cfg: cfg}
	ledger, err := a.openLedger()
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	maxDeposit, err := cfg.MaxDeposit()
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.core = usecase.NewCoreUseCase(ledger, usecase.NewBcryptPins(cfg.Auth.BcryptCost), usecase.EngineOptions{
		MaxDeposit:       maxDeposit,
		OperationTimeout: cfg.Engine.OperationTimeout,
	})
	return a, nil
}

func (a *app) openLedger() (usecase.Ledger, error) {
	switch a.cfg.Store.Backend {
	case config.StoreMySQL:
		client, err := mysql.NewClient(a.cfg.MySQL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		logger.Info("connected to mysql", logger.Fields{"host": a.cfg.MySQL.Host, "dbname": a.cfg.MySQL.DBName})
		a.mysql = mysql_adapter.NewMySQLLedger(client)
		return a.mysql, nil
	case config.StoreMemory:
		node, err := snowflake.NewNode(a.cfg.Store.SnowflakeNode)
		if err != nil {
			return nil, fmt.Errorf("init snowflake node: %w", err)
		}
		walFile, err := wal.NewWAL(a.cfg.Store.WALPath)
		if err != nil {
			return nil, fmt.Errorf("init wal: %w", err)
		}
		a.closers = append(a.closers, walFile.Close)
		ledger, err := memory_adapter.NewMutexLedger(walFile, node)
		if err != nil {
			return nil, fmt.Errorf("recover ledger from wal: %w", err)
		}
		logger.Info("memory ledger recovered", logger.Fields{"walPath": a.cfg.Store.WALPath})
		return ledger, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", a.cfg.Store.Backend)
	}
}

// issuer 只有需要簽發 / 驗證 token 的指令才建立
func (a *app) issuer() (*auth.Issuer, error) {
	issuer, err := auth.NewIssuer(a.cfg.Auth.JWTSecret, a.cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("auth.jwt_secret (or LEDGER_JWT_SECRET): %w", err)
	}
	return issuer, nil
}

// migrate 只有 MySQL 需要建立資料表
func (a *app) migrate(ctx context.Context) error {
	if a.mysql == nil {
		return errors.New("migrate requires store.backend: mysql")
	}
	return a.mysql.Migrate(ctx)
}

// Close 依建立的相反順序釋放資源
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
