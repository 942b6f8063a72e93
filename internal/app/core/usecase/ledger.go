package usecase

import (
	"context"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// Ledger 是帳務儲存層的介面 (Account Store + Transaction Log)
// 只有 CoreUseCase 會呼叫寫入方法
type Ledger interface {
	// PostTransaction 在單一原子單位內完成：鎖定帳戶 (依帳號排序)、檢查餘額、
	// 異動餘額、寫入交易紀錄。成功時回填 tran.ID / tran.CreatedAt。
	// 相同 RefID 的重送不會重複入帳。
	PostTransaction(ctx context.Context, tran *domain.Transaction) (domain.Receipt, error)
	// GetAccount 取得帳戶
	GetAccount(ctx context.Context, accountNumber string) (*domain.Account, error)
	// CreateAccount 建立帳戶
	CreateAccount(ctx context.Context, account *domain.Account) error
	// DeleteAccount 刪除帳戶並清除所有相關交易紀錄
	DeleteAccount(ctx context.Context, accountNumber string) error
	// ListTransactions 依 ID 由新到舊列出帳戶 (任一方) 的交易，limit <= 0 表示全部
	ListTransactions(ctx context.Context, accountNumber string, limit int) ([]domain.Transaction, error)
	// SumTransactions 統計帳戶作為發起方的存款 / 支出總額
	SumTransactions(ctx context.Context, accountNumber string) (domain.Totals, error)
}
