package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType 交易類型，直接以字串存進資料庫
type TransactionType string

const (
	// 存款
	TransactionTypeDeposit TransactionType = "deposit"
	// 轉帳
	TransactionTypeTransfer TransactionType = "transfer"
	// 提款 (保留，目前沒有流程會產生)
	TransactionTypeWithdrawal TransactionType = "withdrawal"
)

// IsDebit 是否為扣款類交易 (計入支出)
func (t TransactionType) IsDebit() bool {
	return t == TransactionTypeTransfer || t == TransactionTypeWithdrawal
}

// Transaction 交易紀錄，寫入後不可修改
type Transaction struct {
	// ID: 由儲存層在提交時分配，單調遞增，用於排序
	ID int64
	// RefID: 外部冪等鍵 (可為 uuid.Nil)
	RefID uuid.UUID
	// AccountNumber: 發起 (被扣款) 的帳戶；存款時為存入帳戶
	AccountNumber string
	// RecipientAccount: 收款帳戶，存款時為空字串 (資料庫為 NULL)
	RecipientAccount string
	Amount           decimal.Decimal
	Type             TransactionType
	CreatedAt        time.Time
}

// NewDeposit 建立存款交易
func NewDeposit(refID uuid.UUID, account string, amount decimal.Decimal) *Transaction {
	return &Transaction{
		RefID:         refID,
		AccountNumber: account,
		Amount:        amount,
		Type:          TransactionTypeDeposit,
	}
}

// NewTransfer 建立轉帳交易
func NewTransfer(refID uuid.UUID, from, to string, amount decimal.Decimal) *Transaction {
	return &Transaction{
		RefID:            refID,
		AccountNumber:    from,
		RecipientAccount: to,
		Amount:           amount,
		Type:             TransactionTypeTransfer,
	}
}

// GetLockIDs 回傳需要鎖定的帳號，依帳號遞增排序以避免死鎖
func (t *Transaction) GetLockIDs() []string {
	ids := make([]string, 0, 2)
	switch t.Type {
	case TransactionTypeTransfer:
		if t.AccountNumber < t.RecipientAccount {
			ids = append(ids, t.AccountNumber, t.RecipientAccount)
		} else {
			ids = append(ids, t.RecipientAccount, t.AccountNumber)
		}
	default:
		ids = append(ids, t.AccountNumber)
	}
	return ids
}

// Involves 帳戶是否為這筆交易的任一方
func (t *Transaction) Involves(account string) bool {
	return t.AccountNumber == account || (t.RecipientAccount != "" && t.RecipientAccount == account)
}

// SameRequest 比較兩筆交易的請求內容 (不含 ID / 時間)，用於冪等檢查
func (t *Transaction) SameRequest(other *Transaction) bool {
	return t.Type == other.Type &&
		t.AccountNumber == other.AccountNumber &&
		t.RecipientAccount == other.RecipientAccount &&
		t.Amount.Equal(other.Amount)
}

// Receipt 交易提交後的結果
// Balance 為發起帳戶在提交當下的餘額
type Receipt struct {
	Transaction Transaction
	Balance     decimal.Decimal
	// Replayed: 相同 RefID 已處理過，本次沒有重複入帳
	Replayed bool
}
