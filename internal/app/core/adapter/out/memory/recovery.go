package memory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

type walOp string

const (
	opCreate walOp = "create"
	opPost   walOp = "post"
	opDelete walOp = "delete"
)

// walRecord WAL 中的單筆紀錄
type walRecord struct {
	Op          walOp           `json:"op"`
	Account     *walAccount     `json:"account,omitempty"`
	Transaction *walTransaction `json:"transaction,omitempty"`
	Number      string          `json:"number,omitempty"`
}

type walAccount struct {
	Number     string    `json:"number"`
	HolderName string    `json:"holder_name"`
	PinHash    string    `json:"pin_hash"`
	CreatedAt  time.Time `json:"created_at"`
}

type walTransaction struct {
	ID               int64           `json:"id"`
	RefID            uuid.UUID       `json:"ref_id"`
	AccountNumber    string          `json:"account_number"`
	RecipientAccount string          `json:"recipient_account,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Type             string          `json:"type"`
	CreatedAt        time.Time       `json:"created_at"`
}

func toWALAccount(a *domain.Account) *walAccount {
	return &walAccount{
		Number:     a.Number,
		HolderName: a.HolderName,
		PinHash:    a.PinHash,
		CreatedAt:  a.CreatedAt,
	}
}

func toWALTransaction(t *domain.Transaction) *walTransaction {
	return &walTransaction{
		ID:               t.ID,
		RefID:            t.RefID,
		AccountNumber:    t.AccountNumber,
		RecipientAccount: t.RecipientAccount,
		Amount:           t.Amount,
		Type:             string(t.Type),
		CreatedAt:        t.CreatedAt,
	}
}

func (w *walTransaction) toDomain() domain.Transaction {
	return domain.Transaction{
		ID:               w.ID,
		RefID:            w.RefID,
		AccountNumber:    w.AccountNumber,
		RecipientAccount: w.RecipientAccount,
		Amount:           w.Amount,
		Type:             domain.TransactionType(w.Type),
		CreatedAt:        w.CreatedAt,
	}
}

// recoverFromWAL 從 WAL 檔案恢復帳本狀態
// 只有 NewMutexLedger 呼叫，無需 Lock (單執行緒)
//
// 回傳:
//
//	error: 恢復過程錯誤；重放結果違反不變量時為 ErrConsistencyViolation
func (m *MutexLedger) recoverFromWAL() error {
	seq := 0
	return m.journal.ReadAll(func(jsonRaw []byte) error {
		seq++
		var rec walRecord
		if err := json.Unmarshal(jsonRaw, &rec); err != nil {
			return fmt.Errorf("decode wal record %d: %w", seq, err)
		}
		if err := m.applyRecoverRecord(&rec); err != nil {
			return fmt.Errorf("%w: replay wal record %d (%s): %v", domain.ErrConsistencyViolation, seq, rec.Op, err)
		}
		return nil
	})
}

// applyRecoverRecord 恢復單筆紀錄至記憶體 (不寫入 WAL)
func (m *MutexLedger) applyRecoverRecord(rec *walRecord) error {
	switch rec.Op {
	case opCreate:
		if rec.Account == nil {
			return fmt.Errorf("missing account")
		}
		if _, ok := m.accounts[rec.Account.Number]; ok {
			return domain.ErrAccountExists
		}
		account := domain.Account{
			Number:     rec.Account.Number,
			HolderName: rec.Account.HolderName,
			Balance:    decimal.Zero,
			PinHash:    rec.Account.PinHash,
			CreatedAt:  rec.Account.CreatedAt,
			UpdatedAt:  rec.Account.CreatedAt,
		}
		m.accounts[account.Number] = newEntry(account)
	case opPost:
		if rec.Transaction == nil {
			return fmt.Errorf("missing transaction")
		}
		return m.applyRecoverTransaction(rec.Transaction.toDomain())
	case opDelete:
		if _, ok := m.accounts[rec.Number]; !ok {
			return domain.ErrAccountNotFound
		}
		delete(m.accounts, rec.Number)
		m.purge(rec.Number)
	default:
		return fmt.Errorf("unknown op %q", rec.Op)
	}
	return nil
}

func (m *MutexLedger) applyRecoverTransaction(tran domain.Transaction) error {
	from, ok := m.accounts[tran.AccountNumber]
	if !ok {
		return domain.ErrAccountNotFound
	}
	switch tran.Type {
	case domain.TransactionTypeDeposit:
		if err := from.account.Deposit(tran.Amount); err != nil {
			return err
		}
	case domain.TransactionTypeTransfer:
		to, ok := m.accounts[tran.RecipientAccount]
		if !ok {
			return domain.ErrRecipientNotFound
		}
		if err := from.account.Withdraw(tran.Amount); err != nil {
			return err
		}
		if err := to.account.Deposit(tran.Amount); err != nil {
			return err
		}
		to.account.UpdatedAt = tran.CreatedAt
	default:
		return fmt.Errorf("unsupported transaction type %q", tran.Type)
	}
	from.account.UpdatedAt = tran.CreatedAt
	if tran.ID > m.lastID {
		m.lastID = tran.ID
	}
	m.appendRecord(tran)
	return nil
}
