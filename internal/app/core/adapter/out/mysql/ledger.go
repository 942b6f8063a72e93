package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/internal/logger"
	"github.com/JoeShih716/go-bank-ledger/pkg/mysql"
)

// sqlAccount 對應資料庫的 accounts 表
type sqlAccount struct {
	AccountNumber      string          `gorm:"column:account_number;primaryKey;size:20"`
	HolderName         string          `gorm:"column:holder_name;size:100"`
	Balance            decimal.Decimal `gorm:"column:balance;type:decimal(20,2);not null;default:0"`
	TransactionPinHash string          `gorm:"column:transaction_pin_hash;size:100;not null"`
	CreatedAt          time.Time       `gorm:"column:created_at;precision:6"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;precision:6"`
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

// sqlTransaction 對應資料庫的 transactions 表
// id 為 AUTO_INCREMENT，在持有帳戶列鎖時寫入，因此同一帳戶的 id 順序即提交順序
type sqlTransaction struct {
	ID               int64           `gorm:"column:id;primaryKey;autoIncrement"`
	RefID            *string         `gorm:"column:ref_id;type:char(36);uniqueIndex"`
	AccountNumber    string          `gorm:"column:account_number;size:20;not null;index"`
	RecipientAccount *string         `gorm:"column:recipient_account;size:20;index"`
	Amount           decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null"`
	Type             string          `gorm:"column:type;size:16;not null"`
	CreatedAt        time.Time       `gorm:"column:created_at;precision:6"`
}

func (*sqlTransaction) TableName() string {
	return "transactions"
}

// MySQLLedger 以 MySQL (InnoDB) 實作 usecase.Ledger
// 每筆交易一個資料庫 Transaction：依帳號排序 SELECT ... FOR UPDATE，條件式扣款，寫入紀錄後提交
type MySQLLedger struct {
	client *mysql.Client
}

func NewMySQLLedger(client *mysql.Client) *MySQLLedger {
	return &MySQLLedger{
		client: client,
	}
}

// Migrate 建立 / 更新資料表
func (ledger *MySQLLedger) Migrate(ctx context.Context) error {
	if err := ledger.client.DB().WithContext(ctx).AutoMigrate(&sqlAccount{}, &sqlTransaction{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// PostTransaction 在單一資料庫 Transaction 內完成扣款 / 入帳 / 寫入紀錄
func (ledger *MySQLLedger) PostTransaction(ctx context.Context, tran *domain.Transaction) (domain.Receipt, error) {
	if tran.Type == domain.TransactionTypeTransfer && tran.AccountNumber == tran.RecipientAccount {
		return domain.Receipt{}, domain.ErrSelfTransfer
	}

	tx := ledger.client.DB().WithContext(ctx).Begin()
	if tx.Error != nil {
		return domain.Receipt{}, unavailable(tx.Error)
	}

	receipt, err := postInTx(tx, tran)
	if err != nil {
		return domain.Receipt{}, rollback(tx, err, tranFields(tran))
	}
	if receipt.Replayed {
		// 沒有任何寫入，直接結束
		return receipt, rollback(tx, nil, tranFields(tran))
	}
	if err := tx.Commit().Error; err != nil {
		logger.Error("ledger commit failed", err, tranFields(tran))
		return domain.Receipt{}, unavailable(err)
	}
	*tran = receipt.Transaction
	return receipt, nil
}

func postInTx(tx *gorm.DB, tran *domain.Transaction) (domain.Receipt, error) {
	// 1. 依帳號排序逐筆取得列鎖 (悲觀鎖)，避免兩筆相反方向的轉帳死鎖
	locked := make(map[string]*sqlAccount, 2)
	for _, id := range tran.GetLockIDs() {
		var row sqlAccount
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("account_number = ?", id).
			Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return domain.Receipt{}, unavailable(err)
		}
		locked[id] = &row
	}

	// 2. 確保涉及的帳號都存在
	from, ok := locked[tran.AccountNumber]
	if !ok {
		return domain.Receipt{}, domain.ErrAccountNotFound
	}
	if tran.Type == domain.TransactionTypeTransfer {
		if _, ok := locked[tran.RecipientAccount]; !ok {
			return domain.Receipt{}, domain.ErrRecipientNotFound
		}
	}

	// 3. 冪等檢查，持有列鎖後才查，同一帳戶的重送會排隊
	if tran.RefID != uuid.Nil {
		prev, err := findByRef(tx, tran)
		if err != nil {
			return domain.Receipt{}, err
		}
		if prev != nil {
			return domain.Receipt{Transaction: *prev, Balance: from.Balance, Replayed: true}, nil
		}
	}

	// 4. 異動餘額，扣款使用條件式 UPDATE 並檢查影響筆數
	balance := from.Balance
	switch tran.Type {
	case domain.TransactionTypeDeposit:
		if err := credit(tx, tran.AccountNumber, tran.Amount); err != nil {
			return domain.Receipt{}, err
		}
		balance = balance.Add(tran.Amount)
	case domain.TransactionTypeTransfer:
		if from.Balance.LessThan(tran.Amount) {
			return domain.Receipt{}, domain.ErrInsufficientFunds
		}
		if err := debit(tx, tran.AccountNumber, tran.Amount); err != nil {
			return domain.Receipt{}, err
		}
		if err := credit(tx, tran.RecipientAccount, tran.Amount); err != nil {
			return domain.Receipt{}, err
		}
		balance = balance.Sub(tran.Amount)
	default:
		return domain.Receipt{}, fmt.Errorf("%w: unsupported transaction type %q", domain.ErrConsistencyViolation, tran.Type)
	}

	// 5. 建立交易紀錄
	row := toSQLTransaction(tran)
	row.CreatedAt = time.Now().UTC()
	if err := tx.Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.Receipt{}, domain.ErrDuplicateReference
		}
		return domain.Receipt{}, unavailable(err)
	}
	return domain.Receipt{Transaction: row.toDomain(), Balance: balance}, nil
}

// findByRef 相同 RefID 且內容相同時回傳原本的紀錄；內容不同為 ErrDuplicateReference
func findByRef(tx *gorm.DB, tran *domain.Transaction) (*domain.Transaction, error) {
	var prev sqlTransaction
	err := tx.Where("ref_id = ?", tran.RefID.String()).Take(&prev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable(err)
	}
	found := prev.toDomain()
	if !found.SameRequest(tran) {
		return nil, domain.ErrDuplicateReference
	}
	return &found, nil
}

func debit(tx *gorm.DB, accountNumber string, amount decimal.Decimal) error {
	res := tx.Model(&sqlAccount{}).
		Where("account_number = ? AND balance >= ?", accountNumber, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return unavailable(res.Error)
	}
	if res.RowsAffected != 1 {
		return domain.ErrInsufficientFunds
	}
	return nil
}

func credit(tx *gorm.DB, accountNumber string, amount decimal.Decimal) error {
	res := tx.Model(&sqlAccount{}).
		Where("account_number = ?", accountNumber).
		Update("balance", gorm.Expr("balance + ?", amount))
	if res.Error != nil {
		return unavailable(res.Error)
	}
	if res.RowsAffected != 1 {
		// 已持有列鎖，帳戶不可能消失
		return fmt.Errorf("%w: credit %s affected %d rows", domain.ErrConsistencyViolation, accountNumber, res.RowsAffected)
	}
	return nil
}

// GetAccount 取得帳戶
func (ledger *MySQLLedger) GetAccount(ctx context.Context, accountNumber string) (*domain.Account, error) {
	var row sqlAccount
	err := ledger.client.DB().WithContext(ctx).Where("account_number = ?", accountNumber).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return row.toDomain(), nil
}

// CreateAccount 建立帳戶
// 時間截到微秒，MySQL 進位不會讓 created_at 晚於實際開戶時間
func (ledger *MySQLLedger) CreateAccount(ctx context.Context, account *domain.Account) error {
	row := sqlAccount{
		AccountNumber:      account.Number,
		HolderName:         account.HolderName,
		Balance:            decimal.Zero,
		TransactionPinHash: account.PinHash,
		CreatedAt:          account.CreatedAt.Truncate(time.Microsecond),
		UpdatedAt:          account.UpdatedAt.Truncate(time.Microsecond),
	}
	err := ledger.client.DB().WithContext(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrAccountExists
	}
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// DeleteAccount 刪除帳戶，並在同一個 Transaction 內清除相關交易紀錄
func (ledger *MySQLLedger) DeleteAccount(ctx context.Context, accountNumber string) error {
	tx := ledger.client.DB().WithContext(ctx).Begin()
	if tx.Error != nil {
		return unavailable(tx.Error)
	}
	fields := logger.Fields{"op": "delete_account", "accountNumber": accountNumber}
	if err := deleteInTx(tx, accountNumber); err != nil {
		return rollback(tx, err, fields)
	}
	if err := tx.Commit().Error; err != nil {
		logger.Error("ledger commit failed", err, fields)
		return unavailable(err)
	}
	return nil
}

func deleteInTx(tx *gorm.DB, accountNumber string) error {
	var row sqlAccount
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account_number = ?", accountNumber).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrAccountNotFound
	}
	if err != nil {
		return unavailable(err)
	}
	if err := tx.Where("account_number = ? OR recipient_account = ?", accountNumber, accountNumber).
		Delete(&sqlTransaction{}).Error; err != nil {
		return unavailable(err)
	}
	if err := tx.Where("account_number = ?", accountNumber).Delete(&sqlAccount{}).Error; err != nil {
		return unavailable(err)
	}
	return nil
}

// ListTransactions 依 id 由新到舊列出帳戶 (任一方) 的交易
func (ledger *MySQLLedger) ListTransactions(ctx context.Context, accountNumber string, limit int) ([]domain.Transaction, error) {
	query := ledger.client.DB().WithContext(ctx).
		Where("account_number = ? OR recipient_account = ?", accountNumber, accountNumber).
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []sqlTransaction
	if err := query.Find(&rows).Error; err != nil {
		return nil, unavailable(err)
	}
	out := make([]domain.Transaction, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// SumTransactions 統計帳戶作為發起方的存款 / 支出總額
func (ledger *MySQLLedger) SumTransactions(ctx context.Context, accountNumber string) (domain.Totals, error) {
	var totals struct {
		Deposited decimal.Decimal
		Withdrawn decimal.Decimal
	}
	err := ledger.client.DB().WithContext(ctx).
		Model(&sqlTransaction{}).
		Select(
			"COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE 0 END), 0) AS deposited, "+
				"COALESCE(SUM(CASE WHEN type IN ? THEN amount ELSE 0 END), 0) AS withdrawn",
			string(domain.TransactionTypeDeposit),
			[]string{string(domain.TransactionTypeTransfer), string(domain.TransactionTypeWithdrawal)},
		).
		Where("account_number = ?", accountNumber).
		Scan(&totals).Error
	if err != nil {
		return domain.Totals{}, unavailable(err)
	}
	return domain.Totals{Deposited: totals.Deposited, Withdrawn: totals.Withdrawn}, nil
}

// rollback 明確回滾；回滾本身失敗代表資料狀態未知，回傳 ErrConsistencyViolation
func rollback(tx *gorm.DB, cause error, fields logger.Fields) error {
	return rollbackResult(tx.Rollback().Error, cause, fields)
}

func rollbackResult(rbErr, cause error, fields logger.Fields) error {
	// ctx 被取消時 database/sql 已自動回滾
	if rbErr == nil || errors.Is(rbErr, sql.ErrTxDone) {
		return cause
	}
	logger.Error("ledger rollback failed, manual reconciliation required", rbErr, withCause(fields, cause))
	if cause == nil {
		return fmt.Errorf("%w: rollback: %w", domain.ErrConsistencyViolation, rbErr)
	}
	return fmt.Errorf("%w: rollback after %v: %w", domain.ErrConsistencyViolation, cause, rbErr)
}

func withCause(fields logger.Fields, cause error) logger.Fields {
	out := logger.Fields{}
	for k, v := range fields {
		out[k] = v
	}
	if cause != nil {
		out["cause"] = cause.Error()
	}
	return out
}

func tranFields(tran *domain.Transaction) logger.Fields {
	return logger.Fields{
		"op":               "post_transaction",
		"type":             tran.Type,
		"refId":            tran.RefID.String(),
		"accountNumber":    tran.AccountNumber,
		"recipientAccount": tran.RecipientAccount,
		"amount":           domain.FormatAmount(tran.Amount),
	}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}

func toSQLTransaction(tran *domain.Transaction) sqlTransaction {
	row := sqlTransaction{
		AccountNumber: tran.AccountNumber,
		Amount:        tran.Amount,
		Type:          string(tran.Type),
	}
	if tran.RefID != uuid.Nil {
		ref := tran.RefID.String()
		row.RefID = &ref
	}
	if tran.RecipientAccount != "" {
		recipient := tran.RecipientAccount
		row.RecipientAccount = &recipient
	}
	return row
}

func (row *sqlTransaction) toDomain() domain.Transaction {
	tran := domain.Transaction{
		ID:            row.ID,
		AccountNumber: row.AccountNumber,
		Amount:        row.Amount,
		Type:          domain.TransactionType(row.Type),
		CreatedAt:     row.CreatedAt,
	}
	if row.RefID != nil {
		if ref, err := uuid.Parse(*row.RefID); err == nil {
			tran.RefID = ref
		}
	}
	if row.RecipientAccount != nil {
		tran.RecipientAccount = *row.RecipientAccount
	}
	return tran
}

func (row *sqlAccount) toDomain() *domain.Account {
	return &domain.Account{
		Number:     row.AccountNumber,
		HolderName: row.HolderName,
		Balance:    row.Balance,
		PinHash:    row.TransactionPinHash,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
}

var _ usecase.Ledger = (*MySQLLedger)(nil)
