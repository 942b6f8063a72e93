package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/logger"
)

// DefaultMaxDeposit 單筆存款上限
var DefaultMaxDeposit = decimal.NewFromInt(100000)

// DefaultOperationTimeout 單一操作等待儲存層的上限
const DefaultOperationTimeout = 5 * time.Second

// EngineOptions 帳務引擎設定
type EngineOptions struct {
	MaxDeposit       decimal.Decimal
	OperationTimeout time.Duration
}

// DefaultEngineOptions 回傳預設設定
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		MaxDeposit:       DefaultMaxDeposit,
		OperationTimeout: DefaultOperationTimeout,
	}
}

// CoreUseCase 是核心業務邏輯層，唯一可以異動餘額與交易紀錄的元件
type CoreUseCase struct {
	ledger Ledger
	pins   PinVerifier
	opts   EngineOptions
}

func NewCoreUseCase(ledger Ledger, pins PinVerifier, opts EngineOptions) *CoreUseCase {
	if !opts.MaxDeposit.IsPositive() {
		opts.MaxDeposit = DefaultMaxDeposit
	}
	return &CoreUseCase{
		ledger: ledger,
		pins:   pins,
		opts:   opts,
	}
}

// DepositRequest 存款請求
type DepositRequest struct {
	AccountNumber string
	Amount        string
	// RefID 冪等鍵，uuid.Nil 表示不做重複檢查
	RefID uuid.UUID
}

// TransferRequest 轉帳請求
type TransferRequest struct {
	AccountNumber    string
	RecipientAccount string
	Amount           string
	Pin              string
	RefID            uuid.UUID
}

// OpenAccountRequest 開戶請求
type OpenAccountRequest struct {
	AccountNumber string
	HolderName    string
	Pin           string
}

// Deposit 存款
//
// 參數:
//
//	ctx: 上下文
//	req: 存款請求
//
// 回傳:
//
//	domain.Receipt: 交易紀錄與存款後餘額
//	error: ErrInvalidAmount / ErrLimitExceeded / ErrAccountNotFound / ErrStoreUnavailable
func (c *CoreUseCase) Deposit(ctx context.Context, req DepositRequest) (domain.Receipt, error) {
	account := strings.TrimSpace(req.AccountNumber)
	if account == "" {
		return domain.Receipt{}, domain.ErrMissingFields
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		return domain.Receipt{}, err
	}
	if amount.GreaterThan(c.opts.MaxDeposit) {
		return domain.Receipt{}, domain.ErrLimitExceeded
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	tran := domain.NewDeposit(req.RefID, account, amount)
	receipt, err := c.post(ctx, tran)
	if err != nil {
		return domain.Receipt{}, err
	}
	logger.Info("deposit committed", receiptFields(receipt))
	return receipt, nil
}

// Transfer 轉帳
// 驗證順序：欄位 -> 金額 -> 自轉 -> 收款帳戶 -> 交易密碼 -> 餘額 (在儲存層鎖內檢查)
//
// 參數:
//
//	ctx: 上下文
//	req: 轉帳請求
//
// 回傳:
//
//	domain.Receipt: 交易紀錄與轉出帳戶的餘額
//	error: 任何驗證失敗都不會留下異動
func (c *CoreUseCase) Transfer(ctx context.Context, req TransferRequest) (domain.Receipt, error) {
	sender := strings.TrimSpace(req.AccountNumber)
	recipient := strings.TrimSpace(req.RecipientAccount)
	if sender == "" || recipient == "" || strings.TrimSpace(req.Amount) == "" || req.Pin == "" {
		return domain.Receipt{}, domain.ErrMissingFields
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		return domain.Receipt{}, err
	}
	if recipient == sender {
		return domain.Receipt{}, domain.ErrSelfTransfer
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	from, err := c.ledger.GetAccount(ctx, sender)
	if err != nil {
		return domain.Receipt{}, storeErr(err)
	}
	if _, err := c.ledger.GetAccount(ctx, recipient); err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return domain.Receipt{}, domain.ErrRecipientNotFound
		}
		return domain.Receipt{}, storeErr(err)
	}
	if err := c.pins.Verify(from.PinHash, req.Pin); err != nil {
		logger.Warn("transfer rejected", logger.Fields{
			"accountNumber": sender,
			"reason":        domain.CodeOf(err),
		})
		return domain.Receipt{}, err
	}

	tran := domain.NewTransfer(req.RefID, sender, recipient, amount)
	receipt, err := c.post(ctx, tran)
	if err != nil {
		return domain.Receipt{}, err
	}
	logger.Info("transfer committed", receiptFields(receipt))
	return receipt, nil
}

// OpenAccount 開戶，餘額從 0 開始，交易密碼以雜湊保存
func (c *CoreUseCase) OpenAccount(ctx context.Context, req OpenAccountRequest) (*domain.Account, error) {
	number, err := domain.NormalizeAccountNumber(req.AccountNumber)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidatePin(req.Pin); err != nil {
		return nil, err
	}
	hash, err := c.pins.Hash(req.Pin)
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	account := domain.NewAccount(number, strings.TrimSpace(req.HolderName), hash)
	if err := c.ledger.CreateAccount(ctx, account); err != nil {
		return nil, storeErr(err)
	}
	logger.Info("account opened", logger.Fields{"accountNumber": number})
	return account, nil
}

// CloseAccount 刪除帳戶，並一併清除其所有交易紀錄
func (c *CoreUseCase) CloseAccount(ctx context.Context, accountNumber string) error {
	number := strings.TrimSpace(accountNumber)
	if number == "" {
		return domain.ErrMissingFields
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.ledger.DeleteAccount(ctx, number); err != nil {
		return storeErr(err)
	}
	logger.Info("account closed", logger.Fields{"accountNumber": number})
	return nil
}

// Authorize 確認 token 仍屬於目前這個帳戶
//
// 帳號關閉後可能被重新開立；簽發時間早於開戶時間 (以秒為單位) 的 token 一律拒絕
//
// 回傳:
//
//	error: ErrAccountNotFound / ErrStaleCredential / ErrStoreUnavailable
func (c *CoreUseCase) Authorize(ctx context.Context, accountNumber string, issuedAt time.Time) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	account, err := c.ledger.GetAccount(ctx, accountNumber)
	if err != nil {
		return storeErr(err)
	}
	if issuedAt.Before(account.CreatedAt.Truncate(time.Second)) {
		return domain.ErrStaleCredential
	}
	return nil
}

// LookupRecipient 查詢收款帳戶的戶名，供轉帳前確認
func (c *CoreUseCase) LookupRecipient(ctx context.Context, accountNumber string) (string, error) {
	number := strings.TrimSpace(accountNumber)
	if number == "" {
		return "", domain.ErrMissingFields
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	account, err := c.ledger.GetAccount(ctx, number)
	if err != nil {
		return "", storeErr(err)
	}
	return account.HolderName, nil
}

// post 送出交易並處理儲存層錯誤
func (c *CoreUseCase) post(ctx context.Context, tran *domain.Transaction) (domain.Receipt, error) {
	receipt, err := c.ledger.PostTransaction(ctx, tran)
	if err == nil {
		return receipt, nil
	}
	err = storeErr(err)
	fields := logger.Fields{
		"type":             tran.Type,
		"accountNumber":    tran.AccountNumber,
		"recipientAccount": tran.RecipientAccount,
		"amount":           domain.FormatAmount(tran.Amount),
		"refId":            tran.RefID.String(),
		"code":             domain.CodeOf(err),
	}
	switch {
	case errors.Is(err, domain.ErrConsistencyViolation):
		logger.Error("ledger consistency violation, manual reconciliation required", err, fields)
	case domain.IsRetryable(err):
		logger.Error("ledger store unavailable", err, fields)
	default:
		logger.Warn("transaction rejected", fields)
	}
	return domain.Receipt{}, err
}

func (c *CoreUseCase) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.OperationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.opts.OperationTimeout)
}

// storeErr 儲存層的非帳務錯誤一律視為暫時性錯誤
func storeErr(err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}

func receiptFields(r domain.Receipt) logger.Fields {
	return logger.Fields{
		"id":               r.Transaction.ID,
		"type":             r.Transaction.Type,
		"accountNumber":    r.Transaction.AccountNumber,
		"recipientAccount": r.Transaction.RecipientAccount,
		"amount":           domain.FormatAmount(r.Transaction.Amount),
		"balance":          domain.FormatAmount(r.Balance),
		"replayed":         r.Replayed,
	}
}
