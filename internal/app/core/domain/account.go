package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const maxAccountNumberLen = 20

// Account 帳戶
// PinHash 為交易密碼的 bcrypt 雜湊，永遠不存明碼
type Account struct {
	Number     string
	HolderName string
	Balance    decimal.Decimal
	PinHash    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewAccount 建立新帳戶，餘額固定從 0 開始
func NewAccount(number, holderName, pinHash string) *Account {
	now := time.Now().UTC()
	return &Account{
		Number:     number,
		HolderName: holderName,
		Balance:    decimal.Zero,
		PinHash:    pinHash,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Deposit 存款
func (a *Account) Deposit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	a.Balance = a.Balance.Add(amount)
	return nil
}

// Withdraw 扣款，餘額不可為負
func (a *Account) Withdraw(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if a.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	a.Balance = a.Balance.Sub(amount)
	return nil
}

// NormalizeAccountNumber 去除空白並檢查帳號格式 (1-20 位數字)
func NormalizeAccountNumber(raw string) (string, error) {
	number := strings.TrimSpace(raw)
	if number == "" || len(number) > maxAccountNumberLen {
		return "", ErrInvalidAccount
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return "", ErrInvalidAccount
		}
	}
	return number, nil
}

// ValidatePin 交易密碼必須是 4-6 位數字
func ValidatePin(pin string) error {
	if len(pin) < 4 || len(pin) > 6 {
		return ErrInvalidPinFormat
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return ErrInvalidPinFormat
		}
	}
	return nil
}
