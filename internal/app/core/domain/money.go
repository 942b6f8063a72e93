package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencyScale 金額精度：小數點後 2 位
const CurrencyScale int32 = 2

// MaxIntegerDigits 整數位數上限，對應 DECIMAL(20,2)
const MaxIntegerDigits = 18

// maxAmountLength 未正規化前的字串長度上限，避免解析超長輸入
const maxAmountLength = 64

// ParseAmount 解析使用者輸入的金額字串
//
// 參數:
//
//	raw: 金額字串，例如 "100.50"
//
// 回傳:
//
//	decimal.Decimal: 金額
//	error: ErrInvalidAmount (空字串、格式錯誤、<= 0、超過 2 位小數或超過 18 位整數)
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxAmountLength {
		return decimal.Zero, ErrInvalidAmount
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	// 指數形式 (例如 1e30000000) 在比較前先以位數擋下，之後的運算才不會展開成巨大整數
	if intDigits(amount) > MaxIntegerDigits || amount.Exponent() < -maxAmountLength {
		return decimal.Zero, ErrInvalidAmount
	}
	if !amount.Equal(amount.Truncate(CurrencyScale)) {
		return decimal.Zero, ErrInvalidAmount
	}
	return amount.Truncate(CurrencyScale), nil
}

// intDigits 回傳正數的整數位數，只看 coefficient 位數與 exponent，不做展開
func intDigits(d decimal.Decimal) int64 {
	digits := int64(len(d.Coefficient().String())) + int64(d.Exponent())
	if digits < 0 {
		return 0
	}
	return digits
}

// FormatAmount 固定兩位小數輸出
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(CurrencyScale)
}
