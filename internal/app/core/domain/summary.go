package domain

import "github.com/shopspring/decimal"

// RecentActivityLimit 摘要中顯示的最近交易筆數
const RecentActivityLimit = 5

var hundred = decimal.NewFromInt(100)

// Totals 以發起帳戶統計的累計金額
type Totals struct {
	Deposited decimal.Decimal
	Withdrawn decimal.Decimal
}

// Add 累加一筆交易 (只計算 account 為發起方的交易)
func (t *Totals) Add(account string, tran *Transaction) {
	if tran.AccountNumber != account {
		return
	}
	switch {
	case tran.Type == TransactionTypeDeposit:
		t.Deposited = t.Deposited.Add(tran.Amount)
	case tran.Type.IsDebit():
		t.Withdrawn = t.Withdrawn.Add(tran.Amount.Abs())
	}
}

// Summary 帳戶餘額摘要
type Summary struct {
	AccountNumber  string
	Balance        decimal.Decimal
	Recent         []Transaction
	TotalDeposited decimal.Decimal
	TotalWithdrawn decimal.Decimal
	SpentPercent   decimal.Decimal
	SavedPercent   decimal.Decimal
}

// NewSummary 計算支出 / 儲蓄比例
// spent = round(100 * withdrawn / (deposited + withdrawn), 2)，分母為 0 時兩者皆為 0
func NewSummary(account *Account, recent []Transaction, totals Totals) Summary {
	s := Summary{
		AccountNumber:  account.Number,
		Balance:        account.Balance,
		Recent:         recent,
		TotalDeposited: totals.Deposited,
		TotalWithdrawn: totals.Withdrawn,
		SpentPercent:   decimal.Zero,
		SavedPercent:   decimal.Zero,
	}
	total := totals.Deposited.Add(totals.Withdrawn)
	if total.IsPositive() {
		s.SpentPercent = totals.Withdrawn.Mul(hundred).Div(total).Round(2)
		s.SavedPercent = hundred.Sub(s.SpentPercent)
	}
	return s
}
