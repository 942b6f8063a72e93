package usecase

import (
	"context"
	"strings"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// Summarize 帳戶摘要：餘額、最近 5 筆、存款 / 支出總額與比例
// 唯讀，不保證看到尚未提交的交易
func (c *CoreUseCase) Summarize(ctx context.Context, accountNumber string) (domain.Summary, error) {
	number := strings.TrimSpace(accountNumber)
	if number == "" {
		return domain.Summary{}, domain.ErrMissingFields
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	account, err := c.ledger.GetAccount(ctx, number)
	if err != nil {
		return domain.Summary{}, storeErr(err)
	}
	recent, err := c.ledger.ListTransactions(ctx, number, domain.RecentActivityLimit)
	if err != nil {
		return domain.Summary{}, storeErr(err)
	}
	totals, err := c.ledger.SumTransactions(ctx, number)
	if err != nil {
		return domain.Summary{}, storeErr(err)
	}
	return domain.NewSummary(account, recent, totals), nil
}

// History 交易紀錄，由新到舊；limit <= 0 表示全部
func (c *CoreUseCase) History(ctx context.Context, accountNumber string, limit int) ([]domain.Transaction, error) {
	number := strings.TrimSpace(accountNumber)
	if number == "" {
		return nil, domain.ErrMissingFields
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if _, err := c.ledger.GetAccount(ctx, number); err != nil {
		return nil, storeErr(err)
	}
	trans, err := c.ledger.ListTransactions(ctx, number, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	return trans, nil
}
