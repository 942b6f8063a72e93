package grpc

import (
	"time"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// 以下為 ledger.v1.LedgerService 的訊息，經 JSON codec 傳輸
// 金額一律以字串表示，避免浮點誤差

type DepositRequest struct {
	Amount string `json:"amount"`
	RefID  string `json:"ref_id,omitempty"`
}

type TransferRequest struct {
	RecipientAccount string `json:"recipient_account"`
	Amount           string `json:"amount"`
	Pin              string `json:"pin"`
	RefID            string `json:"ref_id,omitempty"`
}

type ReceiptResponse struct {
	Transaction TransactionMessage `json:"transaction"`
	Balance     string             `json:"balance"`
	Replayed    bool               `json:"replayed,omitempty"`
}

type TransactionMessage struct {
	ID               int64     `json:"id"`
	RefID            string    `json:"ref_id,omitempty"`
	Type             string    `json:"type"`
	AccountNumber    string    `json:"account_number"`
	RecipientAccount string    `json:"recipient_account,omitempty"`
	Amount           string    `json:"amount"`
	CreatedAt        time.Time `json:"created_at"`
}

type SummarizeRequest struct{}

type SummaryResponse struct {
	AccountNumber  string               `json:"account_number"`
	Balance        string               `json:"balance"`
	Recent         []TransactionMessage `json:"recent"`
	TotalDeposited string               `json:"total_deposited"`
	TotalWithdrawn string               `json:"total_withdrawn"`
	SpentPercent   string               `json:"spent_percent"`
	SavedPercent   string               `json:"saved_percent"`
}

type HistoryRequest struct {
	// Limit <= 0 表示全部
	Limit int `json:"limit,omitempty"`
}

type HistoryResponse struct {
	Transactions []TransactionMessage `json:"transactions"`
}

type LookupRecipientRequest struct {
	AccountNumber string `json:"account_number"`
}

type LookupRecipientResponse struct {
	AccountNumber string `json:"account_number"`
	HolderName    string `json:"holder_name"`
}

type CloseAccountRequest struct{}

type CloseAccountResponse struct {
	Success bool `json:"success"`
}

func toReceiptResponse(r domain.Receipt) *ReceiptResponse {
	return &ReceiptResponse{
		Transaction: toTransactionMessage(r.Transaction),
		Balance:     domain.FormatAmount(r.Balance),
		Replayed:    r.Replayed,
	}
}

func toTransactionMessage(t domain.Transaction) TransactionMessage {
	msg := TransactionMessage{
		ID:               t.ID,
		Type:             string(t.Type),
		AccountNumber:    t.AccountNumber,
		RecipientAccount: t.RecipientAccount,
		Amount:           domain.FormatAmount(t.Amount),
		CreatedAt:        t.CreatedAt,
	}
	if t.RefID != uuid.Nil {
		msg.RefID = t.RefID.String()
	}
	return msg
}

func toTransactionMessages(trans []domain.Transaction) []TransactionMessage {
	out := make([]TransactionMessage, 0, len(trans))
	for _, t := range trans {
		out = append(out, toTransactionMessage(t))
	}
	return out
}

func toSummaryResponse(s domain.Summary) *SummaryResponse {
	return &SummaryResponse{
		AccountNumber:  s.AccountNumber,
		Balance:        domain.FormatAmount(s.Balance),
		Recent:         toTransactionMessages(s.Recent),
		TotalDeposited: domain.FormatAmount(s.TotalDeposited),
		TotalWithdrawn: domain.FormatAmount(s.TotalWithdrawn),
		SpentPercent:   domain.FormatAmount(s.SpentPercent),
		SavedPercent:   domain.FormatAmount(s.SavedPercent),
	}
}
