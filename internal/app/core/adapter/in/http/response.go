package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/logger"
)

type errorBody struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type transactionJSON struct {
	ID               int64     `json:"id"`
	RefID            string    `json:"ref_id,omitempty"`
	Type             string    `json:"type"`
	AccountNumber    string    `json:"account_number"`
	RecipientAccount string    `json:"recipient_account,omitempty"`
	Amount           string    `json:"amount"`
	CreatedAt        time.Time `json:"created_at"`
}

func toTransactionJSON(t domain.Transaction) transactionJSON {
	out := transactionJSON{
		ID:               t.ID,
		Type:             string(t.Type),
		AccountNumber:    t.AccountNumber,
		RecipientAccount: t.RecipientAccount,
		Amount:           domain.FormatAmount(t.Amount),
		CreatedAt:        t.CreatedAt,
	}
	if t.RefID != uuid.Nil {
		out.RefID = t.RefID.String()
	}
	return out
}

// fail 帳務錯誤轉成 {"success": false, "code", "message"}
func fail(c *fiber.Ctx, err error) error {
	code := domain.CodeOf(err)
	status := statusOf(code)
	if status >= fiber.StatusInternalServerError {
		logger.Error("http request failed", err, logger.Fields{
			"method": c.Method(),
			"path":   c.Path(),
			"code":   code,
		})
	}
	return c.Status(status).JSON(errorBody{Code: string(code), Message: domain.MessageOf(err)})
}

func statusOf(code domain.Code) int {
	switch code {
	case domain.CodeInvalidAmount, domain.CodeMissingFields, domain.CodeSelfTransfer,
		domain.CodeInvalidAccount, domain.CodeInvalidPinFormat, domain.CodeLimitExceeded:
		return fiber.StatusBadRequest
	case domain.CodeInsufficientFunds:
		return fiber.StatusUnprocessableEntity
	case domain.CodeRecipientNotFound, domain.CodeAccountNotFound:
		return fiber.StatusNotFound
	case domain.CodeInvalidPin:
		return fiber.StatusForbidden
	case domain.CodeAccountExists, domain.CodeDuplicateReference:
		return fiber.StatusConflict
	case domain.CodeStoreUnavailable:
		return fiber.StatusServiceUnavailable
	case domain.CodeStaleCredential:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

// errorHandler fiber 自身的錯誤 (404、body 過大等) 也回傳相同格式
func errorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}
	if status >= fiber.StatusInternalServerError {
		logger.Error("http handler error", err, logger.Fields{"method": c.Method(), "path": c.Path()})
		return c.Status(status).JSON(errorBody{Code: string(domain.CodeInternal), Message: "internal error"})
	}
	return c.Status(status).JSON(errorBody{Code: "HTTP_ERROR", Message: err.Error()})
}
