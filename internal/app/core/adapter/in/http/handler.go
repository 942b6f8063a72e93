package http

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/internal/auth"
)

const accountLocal = "account_number"

// Handler 以 fiber 提供帳務 HTTP API，身分來自 Bearer token
type Handler struct {
	core   *usecase.CoreUseCase
	issuer *auth.Issuer
}

func NewHandler(core *usecase.CoreUseCase, issuer *auth.Issuer) *Handler {
	return &Handler{core: core, issuer: issuer}
}

// NewApp 建立 fiber.App 並註冊路由
func NewApp(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "go-bank-ledger",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	h.RegisterRoutes(app)
	return app
}

func (h *Handler) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api")
	api.Post("/accounts", h.OpenAccount)

	api.Get("/recipient_name", h.AuthMiddleware, h.RecipientName)
	api.Post("/deposit", h.AuthMiddleware, h.Deposit)
	api.Post("/transactions", h.AuthMiddleware, h.Transfer)
	api.Get("/transactions", h.AuthMiddleware, h.History)
	api.Get("/balance", h.AuthMiddleware, h.Balance)
	api.Post("/delete_account", h.AuthMiddleware, h.DeleteAccount)
}

// AuthMiddleware 驗證 Authorization 標頭，帳號存入 Locals
// 帳戶已關閉、或 token 簽發早於 (重新) 開戶時間，一律 401
func (h *Handler) AuthMiddleware(c *fiber.Ctx) error {
	claims, err := h.issuer.ParseHeader(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return unauthenticated(c)
	}
	if err := h.core.Authorize(userContext(c), claims.AccountNumber, claims.IssuedAt); err != nil {
		if domain.IsRetryable(err) {
			return fail(c, err)
		}
		return unauthenticated(c)
	}
	c.Locals(accountLocal, claims.AccountNumber)
	return c.Next()
}

func unauthenticated(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(errorBody{Code: "UNAUTHENTICATED", Message: "missing or invalid bearer token"})
}

type depositBody struct {
	Amount string `json:"amount"`
	RefID  string `json:"ref_id"`
}

type transferBody struct {
	RecipientAccount string `json:"recipient_account"`
	Amount           string `json:"amount"`
	TransactionPin   string `json:"transaction_pin"`
	RefID            string `json:"ref_id"`
}

type openAccountBody struct {
	AccountNumber  string `json:"account_number"`
	HolderName     string `json:"holder_name"`
	TransactionPin string `json:"transaction_pin"`
}

func (h *Handler) Deposit(c *fiber.Ctx) error {
	var body depositBody
	if err := c.BodyParser(&body); err != nil {
		return fail(c, domain.ErrMissingFields)
	}
	refID, ok := parseRefID(body.RefID)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody{Code: "INVALID_REF_ID", Message: "ref_id must be a uuid"})
	}
	receipt, err := h.core.Deposit(userContext(c), usecase.DepositRequest{
		AccountNumber: accountOf(c),
		Amount:        body.Amount,
		RefID:         refID,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"message":     "Deposit successful",
		"balance":     domain.FormatAmount(receipt.Balance),
		"transaction": toTransactionJSON(receipt.Transaction),
		"replayed":    receipt.Replayed,
	})
}

func (h *Handler) Transfer(c *fiber.Ctx) error {
	var body transferBody
	if err := c.BodyParser(&body); err != nil {
		return fail(c, domain.ErrMissingFields)
	}
	refID, ok := parseRefID(body.RefID)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody{Code: "INVALID_REF_ID", Message: "ref_id must be a uuid"})
	}
	receipt, err := h.core.Transfer(userContext(c), usecase.TransferRequest{
		AccountNumber:    accountOf(c),
		RecipientAccount: body.RecipientAccount,
		Amount:           body.Amount,
		Pin:              body.TransactionPin,
		RefID:            refID,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"message":     "Transfer successful",
		"balance":     domain.FormatAmount(receipt.Balance),
		"transaction": toTransactionJSON(receipt.Transaction),
		"replayed":    receipt.Replayed,
	})
}

func (h *Handler) History(c *fiber.Ctx) error {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(errorBody{Code: "INVALID_LIMIT", Message: "limit must be a non-negative integer"})
		}
		limit = n
	}
	trans, err := h.core.History(userContext(c), accountOf(c), limit)
	if err != nil {
		return fail(c, err)
	}
	out := make([]transactionJSON, 0, len(trans))
	for _, t := range trans {
		out = append(out, toTransactionJSON(t))
	}
	return c.JSON(fiber.Map{"transactions": out})
}

func (h *Handler) Balance(c *fiber.Ctx) error {
	s, err := h.core.Summarize(userContext(c), accountOf(c))
	if err != nil {
		return fail(c, err)
	}
	recent := make([]transactionJSON, 0, len(s.Recent))
	for _, t := range s.Recent {
		recent = append(recent, toTransactionJSON(t))
	}
	return c.JSON(fiber.Map{
		"account_number":  s.AccountNumber,
		"balance":         domain.FormatAmount(s.Balance),
		"recent":          recent,
		"total_deposited": domain.FormatAmount(s.TotalDeposited),
		"total_withdrawn": domain.FormatAmount(s.TotalWithdrawn),
		"spent_percent":   domain.FormatAmount(s.SpentPercent),
		"saved_percent":   domain.FormatAmount(s.SavedPercent),
	})
}

func (h *Handler) RecipientName(c *fiber.Ctx) error {
	name, err := h.core.LookupRecipient(userContext(c), c.Query("account_number"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "name": name})
}

func (h *Handler) DeleteAccount(c *fiber.Ctx) error {
	if err := h.core.CloseAccount(userContext(c), accountOf(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Account deleted"})
}

// OpenAccount 開戶並回傳該帳號的 token
func (h *Handler) OpenAccount(c *fiber.Ctx) error {
	var body openAccountBody
	if err := c.BodyParser(&body); err != nil {
		return fail(c, domain.ErrMissingFields)
	}
	account, err := h.core.OpenAccount(userContext(c), usecase.OpenAccountRequest{
		AccountNumber: body.AccountNumber,
		HolderName:    body.HolderName,
		Pin:           body.TransactionPin,
	})
	if err != nil {
		return fail(c, err)
	}
	token, err := h.issuer.Issue(account.Number)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":        true,
		"account_number": account.Number,
		"holder_name":    account.HolderName,
		"balance":        domain.FormatAmount(account.Balance),
		"token":          token,
	})
}

func accountOf(c *fiber.Ctx) string {
	account, _ := c.Locals(accountLocal).(string)
	return account
}

func userContext(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func parseRefID(raw string) (uuid.UUID, bool) {
	if strings.TrimSpace(raw) == "" {
		return uuid.Nil, true
	}
	u, err := uuid.Parse(raw)
	return u, err == nil
}
