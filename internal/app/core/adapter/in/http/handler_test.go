package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/internal/auth"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	ledger, err := memory.NewMutexLedger(nil, node)
	require.NoError(t, err)
	core := usecase.NewCoreUseCase(ledger, usecase.NewBcryptPins(bcrypt.MinCost), usecase.DefaultEngineOptions())
	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	return NewApp(NewHandler(core, issuer))
}

func do(t *testing.T, app *fiber.App, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func openAccount(t *testing.T, app *fiber.App, number, name, pin string) string {
	t.Helper()
	status, body := do(t, app, fiber.MethodPost, "/api/accounts", "", map[string]string{
		"account_number":  number,
		"holder_name":     name,
		"transaction_pin": pin,
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestHandler_Flow(t *testing.T) {
	app := newTestApp(t)
	alice := openAccount(t, app, "1001", "Alice", "1234")
	bob := openAccount(t, app, "2002", "Bob", "5678")

	status, body := do(t, app, fiber.MethodPost, "/api/deposit", alice, map[string]string{"amount": "100"})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "100.00", body["balance"])

	status, body = do(t, app, fiber.MethodPost, "/api/transactions", alice, map[string]string{
		"recipient_account": "2002",
		"amount":            "40",
		"transaction_pin":   "1234",
	})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "60.00", body["balance"])

	status, body = do(t, app, fiber.MethodGet, "/api/balance", bob, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "40.00", body["balance"])
	assert.Equal(t, "0.00", body["spent_percent"])

	status, body = do(t, app, fiber.MethodGet, "/api/transactions?limit=1", alice, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	trans, _ := body["transactions"].([]any)
	require.Len(t, trans, 1)
	assert.Equal(t, "transfer", trans[0].(map[string]any)["type"])

	status, body = do(t, app, fiber.MethodGet, "/api/recipient_name?account_number=2002", alice, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "Bob", body["name"])

	status, _ = do(t, app, fiber.MethodPost, "/api/delete_account", bob, nil)
	require.Equal(t, fiber.StatusOK, status)

	status, body = do(t, app, fiber.MethodGet, "/api/transactions", alice, nil)
	require.Equal(t, fiber.StatusOK, status)
	trans, _ = body["transactions"].([]any)
	assert.Len(t, trans, 1)
}

func TestHandler_Errors(t *testing.T) {
	app := newTestApp(t)
	alice := openAccount(t, app, "1001", "Alice", "1234")
	openAccount(t, app, "2002", "Bob", "5678")

	status, body := do(t, app, fiber.MethodPost, "/api/deposit", "", map[string]string{"amount": "10"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, false, body["success"])

	status, body = do(t, app, fiber.MethodPost, "/api/deposit", alice, map[string]string{"amount": "0"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "INVALID_AMOUNT", body["code"])

	status, body = do(t, app, fiber.MethodPost, "/api/deposit", alice, map[string]string{"amount": "100000.01"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "LIMIT_EXCEEDED", body["code"])

	status, body = do(t, app, fiber.MethodPost, "/api/transactions", alice, map[string]string{
		"recipient_account": "2002",
		"amount":            "1",
		"transaction_pin":   "1234",
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, "INSUFFICIENT_FUNDS", body["code"])

	status, body = do(t, app, fiber.MethodPost, "/api/transactions", alice, map[string]string{
		"recipient_account": "2002",
		"amount":            "1",
		"transaction_pin":   "9999",
	})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "INVALID_PIN", body["code"])

	status, body = do(t, app, fiber.MethodPost, "/api/accounts", "", map[string]string{
		"account_number":  "1001",
		"transaction_pin": "1234",
	})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "ACCOUNT_EXISTS", body["code"])

	status, body = do(t, app, fiber.MethodPost, "/api/accounts", "", map[string]string{
		"account_number":  "12ab",
		"transaction_pin": "1234",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "INVALID_ACCOUNT", body["code"])

	status, body = do(t, app, fiber.MethodGet, "/api/recipient_name?account_number=2002", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHENTICATED", body["code"])
	assert.Nil(t, body["name"])

	status, body = do(t, app, fiber.MethodGet, "/api/recipient_name?account_number=7777", alice, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "ACCOUNT_NOT_FOUND", body["code"])

	status, body = do(t, app, fiber.MethodGet, "/api/transactions?limit=abc", alice, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "INVALID_LIMIT", body["code"])

	status, _ = do(t, app, fiber.MethodGet, "/api/nope", alice, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestHandler_TokenAfterClose(t *testing.T) {
	app := newTestApp(t)
	bob := openAccount(t, app, "2002", "Bob", "5678")

	status, _ := do(t, app, fiber.MethodPost, "/api/delete_account", bob, nil)
	require.Equal(t, fiber.StatusOK, status)

	status, body := do(t, app, fiber.MethodGet, "/api/balance", bob, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHENTICATED", body["code"])

	// 重新開戶前簽發的 token
	earlier, err := auth.NewIssuer("test-secret", time.Hour, auth.WithClock(func() time.Time {
		return time.Now().Add(-time.Minute)
	}))
	require.NoError(t, err)
	stale, err := earlier.Issue("2002")
	require.NoError(t, err)

	mallory := openAccount(t, app, "2002", "Mallory", "1111")

	status, _ = do(t, app, fiber.MethodGet, "/api/balance", stale, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	status, _ = do(t, app, fiber.MethodPost, "/api/delete_account", stale, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body = do(t, app, fiber.MethodGet, "/api/balance", mallory, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "0.00", body["balance"])
}
