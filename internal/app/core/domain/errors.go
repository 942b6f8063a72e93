package domain

import "errors"

// Code 穩定的錯誤代碼，提供給 gRPC / HTTP 等外層轉換
type Code string

const (
	CodeInvalidAmount        Code = "INVALID_AMOUNT"
	CodeLimitExceeded        Code = "LIMIT_EXCEEDED"
	CodeMissingFields        Code = "MISSING_FIELDS"
	CodeSelfTransfer         Code = "SELF_TRANSFER"
	CodeRecipientNotFound    Code = "RECIPIENT_NOT_FOUND"
	CodeInvalidPin           Code = "INVALID_PIN"
	CodeInsufficientFunds    Code = "INSUFFICIENT_FUNDS"
	CodeAccountNotFound      Code = "ACCOUNT_NOT_FOUND"
	CodeStoreUnavailable     Code = "STORE_UNAVAILABLE"
	CodeConsistencyViolation Code = "CONSISTENCY_VIOLATION"
	CodeAccountExists        Code = "ACCOUNT_EXISTS"
	CodeInvalidAccount       Code = "INVALID_ACCOUNT"
	CodeInvalidPinFormat     Code = "INVALID_PIN_FORMAT"
	CodeDuplicateReference   Code = "DUPLICATE_REFERENCE"
	CodeStaleCredential      Code = "STALE_CREDENTIAL"
	CodeInternal             Code = "INTERNAL"
)

// Error 帳務錯誤，以指標比對 (errors.Is)
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

var (
	// ErrInvalidAmount 金額格式錯誤或非正數
	ErrInvalidAmount = newError(CodeInvalidAmount, "amount must be a positive decimal with at most 2 fractional digits")

	// ErrLimitExceeded 超過單筆存款上限
	ErrLimitExceeded = newError(CodeLimitExceeded, "amount exceeds the deposit limit")

	// ErrMissingFields 必填欄位缺漏
	ErrMissingFields = newError(CodeMissingFields, "all fields are required")

	// ErrSelfTransfer 不可轉帳給自己
	ErrSelfTransfer = newError(CodeSelfTransfer, "cannot transfer to yourself")

	// ErrRecipientNotFound 收款帳戶不存在
	ErrRecipientNotFound = newError(CodeRecipientNotFound, "recipient account not found")

	// ErrInvalidPin 交易密碼錯誤
	ErrInvalidPin = newError(CodeInvalidPin, "invalid transaction pin")

	// ErrInsufficientFunds 餘額不足
	ErrInsufficientFunds = newError(CodeInsufficientFunds, "insufficient balance")

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = newError(CodeAccountNotFound, "account not found")

	// ErrStoreUnavailable 儲存層暫時無法使用，呼叫端可重試
	ErrStoreUnavailable = newError(CodeStoreUnavailable, "store unavailable")

	// ErrConsistencyViolation 不變量被破壞，需人工對帳，不可吞掉
	ErrConsistencyViolation = newError(CodeConsistencyViolation, "ledger consistency violation")

	// ErrAccountExists 帳戶已存在
	ErrAccountExists = newError(CodeAccountExists, "account already exists")

	// ErrInvalidAccount 帳號格式錯誤
	ErrInvalidAccount = newError(CodeInvalidAccount, "account number must be 1-20 digits")

	// ErrInvalidPinFormat 交易密碼格式錯誤
	ErrInvalidPinFormat = newError(CodeInvalidPinFormat, "transaction pin must be 4-6 digits")

	// ErrDuplicateReference 同一個 ref_id 對應到不同的交易內容
	ErrDuplicateReference = newError(CodeDuplicateReference, "ref_id already used by a different transaction")

	// ErrStaleCredential token 簽發早於帳戶 (重新) 開立的時間
	ErrStaleCredential = newError(CodeStaleCredential, "credential was issued before the account was opened")
)

// CodeOf 取出錯誤代碼，非帳務錯誤一律回傳 CodeInternal
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// IsRetryable 只有儲存層暫時性錯誤可以重試
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// MessageOf 可對外顯示的訊息，非帳務錯誤不揭露細節
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}
