// Package logger 輸出 "LEVEL message {json}" 格式的結構化日誌，並遮蔽交易密碼等機密欄位
package logger

import (
	"encoding/json"
	"io"
	"log"
	"strings"
	"sync/atomic"
)

type Fields map[string]any

// Level 日誌等級
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

const redacted = "******"

var sensitiveKeys = map[string]struct{}{
	"pin":                  {},
	"transactionpin":       {},
	"transaction_pin":      {},
	"transactionpinhash":   {},
	"transaction_pin_hash": {},
	"pinhash":              {},
	"pin_hash":             {},
	"password":             {},
	"token":                {},
	"authorization":        {},
	"secret":               {},
	"jwt_secret":           {},
}

var minLevel atomic.Int32

func init() {
	minLevel.Store(int32(LevelInfo))
}

// ParseLevel 將設定檔字串轉成 Level，無法辨識時回傳 LevelInfo
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// SetLevel 設定最低輸出等級
func SetLevel(level Level) {
	minLevel.Store(int32(level))
}

// SetOutput 設定輸出目標 (測試時使用)
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

func enabled(level Level) bool {
	return int32(level) >= minLevel.Load()
}

func Debug(message string, fields Fields) {
	if !enabled(LevelDebug) {
		return
	}
	log.Printf("DEBUG %s %s", message, fieldsJSON(fields))
}

func Info(message string, fields Fields) {
	if !enabled(LevelInfo) {
		return
	}
	log.Printf("INFO %s %s", message, fieldsJSON(fields))
}

func Warn(message string, fields Fields) {
	if !enabled(LevelWarn) {
		return
	}
	log.Printf("WARN %s %s", message, fieldsJSON(fields))
}

func Error(message string, err error, fields Fields) {
	if !enabled(LevelError) {
		return
	}
	base := Fields{}
	for k, v := range fields {
		base[k] = v
	}
	if err != nil {
		base["error"] = err.Error()
	}

	log.Printf("ERROR %s %s", message, fieldsJSON(base))
}

// SanitizePayload 將任意 payload 轉成 JSON 結構並遮蔽機密欄位
func SanitizePayload(payload any) any {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "<unavailable>"
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return "<unavailable>"
	}

	return sanitizeValue(data)
}

func fieldsJSON(fields Fields) string {
	if fields == nil {
		fields = Fields{}
	}

	sanitized := SanitizePayload(fields)
	b, err := json.Marshal(sanitized)
	if err != nil {
		return `{}`
	}

	return string(b)
}

func sanitizeValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, inner := range typed {
			if isSensitiveKey(key) {
				out[key] = redacted
				continue
			}
			out[key] = sanitizeValue(inner)
		}
		return out
	case []any:
		out := make([]any, 0, len(typed))
		for _, item := range typed {
			out = append(out, sanitizeValue(item))
		}
		return out
	default:
		return value
	}
}

func isSensitiveKey(key string) bool {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(key), "-", ""))
	_, ok := sensitiveKeys[normalized]
	return ok
}
