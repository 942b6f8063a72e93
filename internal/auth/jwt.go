package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated 缺少或無效的身分憑證
var ErrUnauthenticated = errors.New("unauthenticated")

// DefaultTTL token 預設有效時間
const DefaultTTL = 24 * time.Hour

type ctxKey string

const accountKey ctxKey = "account_number"

// Issuer 以 HS256 簽發 / 驗證 token，sub 為帳號
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option 調整 Issuer 行為
type Option func(*Issuer)

// WithClock 替換簽發與驗證使用的時鐘
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

func NewIssuer(secret string, ttl time.Duration, opts ...Option) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	issuer := &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(issuer)
	}
	return issuer, nil
}

// Issue 簽發帳號的 token
func (i *Issuer) Issue(accountNumber string) (string, error) {
	now := i.now()
	claims := jwt.RegisteredClaims{
		Subject:   accountNumber,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Claims 驗證通過的 token 內容
type Claims struct {
	AccountNumber string
	// IssuedAt 精度到秒
	IssuedAt time.Time
}

// Verify 驗證 token 並回傳帳號
func (i *Issuer) Verify(tokenStr string) (string, error) {
	claims, err := i.Parse(tokenStr)
	if err != nil {
		return "", err
	}
	return claims.AccountNumber, nil
}

// Parse 驗證 token 並回傳帳號與簽發時間
func (i *Issuer) Parse(tokenStr string) (Claims, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired(), jwt.WithIssuedAt())
	if err != nil || !token.Valid {
		return Claims{}, ErrUnauthenticated
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.IssuedAt == nil {
		return Claims{}, ErrUnauthenticated
	}
	return Claims{AccountNumber: claims.Subject, IssuedAt: claims.IssuedAt.Time}, nil
}

// VerifyHeader 解析 "Bearer <token>" 格式的標頭
func (i *Issuer) VerifyHeader(header string) (string, error) {
	claims, err := i.ParseHeader(header)
	if err != nil {
		return "", err
	}
	return claims.AccountNumber, nil
}

// ParseHeader 同 VerifyHeader，另外回傳簽發時間
func (i *Issuer) ParseHeader(header string) (Claims, error) {
	if !strings.HasPrefix(header, "Bearer ") {
		return Claims{}, ErrUnauthenticated
	}
	return i.Parse(strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
}

// WithAccount 將已驗證的帳號放入 context
func WithAccount(ctx context.Context, accountNumber string) context.Context {
	return context.WithValue(ctx, accountKey, accountNumber)
}

// AccountFromContext 取出已驗證的帳號
func AccountFromContext(ctx context.Context) (string, error) {
	account, ok := ctx.Value(accountKey).(string)
	if !ok || account == "" {
		return "", ErrUnauthenticated
	}
	return account, nil
}
