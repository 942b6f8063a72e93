package usecase

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// PinVerifier 交易密碼的雜湊與驗證
type PinVerifier interface {
	Hash(pin string) (string, error)
	Verify(hash, pin string) error
}

// BcryptPins 以 bcrypt 雜湊交易密碼，比對為常數時間
type BcryptPins struct {
	cost int
}

// NewBcryptPins cost 超出 bcrypt 範圍時使用 bcrypt.DefaultCost
func NewBcryptPins(cost int) *BcryptPins {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptPins{cost: cost}
}

func (b *BcryptPins) Hash(pin string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(pin), b.cost)
	if err != nil {
		return "", fmt.Errorf("hash transaction pin: %w", err)
	}
	return string(hashed), nil
}

func (b *BcryptPins) Verify(hash, pin string) error {
	if hash == "" || pin == "" {
		return domain.ErrInvalidPin
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return domain.ErrInvalidPin
	}
	return fmt.Errorf("verify transaction pin: %w", err)
}

var _ PinVerifier = (*BcryptPins)(nil)
