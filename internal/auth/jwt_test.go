package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuer_RoundTrip(t *testing.T) {
	issuer, err := NewIssuer("secret", time.Hour)
	require.NoError(t, err)

	token, err := issuer.Issue("1001")
	require.NoError(t, err)

	account, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "1001", account)

	account, err = issuer.VerifyHeader("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "1001", account)
}

func TestIssuer_Rejects(t *testing.T) {
	issuer, err := NewIssuer("secret", time.Hour)
	require.NoError(t, err)
	other, err := NewIssuer("other", time.Hour)
	require.NoError(t, err)

	token, err := other.Issue("1001")
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = issuer.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = issuer.VerifyHeader(token)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "1001"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = issuer.Verify(none)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestIssuer_Expired(t *testing.T) {
	issuer, err := NewIssuer("secret", time.Minute)
	require.NoError(t, err)
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, err := issuer.Issue("1001")
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestIssuer_ParseIssuedAt(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 700_000_000, time.UTC)
	issuer, err := NewIssuer("secret", time.Hour, WithClock(func() time.Time { return issuedAt }))
	require.NoError(t, err)

	token, err := issuer.Issue("1001")
	require.NoError(t, err)
	claims, err := issuer.ParseHeader("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "1001", claims.AccountNumber)
	assert.True(t, claims.IssuedAt.Equal(issuedAt.Truncate(time.Second)), claims.IssuedAt)

	// 沒有 iat 的 token 無法比對開戶時間
	noIat, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "1001",
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Minute)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = issuer.Parse(noIat)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestNewIssuer_EmptySecret(t *testing.T) {
	_, err := NewIssuer("", time.Hour)
	assert.Error(t, err)
}

func TestAccountContext(t *testing.T) {
	_, err := AccountFromContext(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)

	account, err := AccountFromContext(WithAccount(context.Background(), "2002"))
	require.NoError(t, err)
	assert.Equal(t, "2002", account)
}
