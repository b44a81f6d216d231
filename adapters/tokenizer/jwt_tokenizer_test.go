package tokenizer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/vaultgate/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func TestSessionRoundTrip(t *testing.T) {
	tk := NewJWTTokenizer(newKey(t), "vaultgate")
	now := time.Now().Truncate(time.Second)

	token, err := tk.SessionToToken(&core.Session{
		ID:         "jti-1",
		IdentityID: 17,
		Address:    "0x00000000000000000000000000000000000000aa",
		IssuedAt:   now,
		ExpiresAt:  now.Add(time.Hour),
	})
	require.NoError(t, err)

	session, err := tk.TokenToSession(token)
	require.NoError(t, err)
	assert.Equal(t, "jti-1", session.ID)
	assert.Equal(t, int64(17), session.IdentityID)
	assert.Equal(t, "0x00000000000000000000000000000000000000aa", session.Address)
	assert.True(t, session.ExpiresAt.Equal(now.Add(time.Hour)))
}

func TestTokenRejected(t *testing.T) {
	key := newKey(t)
	tk := NewJWTTokenizer(key, "vaultgate")
	now := time.Now()

	t.Run("expired", func(t *testing.T) {
		token, err := tk.SessionToToken(&core.Session{ID: "a", IdentityID: 1, IssuedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)})
		require.NoError(t, err)

		_, err = tk.TokenToSession(token)
		require.ErrorIs(t, err, core.ErrTokenExpired)
		require.ErrorIs(t, err, core.ErrUnauthorized)
	})

	t.Run("other signing key", func(t *testing.T) {
		token, err := NewJWTTokenizer(newKey(t), "vaultgate").SessionToToken(&core.Session{ID: "b", IdentityID: 1, IssuedAt: now, ExpiresAt: now.Add(time.Hour)})
		require.NoError(t, err)

		_, err = tk.TokenToSession(token)
		require.ErrorIs(t, err, core.ErrInvalidToken)
	})

	t.Run("wrong audience", func(t *testing.T) {
		claims := SessionClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "vaultgate",
				Subject:   "1",
				Audience:  jwt.ClaimStrings{"session:refresh"},
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(key)
		require.NoError(t, err)

		_, err = tk.TokenToSession(token)
		require.ErrorIs(t, err, core.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tk.TokenToSession("not.a.token")
		require.ErrorIs(t, err, core.ErrInvalidToken)
	})
}
