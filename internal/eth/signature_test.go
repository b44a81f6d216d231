package eth

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signPersonal(t *testing.T, message string) (string, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27

	return hexutil.Encode(sig), crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func TestChallengeMessage(t *testing.T) {
	assert.Equal(t, "Login nonce: 566413", ChallengeMessage(566413))
}

func TestRecoverAddress(t *testing.T) {
	msg := ChallengeMessage(42)
	sig, addr := signPersonal(t, msg)

	got, err := RecoverAddress(msg, sig)
	require.NoError(t, err)
	assert.Equal(t, addr, got.Hex())

	t.Run("recovery id 0/1 accepted", func(t *testing.T) {
		raw, err := hexutil.Decode(sig)
		require.NoError(t, err)
		raw[crypto.RecoveryIDOffset] -= 27

		got, err := RecoverAddress(msg, hexutil.Encode(raw))
		require.NoError(t, err)
		assert.Equal(t, addr, got.Hex())
	})

	t.Run("different message recovers a different address", func(t *testing.T) {
		got, err := RecoverAddress(ChallengeMessage(43), sig)
		require.NoError(t, err)
		assert.NotEqual(t, addr, got.Hex())
	})
}

func TestRecoverAddressMalformed(t *testing.T) {
	msg := ChallengeMessage(1)
	valid, _ := signPersonal(t, msg)

	cases := map[string]string{
		"not hex":      "hello",
		"missing 0x":   strings.TrimPrefix(valid, "0x"),
		"too short":    valid[:40],
		"bad recovery": valid[:len(valid)-2] + "05",
		"empty":        "",
	}
	for name, sig := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := RecoverAddress(msg, sig)
			require.ErrorIs(t, err, ErrMalformedSignature)
		})
	}
}

func TestNormalizeAddress(t *testing.T) {
	got, err := NormalizeAddress("  0xAbCdEf0123456789aBcDeF0123456789AbCdEf01 ")
	require.NoError(t, err)
	assert.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef01", got)

	for _, bad := range []string{"", "abcdef0123456789abcdef0123456789abcdef01", "0x1234", "not-an-address"} {
		_, err := NormalizeAddress(bad)
		assert.ErrorIs(t, err, ErrMalformedAddress, bad)
	}
}
