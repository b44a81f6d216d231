// Package eth holds the wallet signature helpers used by login.
package eth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrMalformedSignature is returned when a signature cannot be decoded or recovered
var ErrMalformedSignature = errors.New("malformed signature")

// ErrMalformedAddress is returned when an address is not 20 hex bytes
var ErrMalformedAddress = errors.New("malformed address")

const challengePrefix = "Login nonce: "

// ChallengeMessage returns the exact text a wallet signs to prove ownership
func ChallengeMessage(nonce uint64) string {
	return fmt.Sprintf("%s%d", challengePrefix, nonce)
}

// RecoverAddress returns the address that personal-signed message.
// The signature is the 65-byte 0x-hex form wallets produce; V may be 0/1 or 27/28.
func RecoverAddress(message string, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(strings.TrimSpace(signature))
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedSignature, crypto.SignatureLength, len(sig))
	}

	// Wallets emit V as 27/28, go-ethereum expects 0/1
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, fmt.Errorf("%w: invalid recovery id", ErrMalformedSignature)
	}

	hash := accounts.TextHash([]byte(message))
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// IsAddress reports whether s is a 0x-prefixed 20-byte hex address
func IsAddress(s string) bool {
	s = strings.TrimSpace(s)
	return has0xPrefix(s) && common.IsHexAddress(s)
}

// NormalizeAddress validates s and returns its canonical lowercase form
func NormalizeAddress(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !IsAddress(s) {
		return "", fmt.Errorf("%w: %q", ErrMalformedAddress, s)
	}
	return strings.ToLower(s), nil
}

func has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
