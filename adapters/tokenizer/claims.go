package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims combines standard claims with the wallet binding.
// Subject carries the numeric identity id.
type SessionClaims struct {
	jwt.RegisteredClaims
	Wallet string `json:"wallet"`
}
