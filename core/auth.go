package core

import "time"

const (
	// DefaultRole is assigned to identities on registration
	DefaultRole = "trader"
	// DefaultStatus is the state of a newly registered identity
	DefaultStatus = "active"
)

// Identity is a wallet-keyed account with its current login nonce
type Identity struct {
	ID        int64     // Stable numeric identifier, bound into session tokens
	Address   string    // Lowercase 0x-prefixed wallet address, globally unique
	Nonce     uint64    // Current single-use challenge value
	Role      string    // Role flag, "trader" unless changed out of band
	Status    string    // Status flag, "active" unless changed out of band
	CreatedAt time.Time // When the identity was first provisioned
}

// Clone returns a copy safe to hand out of a store
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

// Session represents an authenticated user session
type Session struct {
	ID         string    // Unique token identifier (jti)
	IdentityID int64     // Numeric identity id (sub)
	Address    string    // Wallet address at issuance time
	IssuedAt   time.Time // When the session was created
	ExpiresAt  time.Time // When the token stops being accepted
}
