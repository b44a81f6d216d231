package venue

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/vaultgate/core"
)

// TxSender submits signed transactions to a venue
type TxSender interface {
	NonceSource
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Signer owns one signing key and its sequence counter. Every transaction sent
// under the key must go through the same Signer.
type Signer struct {
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
	sender  TxSender
	seq     *Sequencer
}

// NewSigner creates a signer for key on the given chain. callTimeout bounds the
// sequence sync and each send; zero means DefaultCallTimeout.
func NewSigner(key *ecdsa.PrivateKey, chainID *big.Int, sender TxSender, callTimeout time.Duration) *Signer {
	from := crypto.PubkeyToAddress(key.PublicKey)
	return &Signer{
		key:     key,
		from:    from,
		chainID: new(big.Int).Set(chainID),
		sender:  sender,
		seq:     NewSequencer(sender, from, callTimeout),
	}
}

// ParsePrivateKey decodes a 0x-prefixed or bare hex secp256k1 key
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	if len(hexKey) >= 2 && hexKey[0] == '0' && (hexKey[1] == 'x' || hexKey[1] == 'X') {
		hexKey = hexKey[2:]
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid signing key: %w", err)
	}
	return key, nil
}

// Address returns the account transactions are sent from
func (s *Signer) Address() common.Address {
	return s.from
}

// Send signs a call to contract and submits it under the next sequence number.
// A send the node refused wraps ErrTxRejected. A send whose fate is unknown
// (transport failure or deadline) wraps ErrTxTimeout: the node may still have
// accepted it.
func (s *Signer) Send(ctx context.Context, to common.Address, data []byte, gasLimit uint64, gasPrice *big.Int) (*types.Transaction, error) {
	txSigner := types.LatestSignerForChainID(s.chainID)

	var signed *types.Transaction
	_, err := s.seq.Submit(ctx, func(ctx context.Context, nonce uint64) error {
		tx, err := types.SignTx(types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			To:       &to,
			Gas:      gasLimit,
			GasPrice: gasPrice,
			Data:     data,
		}), txSigner, s.key)
		if err != nil {
			return fmt.Errorf("failed to sign transaction: %w", err)
		}

		if err := s.sender.SendTransaction(ctx, tx); err != nil {
			if sendOutcomeUnknown(err) {
				return fmt.Errorf("%w: send of %s unconfirmed: %w", core.ErrTxTimeout, tx.Hash().Hex(), err)
			}
			return fmt.Errorf("%w: failed to send transaction: %w", core.ErrTxRejected, err)
		}

		signed = tx
		return nil
	})
	if err != nil {
		return nil, err
	}

	return signed, nil
}

// sendOutcomeUnknown reports whether a send error leaves open that the node
// accepted the transaction. Errors answered by the node itself do not.
func sendOutcomeUnknown(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
