// Package agent holds the off-chain side of the protocol: parties that sign
// and submit ledger transactions, the vendor and buyer strategies built on a
// locally held trace, and a driver that plays a dispute to its end.
package agent

import (
	"context"
	"crypto/ecdsa"

	"github.com/holiman/uint256"

	"github.com/optiswap/optiswap/core/types"
	"github.com/optiswap/optiswap/crypto"
	"github.com/optiswap/optiswap/ledger"
	"github.com/optiswap/optiswap/log"
)

// Party is an account that signs transactions with a secp256k1 key.
type Party struct {
	Name    string
	Key     *ecdsa.PrivateKey
	Address types.Address
	Ledger  *ledger.Ledger

	nonce uint64
	log   *log.Logger
}

// NewParty binds key to l, resuming from the ledger's nonce for it.
func NewParty(name string, key *ecdsa.PrivateKey, l *ledger.Ledger) *Party {
	addr := crypto.PubkeyToAddress(key.PublicKey)
	return &Party{
		Name:    name,
		Key:     key,
		Address: addr,
		Ledger:  l,
		nonce:   l.Nonce(addr),
		log:     log.Default().Module("agent").With("party", name),
	}
}

// GenerateParty creates a party with a fresh key.
func GenerateParty(name string, l *ledger.Ledger) (*Party, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return NewParty(name, key, l), nil
}

// Nonce returns the nonce the next transaction will carry.
func (p *Party) Nonce() uint64 { return p.nonce }

// Send signs and submits one transaction. The tracked nonce advances only
// when the ledger accepts it.
func (p *Party) Send(ctx context.Context, target types.Address, op ledger.Op, value *uint256.Int, payload any) (*ledger.Receipt, error) {
	tx, err := ledger.NewTx(p.nonce, target, op, value, payload)
	if err != nil {
		return nil, err
	}
	stx, err := ledger.SignTx(tx, p.Key)
	if err != nil {
		return nil, err
	}
	rcpt, err := p.Ledger.Submit(ctx, stx)
	if err != nil {
		p.log.Debug("transaction rejected", "op", op, "reason", types.Reason(err))
		return nil, err
	}
	p.nonce++
	return rcpt, nil
}
