// Package ledger is a reference in-memory host for the exchange and dispute
// machines. It authenticates signed transactions, enforces per-account
// nonces and balances, and applies each accepted transition together with
// its payouts atomically under a single lock, so transitions are totally
// ordered.
package ledger

import (
	"context"
	"maps"
	"slices"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"github.com/holiman/uint256"

	"github.com/optiswap/optiswap/circuit"
	"github.com/optiswap/optiswap/core/types"
	"github.com/optiswap/optiswap/crypto"
	"github.com/optiswap/optiswap/dispute"
	"github.com/optiswap/optiswap/exchange"
	"github.com/optiswap/optiswap/log"
	"github.com/optiswap/optiswap/metrics"
)

// Receipt reports the effects of an accepted transaction.
type Receipt struct {
	TxHash    types.Hash
	Sender    types.Address
	Op        Op
	Time      uint64
	Created   types.Address // set by CreateExchange and StartDispute
	Transfers types.Transfers
	Verdict   *dispute.Verdict // set when the transaction ended a dispute
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithMetrics records transitions into m.
func WithMetrics(m *metrics.ProtocolMetrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// WithLogger replaces the default module logger.
func WithLogger(lg *log.Logger) Option {
	return func(l *Ledger) { l.log = lg }
}

// WithSenderCacheSize sets how many authenticated senders are remembered.
func WithSenderCacheSize(n int) Option {
	return func(l *Ledger) { l.senders = newSenderCache(n) }
}

// WithMaxNumBlocks bounds the circuits accepted at exchange creation.
func WithMaxNumBlocks(n uint64) Option {
	return func(l *Ledger) { l.maxBlocks = n }
}

// Ledger is the shared ledger of record.
type Ledger struct {
	mu sync.Mutex

	clock     Clock
	factory   *dispute.Factory
	metrics   *metrics.ProtocolMetrics
	log       *log.Logger
	senders   *senderCache
	maxBlocks uint64

	balances  map[types.Address]*uint256.Int
	nonces    map[types.Address]uint64
	exchanges map[types.Address]*exchange.Exchange
	disputes  map[types.Address]*dispute.Dispute
}

// New returns an empty ledger reading time from clock.
func New(clock Clock, opts ...Option) *Ledger {
	l := &Ledger{
		clock:     clock,
		factory:   dispute.NewFactory(),
		log:       log.Default().Module("ledger"),
		senders:   newSenderCache(defaultSenderCacheSize),
		maxBlocks: circuit.MaxNumBlocks,
		balances:  make(map[types.Address]*uint256.Int),
		nonces:    make(map[types.Address]uint64),
		exchanges: make(map[types.Address]*exchange.Exchange),
		disputes:  make(map[types.Address]*dispute.Dispute),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SenderCacheStats reports the sender cache counters.
func (l *Ledger) SenderCacheStats() SenderCacheStats { return l.senders.stats() }

// Now returns the ledger time.
func (l *Ledger) Now() uint64 { return l.clock.Now() }

// Credit mints amount to addr.
func (l *Ledger) Credit(addr types.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance(addr).Add(l.balance(addr), amount)
}

// Balance returns the balance of addr.
func (l *Ledger) Balance(addr types.Address) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(uint256.Int).Set(l.balance(addr))
}

// Nonce returns the next nonce expected from addr.
func (l *Ledger) Nonce(addr types.Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nonces[addr]
}

// Exchange returns a snapshot of the exchange at addr.
func (l *Ledger) Exchange(addr types.Address) (exchange.Snapshot, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.exchanges[addr]
	if !ok {
		return exchange.Snapshot{}, false
	}
	return e.Snapshot(), true
}

// Dispute returns a snapshot of the dispute at addr.
func (l *Ledger) Dispute(addr types.Address) (dispute.Snapshot, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d, ok := l.disputes[addr]
	if !ok {
		return dispute.Snapshot{}, false
	}
	return d.Snapshot(), true
}

// Exchanges returns the addresses of all hosted exchanges.
func (l *Ledger) Exchanges() []types.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.SortedFunc(maps.Keys(l.exchanges), func(a, b types.Address) int {
		return slices.Compare(a[:], b[:])
	})
}

func (l *Ledger) balance(addr types.Address) *uint256.Int {
	b, ok := l.balances[addr]
	if !ok {
		b = new(uint256.Int)
		l.balances[addr] = b
	}
	return b
}

// Submit authenticates stx and applies it. A rejected transaction changes
// nothing, including the sender's nonce.
func (l *Ledger) Submit(ctx context.Context, stx *SignedTx) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &stx.Tx
	rcpt, err := l.apply(stx)
	if err != nil {
		if l.metrics != nil {
			l.metrics.Rejection(tx.Op.Machine(), err)
		}
		l.log.Debug("transaction rejected", "op", tx.Op, "target", tx.Target.Hex(), "reason", types.Reason(err), "err", err)
		return nil, err
	}
	if l.metrics != nil {
		l.metrics.Transition(tx.Op.Machine(), tx.Op.String())
		if rcpt.Verdict != nil {
			v := rcpt.Verdict
			l.metrics.DisputeEnded(v.Outcome.String(), v.Reason.String(), v.Rounds)
		}
		l.metrics.SetEscrow(l.locked())
	}
	l.log.Info("transaction applied", "hash", rcpt.TxHash.Hex(), "op", tx.Op,
		"sender", rcpt.Sender.Hex(), "target", tx.Target.Hex(), "transfers", len(rcpt.Transfers))
	return rcpt, nil
}

// payout is a batch of transfers made out of one machine's balance.
type payout struct {
	from types.Address
	ts   types.Transfers
}

func (l *Ledger) apply(stx *SignedTx) (*Receipt, error) {
	tx := &stx.Tx
	sender, err := l.senders.sender(stx)
	if err != nil {
		return nil, err
	}
	if want := l.nonces[sender]; tx.Nonce != want {
		return nil, errorsmod.Wrapf(types.ErrBadNonce, "nonce %d, want %d", tx.Nonce, want)
	}
	value := tx.Value
	if value == nil {
		value = new(uint256.Int)
	}
	if l.balance(sender).Lt(value) {
		return nil, errorsmod.Wrapf(types.ErrInsufficientFunds, "balance %s, value %s", l.balance(sender), value)
	}

	now := l.clock.Now()
	call := types.Call{Signer: sender, Time: now, Value: value}
	rcpt := &Receipt{TxHash: tx.Hash(), Sender: sender, Op: tx.Op, Time: now}

	// Machines validate before they mutate, so an error here leaves the
	// ledger untouched.
	var payouts []payout
	if err := l.dispatch(tx, call, rcpt, &payouts); err != nil {
		return nil, err
	}

	l.nonces[sender]++
	target := tx.Target
	if tx.Op == OpCreateExchange {
		target = rcpt.Created
	}
	l.move(sender, target, value)
	for _, p := range payouts {
		for _, t := range p.ts {
			l.move(p.from, t.To, t.Amount)
			rcpt.Transfers = append(rcpt.Transfers, t)
		}
	}
	return rcpt, nil
}

// move transfers amount between two balances.
func (l *Ledger) move(from, to types.Address, amount *uint256.Int) {
	if amount.IsZero() {
		return
	}
	l.balance(from).Sub(l.balance(from), amount)
	l.balance(to).Add(l.balance(to), amount)
}

// locked sums the balances held by hosted machines.
func (l *Ledger) locked() *uint256.Int {
	sum := new(uint256.Int)
	for addr := range l.exchanges {
		sum.Add(sum, l.balance(addr))
	}
	for addr := range l.disputes {
		sum.Add(sum, l.balance(addr))
	}
	return sum
}

func (l *Ledger) dispatch(tx *Tx, call types.Call, rcpt *Receipt, out *[]payout) error {
	switch tx.Op.Machine() {
	case metrics.MachineLedger:
		return l.createExchange(tx, call, rcpt)
	case metrics.MachineDispute:
		d, ok := l.disputes[tx.Target]
		if !ok {
			return errorsmod.Wrapf(types.ErrUnknownTarget, "no dispute at %s", tx.Target)
		}
		return l.disputeOp(d, tx, call, rcpt, out)
	default:
		e, ok := l.exchanges[tx.Target]
		if !ok {
			return errorsmod.Wrapf(types.ErrUnknownTarget, "no exchange at %s", tx.Target)
		}
		return l.exchangeOp(e, tx, call, rcpt, out)
	}
}

func (l *Ledger) createExchange(tx *Tx, call types.Call, rcpt *Receipt) error {
	if !call.Amount().IsZero() {
		return errorsmod.Wrap(types.ErrInvalidParams, "exchange creation carries no value")
	}
	var p exchange.Params
	if err := tx.DecodePayload(&p); err != nil {
		return err
	}
	if p.NumBlocks > l.maxBlocks {
		return errorsmod.Wrapf(types.ErrInvalidParams, "%d blocks exceeds the limit of %d", p.NumBlocks, l.maxBlocks)
	}
	addr := crypto.CreateAddress(call.Signer, tx.Nonce)
	if _, ok := l.exchanges[addr]; ok {
		return errorsmod.Wrapf(types.ErrInvalidState, "exchange %s exists", addr)
	}
	e, err := exchange.New(addr, p, call.Time)
	if err != nil {
		return err
	}
	l.exchanges[addr] = e
	rcpt.Created = addr
	return nil
}

func (l *Ledger) exchangeOp(e *exchange.Exchange, tx *Tx, call types.Call, rcpt *Receipt, out *[]payout) error {
	var (
		res *exchange.Result
		err error
	)
	switch tx.Op {
	case OpPay:
		res, err = e.Pay(call)
	case OpRevealKey:
		var p RevealKeyPayload
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		res, err = e.RevealKey(call, p.Key)
	case OpSponsorBuyer:
		res, err = e.SponsorBuyer(call)
	case OpSponsorVendor:
		res, err = e.SponsorVendor(call)
	case OpAccept:
		res, err = e.Accept(call)
	case OpStartDispute:
		var p StartDisputePayload
		if len(tx.Payload) > 0 {
			if err := tx.DecodePayload(&p); err != nil {
				return err
			}
		}
		var opening *exchange.Opening
		if p.Open {
			opening = &exchange.Opening{Digest: p.Digest, Salt: p.Salt}
		}
		res, err = e.StartDispute(call, l.factory, opening)
	case OpExchangeTimeout:
		res, err = e.Timeout(call)
	case OpDelegate:
		var p DelegatePayload
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		res, err = e.Delegate(call, p.Delegate, p.Expiry)
	case OpRevoke:
		var p RevokePayload
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		res, err = e.Revoke(call, p.Delegate)
	default:
		return errorsmod.Wrapf(types.ErrInvalidParams, "unknown op %d", uint8(tx.Op))
	}
	if err != nil {
		return err
	}
	if res.Dispute != nil {
		l.disputes[res.Dispute.Address()] = res.Dispute
		rcpt.Created = res.Dispute.Address()
	}
	*out = append(*out, payout{from: e.Address(), ts: res.Transfers})
	return nil
}

func (l *Ledger) disputeOp(d *dispute.Dispute, tx *Tx, call types.Call, rcpt *Receipt, out *[]payout) error {
	var (
		res *dispute.Result
		err error
	)
	switch tx.Op {
	case OpClaim:
		var p ClaimPayload
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		res, err = d.Claim(call, p.Value, p.Proof)
	case OpRespond:
		var p RespondPayload
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		res, err = d.Respond(call, p.Agree)
	case OpSubmitGate:
		var p dispute.Submission
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		res, err = d.SubmitGate(call, p)
	case OpDisputeTimeout:
		res, err = d.Timeout(call)
	}
	if err != nil {
		return err
	}
	*out = append(*out, payout{from: d.Address(), ts: res.Transfers})
	if res.Verdict == nil {
		return nil
	}

	// The dispute settles its exchange within the same transaction.
	rcpt.Verdict = res.Verdict
	e := l.exchanges[d.Exchange()]
	sres, err := e.SettleDispute(types.Call{Signer: d.Address(), Time: call.Time}, *res.Verdict)
	if err != nil {
		l.log.Error("dispute settlement failed", "dispute", d.Address().Hex(), "err", err)
		return nil
	}
	*out = append(*out, payout{from: e.Address(), ts: sres.Transfers})
	return nil
}
