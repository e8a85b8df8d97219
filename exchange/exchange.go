// Package exchange implements the escrow machine of one trade: payment, key
// release, dispute sponsor assignment, dispute start and settlement.
//
// Every transition validates the state tag, the signer's role and the
// deadline before it mutates anything, and returns the payouts it made out
// of the escrow as a Result. Missed deadlines are discovered lazily: the
// counterparty claims them through Timeout.
package exchange

import (
	errorsmod "cosmossdk.io/errors"
	"github.com/holiman/uint256"

	"github.com/optiswap/optiswap/auth"
	"github.com/optiswap/optiswap/core/types"
	"github.com/optiswap/optiswap/crypto"
	"github.com/optiswap/optiswap/dispute"
	"github.com/optiswap/optiswap/log"
)

// KeySize is the length of the released AES-128 key.
const KeySize = 16

// Exchange is one trade between a buyer and a vendor.
type Exchange struct {
	address types.Address
	params  Params
	policy  *auth.Policy

	state    State
	reason   EndReason
	deadline uint64

	paid   *uint256.Int
	escrow *uint256.Int
	key    []byte

	buyerSponsor   dispute.Sponsor
	vendorSponsor  dispute.Sponsor
	buyerAssigned  bool
	vendorAssigned bool

	expected   types.Hash
	dispute    types.Address
	hasDispute bool

	log *log.Logger
}

// New creates an exchange at address in StateWaitPayment.
func New(address types.Address, p Params, now uint64) (*Exchange, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	policy, err := auth.NewPolicy(p.Buyer, p.Vendor)
	if err != nil {
		return nil, err
	}
	p.Price = clone(p.Price)
	p.CompletionTip = clone(p.CompletionTip)
	p.DisputeTip = clone(p.DisputeTip)
	p.Penalty = clone(p.Penalty)

	e := &Exchange{
		address:  address,
		params:   p,
		policy:   policy,
		state:    StateWaitPayment,
		deadline: now + p.TimeoutIncrement,
		paid:     new(uint256.Int),
		escrow:   new(uint256.Int),
		log:      log.Default().Module("exchange").With("exchange", address.Hex()),
	}
	if p.Bond().IsZero() {
		if !p.BuyerDisputeSponsor.IsZero() {
			e.buyerSponsor = dispute.Sponsor{Address: p.BuyerDisputeSponsor, Deposit: new(uint256.Int)}
			e.buyerAssigned = true
		}
		if !p.VendorDisputeSponsor.IsZero() {
			e.vendorSponsor = dispute.Sponsor{Address: p.VendorDisputeSponsor, Deposit: new(uint256.Int)}
			e.vendorAssigned = true
		}
	}
	e.log.Info("exchange created", "buyer", p.Buyer.Hex(), "vendor", p.Vendor.Hex(),
		"blocks", p.NumBlocks, "price", p.Price.Dec())
	return e, nil
}

// Address returns the exchange's ledger address.
func (e *Exchange) Address() types.Address { return e.address }

// Commitment returns the trace commitment fixed at creation.
func (e *Exchange) Commitment() types.Hash { return e.params.Commitment }

// State returns the current state tag.
func (e *Exchange) State() State { return e.state }

// Deadline returns the absolute time after which Timeout may be claimed.
func (e *Exchange) Deadline() uint64 { return e.deadline }

// Escrow returns the funds currently held by the exchange.
func (e *Exchange) Escrow() *uint256.Int { return new(uint256.Int).Set(e.escrow) }

// Dispute returns the address of the spawned dispute, if any.
func (e *Exchange) Dispute() (types.Address, bool) { return e.dispute, e.hasDispute }

// Params returns the creation parameters.
func (e *Exchange) Params() Params { return e.params }

// Policy exposes the authorization policy for read-only inspection.
func (e *Exchange) Policy() *auth.Policy { return e.policy.Clone() }

// DisputeTerms returns the parameters a dispute of this exchange inherits.
// The policy is shared, not copied.
func (e *Exchange) DisputeTerms() dispute.Terms {
	return dispute.Terms{
		CircuitRoot:      e.params.CircuitRoot,
		Expected:         e.expected,
		Key:              append([]byte(nil), e.key...),
		Version:          e.params.Version,
		DisputeTip:       clone(e.params.DisputeTip),
		Penalty:          clone(e.params.Penalty),
		TimeoutIncrement: e.params.TimeoutIncrement,
		Policy:           e.policy,
	}
}

func (e *Exchange) requireState(want ...State) error {
	for _, s := range want {
		if e.state == s {
			return nil
		}
	}
	return errorsmod.Wrapf(types.ErrInvalidState, "exchange in %s, want %v", e.state, want)
}

func (e *Exchange) requireOpen(now uint64) error {
	if now > e.deadline {
		return errorsmod.Wrapf(types.ErrDeadlineExceeded, "now %d past deadline %d", now, e.deadline)
	}
	return nil
}

func requireNoValue(call types.Call) error {
	if !call.Amount().IsZero() {
		return errorsmod.Wrap(types.ErrInvalidParams, "call carries no value")
	}
	return nil
}

// advance resets the deadline after an accepted move.
func (e *Exchange) advance(to State, now uint64) {
	e.log.Debug("state transition", "from", e.state, "to", to)
	e.state = to
	e.deadline = now + e.params.TimeoutIncrement
}

// sponsorState returns the state following key release or a sponsor
// assignment.
func (e *Exchange) sponsorState() State {
	switch {
	case !e.buyerAssigned:
		return StateWaitSB
	case !e.vendorAssigned:
		return StateWaitSV
	default:
		return StateWaitDisputeStart
	}
}

// pay moves amount out of the escrow.
func (e *Exchange) pay(ts *types.Transfers, to types.Address, amt *uint256.Int) {
	if amt == nil || amt.IsZero() {
		return
	}
	ts.Add(to, amt)
	e.escrow.Sub(e.escrow, amt)
}

func (e *Exchange) returnBonds(ts *types.Transfers) {
	if e.buyerAssigned {
		e.pay(ts, e.buyerSponsor.Address, e.buyerSponsor.Deposit)
	}
	if e.vendorAssigned {
		e.pay(ts, e.vendorSponsor.Address, e.vendorSponsor.Deposit)
	}
}

// complete pays the vendor the price, the tip to the sponsor and any
// overpayment back to the buyer.
func (e *Exchange) complete(ts *types.Transfers) {
	p := &e.params
	e.pay(ts, p.Vendor, p.Price)
	tipTo := p.Sponsor
	if tipTo.IsZero() {
		tipTo = p.Vendor
	}
	e.pay(ts, tipTo, p.CompletionTip)
	e.pay(ts, p.Buyer, new(uint256.Int).Sub(e.paid, p.Due()))
}

func (e *Exchange) end(reason EndReason) {
	e.log.Info("exchange ended", "reason", reason, "from", e.state)
	e.state = StateEnd
	e.reason = reason
}

// Pay escrows the buyer's payment, at least Price + CompletionTip.
func (e *Exchange) Pay(call types.Call) (*Result, error) {
	if err := e.requireState(StateWaitPayment); err != nil {
		return nil, err
	}
	if _, err := e.policy.Authorize(call.Signer, call.Time, auth.RoleBuyer); err != nil {
		return nil, err
	}
	if err := e.requireOpen(call.Time); err != nil {
		return nil, err
	}
	due := e.params.Due()
	if call.Amount().Lt(due) {
		return nil, errorsmod.Wrapf(types.ErrInsufficientFunds, "paid %s, due %s", call.Amount(), due)
	}
	e.paid = clone(call.Amount())
	e.escrow.Add(e.escrow, e.paid)
	e.advance(StateWaitKey, call.Time)
	return &Result{}, nil
}

// RevealKey releases the decryption key.
func (e *Exchange) RevealKey(call types.Call, key []byte) (*Result, error) {
	if err := e.requireState(StateWaitKey); err != nil {
		return nil, err
	}
	if _, err := e.policy.Authorize(call.Signer, call.Time, auth.RoleVendor); err != nil {
		return nil, err
	}
	if err := e.requireOpen(call.Time); err != nil {
		return nil, err
	}
	if err := requireNoValue(call); err != nil {
		return nil, err
	}
	if len(key) != KeySize {
		return nil, errorsmod.Wrapf(types.ErrInvalidParams, "key is %d bytes, want %d", len(key), KeySize)
	}
	e.key = append([]byte(nil), key...)
	e.advance(e.sponsorState(), call.Time)
	return &Result{}, nil
}

// SponsorBuyer fills the buyer's dispute sponsor slot with the signer.
func (e *Exchange) SponsorBuyer(call types.Call) (*Result, error) {
	return e.sponsor(call, StateWaitSB, e.params.BuyerDisputeSponsor, auth.RoleVendor,
		&e.buyerSponsor, &e.buyerAssigned, e.vendorSponsor)
}

// SponsorVendor fills the vendor's dispute sponsor slot with the signer.
func (e *Exchange) SponsorVendor(call types.Call) (*Result, error) {
	return e.sponsor(call, StateWaitSV, e.params.VendorDisputeSponsor, auth.RoleBuyer,
		&e.vendorSponsor, &e.vendorAssigned, e.buyerSponsor)
}

func (e *Exchange) sponsor(call types.Call, want State, reserved types.Address, opposing auth.Role,
	slot *dispute.Sponsor, assigned *bool, other dispute.Sponsor) (*Result, error) {
	if err := e.requireState(want); err != nil {
		return nil, err
	}
	if !reserved.IsZero() && call.Signer != reserved {
		return nil, errorsmod.Wrapf(types.ErrUnauthorized, "slot reserved for %s", reserved)
	}
	if call.Signer.IsZero() || call.Signer == other.Address || e.policy.Holds(call.Signer, call.Time, opposing) {
		return nil, errorsmod.Wrapf(types.ErrUnauthorized, "%s cannot sponsor its counterparty", call.Signer)
	}
	if err := e.requireOpen(call.Time); err != nil {
		return nil, err
	}
	bond := e.params.Bond()
	if call.Amount().Lt(bond) {
		return nil, errorsmod.Wrapf(types.ErrInsufficientFunds, "deposit %s, bond %s", call.Amount(), bond)
	}
	*slot = dispute.Sponsor{Address: call.Signer, Deposit: clone(call.Amount())}
	*assigned = true
	e.escrow.Add(e.escrow, slot.Deposit)
	e.advance(e.sponsorState(), call.Time)
	return &Result{}, nil
}

// Accept ends the exchange with the completion payout.
func (e *Exchange) Accept(call types.Call) (*Result, error) {
	if err := e.requireState(StateWaitSB, StateWaitSV, StateWaitDisputeStart); err != nil {
		return nil, err
	}
	if _, err := e.policy.Authorize(call.Signer, call.Time, auth.RoleBuyer); err != nil {
		return nil, err
	}
	if err := e.requireOpen(call.Time); err != nil {
		return nil, err
	}
	if err := requireNoValue(call); err != nil {
		return nil, err
	}
	res := &Result{}
	e.complete(&res.Transfers)
	e.returnBonds(&res.Transfers)
	e.end(EndCompleted)
	return res, nil
}

// disputeView presents the exchange to the factory with the expected digest
// about to be fixed.
type disputeView struct {
	*Exchange
	expected types.Hash
}

func (v disputeView) DisputeTerms() dispute.Terms {
	t := v.Exchange.DisputeTerms()
	t.Expected = v.expected
	return t
}

// StartDispute spawns the dispute through f and moves both sponsor bonds
// into it. The buyer may open BuyerCommitment to fix the digest the
// decrypted good must hash to.
func (e *Exchange) StartDispute(call types.Call, f *dispute.Factory, opening *Opening) (*Result, error) {
	if err := e.requireState(StateWaitDisputeStart); err != nil {
		return nil, err
	}
	role, err := e.policy.Authorize(call.Signer, call.Time, auth.RoleBuyer, auth.RoleVendor)
	if err != nil {
		return nil, err
	}
	if err := e.requireOpen(call.Time); err != nil {
		return nil, err
	}
	if err := requireNoValue(call); err != nil {
		return nil, err
	}
	var expected types.Hash
	if opening != nil {
		if role != auth.RoleBuyer {
			return nil, errorsmod.Wrap(types.ErrInvalidParams, "only the buyer opens the expected digest")
		}
		if e.params.BuyerCommitment.IsZero() {
			return nil, errorsmod.Wrap(types.ErrInvalidParams, "no buyer commitment to open")
		}
		if !crypto.Open(e.params.BuyerCommitment, opening.Digest[:], opening.Salt) {
			return nil, errorsmod.Wrap(types.ErrProofInvalid, "opening does not match the buyer commitment")
		}
		expected = opening.Digest
	}

	funding := new(uint256.Int).Add(amount(e.buyerSponsor.Deposit), amount(e.vendorSponsor.Deposit))
	d, err := f.Create(disputeView{e, expected}, e.params.NumBlocks, e.params.NumGates, e.params.Commitment,
		e.buyerSponsor, e.vendorSponsor, funding, call.Time)
	if err != nil {
		return nil, err
	}

	e.expected = expected
	e.dispute = d.Address()
	e.hasDispute = true
	res := &Result{Dispute: d}
	e.pay(&res.Transfers, d.Address(), funding)
	e.advance(StateInDispute, call.Time)
	e.log.Info("dispute started", "dispute", d.Address().Hex(), "by", role, "expected", !expected.IsZero())
	return res, nil
}

// Timeout lets the counterparty of a stalled party end the exchange.
func (e *Exchange) Timeout(call types.Call) (*Result, error) {
	var claimant auth.Role
	switch e.state {
	case StateWaitPayment, StateWaitSB, StateWaitDisputeStart:
		claimant = auth.RoleVendor
	case StateWaitKey, StateWaitSV:
		claimant = auth.RoleBuyer
	default:
		return nil, errorsmod.Wrapf(types.ErrInvalidState, "no timeout in %s", e.state)
	}
	if _, err := e.policy.Authorize(call.Signer, call.Time, claimant); err != nil {
		return nil, err
	}
	if call.Time <= e.deadline {
		return nil, errorsmod.Wrapf(types.ErrDeadlineNotReached, "now %d, deadline %d", call.Time, e.deadline)
	}
	if err := requireNoValue(call); err != nil {
		return nil, err
	}

	res := &Result{}
	switch e.state {
	case StateWaitPayment:
		e.end(EndCancelled)
	case StateWaitKey, StateWaitSV:
		e.pay(&res.Transfers, e.params.Buyer, e.paid)
		e.returnBonds(&res.Transfers)
		e.end(EndRefunded)
	default:
		e.complete(&res.Transfers)
		e.returnBonds(&res.Transfers)
		e.end(EndCompleted)
	}
	return res, nil
}

// SettleDispute applies the verdict of the spawned dispute. Only the dispute
// itself may call it.
func (e *Exchange) SettleDispute(call types.Call, v dispute.Verdict) (*Result, error) {
	if err := e.requireState(StateInDispute); err != nil {
		return nil, err
	}
	if !e.hasDispute || call.Signer != e.dispute {
		return nil, errorsmod.Wrapf(types.ErrUnauthorized, "%s is not the dispute of this exchange", call.Signer)
	}
	res := &Result{}
	switch v.Outcome {
	case dispute.OutcomeVendorWins:
		e.complete(&res.Transfers)
	case dispute.OutcomeBuyerWins, dispute.OutcomeUnresolved:
		e.pay(&res.Transfers, e.params.Buyer, e.paid)
	default:
		return nil, errorsmod.Wrapf(types.ErrInvalidParams, "verdict %s", v.Outcome)
	}
	e.log.Info("dispute settled", "outcome", v.Outcome, "reason", v.Reason, "rounds", v.Rounds)
	e.end(EndDisputeResolved)
	return res, nil
}

// Delegate registers a session key for the signing buyer or vendor.
func (e *Exchange) Delegate(call types.Call, delegate types.Address, expiry uint64) (*Result, error) {
	if e.state == StateEnd {
		return nil, errorsmod.Wrap(types.ErrInvalidState, "exchange ended")
	}
	if err := requireNoValue(call); err != nil {
		return nil, err
	}
	d, err := e.policy.Delegate(call.Signer, delegate, expiry, call.Time)
	if err != nil {
		return nil, err
	}
	e.log.Debug("delegation registered", "delegate", d.Delegate.Hex(), "principal", d.Principal, "expiry", d.Expiry)
	return &Result{}, nil
}

// Revoke removes a session key registered by the signing primary.
func (e *Exchange) Revoke(call types.Call, delegate types.Address) (*Result, error) {
	if e.state == StateEnd {
		return nil, errorsmod.Wrap(types.ErrInvalidState, "exchange ended")
	}
	if err := requireNoValue(call); err != nil {
		return nil, err
	}
	if err := e.policy.Revoke(call.Signer, delegate); err != nil {
		return nil, err
	}
	return &Result{}, nil
}

// Snapshot returns a read-only copy of the exchange state.
func (e *Exchange) Snapshot() Snapshot {
	p := e.params
	p.Price = clone(p.Price)
	p.CompletionTip = clone(p.CompletionTip)
	p.DisputeTip = clone(p.DisputeTip)
	p.Penalty = clone(p.Penalty)
	return Snapshot{
		Address:       e.address,
		Params:        p,
		State:         e.state,
		EndReason:     e.reason,
		Deadline:      e.deadline,
		Paid:          clone(e.paid),
		Escrow:        clone(e.escrow),
		Key:           append([]byte(nil), e.key...),
		BuyerSponsor:  dispute.Sponsor{Address: e.buyerSponsor.Address, Deposit: clone(e.buyerSponsor.Deposit)},
		VendorSponsor: dispute.Sponsor{Address: e.vendorSponsor.Address, Deposit: clone(e.vendorSponsor.Deposit)},
		Expected:      e.expected,
		Dispute:       e.dispute,
	}
}
