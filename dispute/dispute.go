// Package dispute implements the bisection game that narrows a buyer/vendor
// disagreement over a committed trace to a single gate and adjudicates it by
// re-executing that gate.
//
// The vendor side moves first in every round: it claims the trace value at
// the midpoint of the open interval [lo, hi) and proves it against the
// commitment. The buyer side accepts (the disagreement lies above the
// midpoint) or contests (it lies at or below). Index hi-1 is always the
// disputed one. Once the interval holds a single index k, both sides submit
// the gate record and operand openings for k and the machine re-executes it.
package dispute

import (
	errorsmod "cosmossdk.io/errors"
	"github.com/holiman/uint256"

	"github.com/optiswap/optiswap/accumulator"
	"github.com/optiswap/optiswap/auth"
	"github.com/optiswap/optiswap/core/types"
	"github.com/optiswap/optiswap/log"
)

// Dispute is one bisection game bound to one exchange.
type Dispute struct {
	address  types.Address
	exchange types.Address

	numBlocks  uint64
	numGates   uint64
	commitment types.Hash
	terms      Terms
	policy     *auth.Policy

	buyerSponsor  Sponsor
	vendorSponsor Sponsor
	funding       *uint256.Int

	phase     Phase
	lo, hi    uint64
	claim     []byte
	lastMover Side
	rounds    int
	deadline  uint64

	submissions [2]*Submission
	standings   [2]Standing

	outcome Outcome
	reason  Reason

	log *log.Logger
}

func sideIndex(s Side) int {
	if s == SideVendor {
		return 1
	}
	return 0
}

// Address returns the dispute's ledger address.
func (d *Dispute) Address() types.Address { return d.address }

// Exchange returns the address of the exchange the dispute belongs to.
func (d *Dispute) Exchange() types.Address { return d.exchange }

// Phase returns the current state tag.
func (d *Dispute) Phase() Phase { return d.phase }

// Interval returns the open search interval [lo, hi).
func (d *Dispute) Interval() (lo, hi uint64) { return d.lo, d.hi }

// Mid returns the index the next claim must address.
func (d *Dispute) Mid() uint64 { return d.lo + (d.hi-1-d.lo)/2 }

// Index returns the disputed gate once the dispute reached PhaseFinal.
func (d *Dispute) Index() uint64 { return d.lo }

// Rounds returns the number of completed claim/response rounds.
func (d *Dispute) Rounds() int { return d.rounds }

// Deadline returns the absolute time after which Timeout may be claimed.
func (d *Dispute) Deadline() uint64 { return d.deadline }

// Outcome returns the result, OutcomeNone while the dispute is running.
func (d *Dispute) Outcome() Outcome { return d.outcome }

// Claimed returns the value claimed at Mid during PhaseResponse.
func (d *Dispute) Claimed() []byte { return append([]byte(nil), d.claim...) }

// side resolves the camp the signer acts for.
func (d *Dispute) side(signer types.Address, now uint64) (Side, error) {
	if signer.IsZero() {
		return SideNone, errorsmod.Wrap(types.ErrUnauthorized, "unsigned call")
	}
	if signer == d.buyerSponsor.Address || d.policy.Holds(signer, now, auth.RoleBuyer) {
		return SideBuyer, nil
	}
	if signer == d.vendorSponsor.Address || d.policy.Holds(signer, now, auth.RoleVendor) {
		return SideVendor, nil
	}
	return SideNone, errorsmod.Wrapf(types.ErrUnauthorized, "%s is not a dispute participant", signer)
}

func (d *Dispute) requireSide(call types.Call, want Side) error {
	s, err := d.side(call.Signer, call.Time)
	if err != nil {
		return err
	}
	if s != want {
		return errorsmod.Wrapf(types.ErrUnauthorized, "%s acts for the %s, move belongs to the %s", call.Signer, s, want)
	}
	return nil
}

func (d *Dispute) requirePhase(want Phase) error {
	if d.phase != want {
		return errorsmod.Wrapf(types.ErrInvalidState, "dispute in %s, want %s", d.phase, want)
	}
	return nil
}

func (d *Dispute) requireOpen(now uint64) error {
	if now > d.deadline {
		return errorsmod.Wrapf(types.ErrDeadlineExceeded, "now %d past deadline %d", now, d.deadline)
	}
	return nil
}

func requireNoValue(call types.Call) error {
	if !call.Amount().IsZero() {
		return errorsmod.Wrap(types.ErrInvalidParams, "dispute moves carry no value")
	}
	return nil
}

// Claim records the vendor's asserted trace value at Mid. A claim whose
// proof does not open against the commitment ends the dispute in the
// buyer's favor; that is an accepted transition, not an error.
func (d *Dispute) Claim(call types.Call, value []byte, proof accumulator.Proof) (*Result, error) {
	if err := d.requirePhase(PhaseClaim); err != nil {
		return nil, err
	}
	if err := d.requireSide(call, SideVendor); err != nil {
		return nil, err
	}
	if err := d.requireOpen(call.Time); err != nil {
		return nil, err
	}
	if err := requireNoValue(call); err != nil {
		return nil, err
	}
	mid := d.Mid()
	d.lastMover = SideVendor
	if err := accumulator.VerifyProof(d.commitment, mid, value, proof); err != nil {
		d.log.Info("claim proof rejected", "index", mid, "err", err)
		return d.end(OutcomeBuyerWins, ReasonProofInvalid), nil
	}
	d.claim = append([]byte(nil), value...)
	d.phase = PhaseResponse
	d.deadline = call.Time + d.terms.TimeoutIncrement
	d.log.Debug("claim accepted", "index", mid, "lo", d.lo, "hi", d.hi)
	return &Result{}, nil
}

// Respond narrows the interval: agree moves lo past Mid, contest makes Mid
// the new disputed index.
func (d *Dispute) Respond(call types.Call, agree bool) (*Result, error) {
	if err := d.requirePhase(PhaseResponse); err != nil {
		return nil, err
	}
	if err := d.requireSide(call, SideBuyer); err != nil {
		return nil, err
	}
	if err := d.requireOpen(call.Time); err != nil {
		return nil, err
	}
	if err := requireNoValue(call); err != nil {
		return nil, err
	}
	mid := d.Mid()
	if agree {
		d.lo = mid + 1
	} else {
		d.hi = mid + 1
	}
	d.claim = nil
	d.rounds++
	d.lastMover = SideBuyer
	d.deadline = call.Time + d.terms.TimeoutIncrement
	if d.hi-d.lo == 1 {
		d.phase = PhaseFinal
		d.log.Info("bisection converged", "index", d.lo, "rounds", d.rounds)
	} else {
		d.phase = PhaseClaim
	}
	d.log.Debug("response accepted", "agree", agree, "lo", d.lo, "hi", d.hi)
	return &Result{}, nil
}

// SubmitGate records one side's final-gate evidence. The second submission
// triggers adjudication.
func (d *Dispute) SubmitGate(call types.Call, sub Submission) (*Result, error) {
	if err := d.requirePhase(PhaseFinal); err != nil {
		return nil, err
	}
	s, err := d.side(call.Signer, call.Time)
	if err != nil {
		return nil, err
	}
	if err := d.requireOpen(call.Time); err != nil {
		return nil, err
	}
	if err := requireNoValue(call); err != nil {
		return nil, err
	}
	i := sideIndex(s)
	if d.submissions[i] != nil {
		return nil, errorsmod.Wrapf(types.ErrAlreadySubmitted, "%s already submitted", s)
	}
	cp := sub
	d.submissions[i] = &cp
	d.lastMover = s
	d.log.Debug("gate submitted", "side", s, "index", d.lo)
	if d.submissions[0] != nil && d.submissions[1] != nil {
		return d.adjudicate(ReasonAdjudicated), nil
	}
	return &Result{}, nil
}

// Timeout settles a phase whose deadline passed: a missing claim forfeits
// for the vendor, a missing response for the buyer, and in PhaseFinal the
// gate is adjudicated on whatever was submitted.
func (d *Dispute) Timeout(call types.Call) (*Result, error) {
	if d.phase == PhaseEnd {
		return nil, errorsmod.Wrap(types.ErrInvalidState, "dispute already ended")
	}
	s, err := d.side(call.Signer, call.Time)
	if err != nil {
		return nil, err
	}
	if call.Time <= d.deadline {
		return nil, errorsmod.Wrapf(types.ErrDeadlineNotReached, "now %d, deadline %d", call.Time, d.deadline)
	}
	if err := requireNoValue(call); err != nil {
		return nil, err
	}
	switch d.phase {
	case PhaseClaim:
		if s != SideBuyer {
			return nil, errorsmod.Wrap(types.ErrUnauthorized, "only the buyer side may claim a missed claim")
		}
		return d.end(OutcomeBuyerWins, ReasonClaimTimeout), nil
	case PhaseResponse:
		if s != SideVendor {
			return nil, errorsmod.Wrap(types.ErrUnauthorized, "only the vendor side may claim a missed response")
		}
		return d.end(OutcomeVendorWins, ReasonResponseTimeout), nil
	default:
		return d.adjudicate(ReasonFinalTimeout), nil
	}
}

// end moves the dispute to PhaseEnd and pays out the bonds.
func (d *Dispute) end(outcome Outcome, reason Reason) *Result {
	d.phase = PhaseEnd
	d.outcome = outcome
	d.reason = reason
	d.claim = nil

	var ts types.Transfers
	switch outcome {
	case OutcomeVendorWins:
		ts.Add(d.vendorSponsor.Address, d.funding)
	case OutcomeBuyerWins:
		ts.Add(d.buyerSponsor.Address, d.funding)
	default:
		ts.Add(d.buyerSponsor.Address, amount(d.buyerSponsor.Deposit))
		ts.Add(d.vendorSponsor.Address, amount(d.vendorSponsor.Deposit))
	}
	d.log.Info("dispute ended", "outcome", outcome, "reason", reason, "rounds", d.rounds)
	return &Result{
		Transfers: ts,
		Verdict:   &Verdict{Outcome: outcome, Reason: reason, Rounds: d.rounds},
	}
}

// Snapshot returns a read-only copy of the dispute state.
func (d *Dispute) Snapshot() Snapshot {
	return Snapshot{
		Address:         d.address,
		Exchange:        d.exchange,
		NumBlocks:       d.numBlocks,
		NumGates:        d.numGates,
		Commitment:      d.commitment,
		CircuitRoot:     d.terms.CircuitRoot,
		Expected:        d.terms.Expected,
		BuyerSponsor:    copySponsor(d.buyerSponsor),
		VendorSponsor:   copySponsor(d.vendorSponsor),
		Phase:           d.phase,
		Lo:              d.lo,
		Hi:              d.hi,
		Mid:             d.Mid(),
		ClaimedValue:    d.Claimed(),
		LastMover:       d.lastMover,
		Rounds:          d.rounds,
		Deadline:        d.deadline,
		Index:           d.lo,
		BuyerStanding:   d.standings[0],
		VendorStanding:  d.standings[1],
		BuyerSubmitted:  d.submissions[0] != nil,
		VendorSubmitted: d.submissions[1] != nil,
		Outcome:         d.outcome,
		Reason:          d.reason,
		Funding:         new(uint256.Int).Set(d.funding),
	}
}

func copySponsor(s Sponsor) Sponsor {
	return Sponsor{Address: s.Address, Deposit: new(uint256.Int).Set(amount(s.Deposit))}
}
