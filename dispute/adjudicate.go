package dispute

import (
	"bytes"

	"github.com/optiswap/optiswap/accumulator"
	"github.com/optiswap/optiswap/circuit"
)

// adjudicate grades both submissions for gate d.lo and ends the dispute.
//
//	vendor Absent, buyer submitted -> BuyerWins
//	buyer Absent, vendor submitted -> VendorWins
//	vendor Correct                 -> VendorWins
//	vendor Wrong                   -> BuyerWins
//	buyer Correct                  -> BuyerWins
//	otherwise                      -> Unresolved
//
// A side that lets the final deadline pass without submitting forfeits to
// one that did submit, however that submission grades.
func (d *Dispute) adjudicate(reason Reason) *Result {
	buyer := d.grade(SideBuyer, d.submissions[0])
	vendor := d.grade(SideVendor, d.submissions[1])
	d.standings = [2]Standing{buyer, vendor}
	d.log.Info("gate adjudicated", "index", d.lo, "buyer", buyer, "vendor", vendor)

	switch {
	case vendor == StandingAbsent && buyer != StandingAbsent:
		return d.end(OutcomeBuyerWins, reason)
	case buyer == StandingAbsent && vendor != StandingAbsent:
		return d.end(OutcomeVendorWins, reason)
	case vendor == StandingCorrect:
		return d.end(OutcomeVendorWins, reason)
	case vendor == StandingWrong:
		return d.end(OutcomeBuyerWins, reason)
	case buyer == StandingCorrect:
		return d.end(OutcomeBuyerWins, reason)
	default:
		return d.end(OutcomeUnresolved, reason)
	}
}

// grade checks a submission's coherence against the circuit root and the
// trace commitment, then compares its output with an independent
// re-execution of the gate.
func (d *Dispute) grade(side Side, sub *Submission) Standing {
	if sub == nil {
		return StandingAbsent
	}
	k := d.lo
	if !accumulator.Verify(d.terms.CircuitRoot, k, sub.Record[:], sub.GateProof) {
		return StandingInvalid
	}
	// The record is the agreed one. If it does not decode, or reads a value
	// at or after its own index, the vendor's circuit is at fault.
	g, err := circuit.Decode(sub.Record, d.terms.Version)
	if err == nil {
		err = g.CheckOrder(k)
	}
	if err != nil {
		return faulted(side)
	}
	if len(sub.Operands) != len(g.Operands) {
		return StandingInvalid
	}
	values := make([][]byte, len(sub.Operands))
	for i, o := range sub.Operands {
		if o.Index != g.Operands[i] || !accumulator.Verify(d.commitment, o.Index, o.Value, o.Proof) {
			return StandingInvalid
		}
		values[i] = o.Value
	}
	if side == SideVendor && !accumulator.Verify(d.commitment, k, sub.Output, sub.OutputProof) {
		return StandingInvalid
	}

	ev := &circuit.Evaluator{Version: d.terms.Version, Key: d.terms.Key}
	want, err := ev.Evaluate(g, values)
	if err != nil {
		// The committed operands do not satisfy the gate's contract, so no
		// committed output can be right.
		return faulted(side)
	}
	if !bytes.Equal(sub.Output, want) {
		return StandingWrong
	}
	if side == SideVendor && k == d.numGates-1 {
		digest, ok := d.digest(sub)
		if !ok {
			return StandingInvalid
		}
		if !bytes.Equal(sub.Output, digest) {
			return StandingWrong
		}
	}
	return StandingCorrect
}

// digest returns the value the last gate must produce: the buyer's revealed
// digest, or else the committed value of the digest gate opened by sub.
func (d *Dispute) digest(sub *Submission) ([]byte, bool) {
	if !d.terms.Expected.IsZero() {
		return d.terms.Expected[:], true
	}
	o := sub.Digest
	if o.Index != circuit.DigestGate || !accumulator.Verify(d.commitment, o.Index, o.Value, o.Proof) {
		return nil, false
	}
	return o.Value, true
}

// faulted grades a side when the gate at issue cannot be re-executed: the
// vendor committed to it and loses, the buyer pointed at it and wins.
func faulted(side Side) Standing {
	if side == SideVendor {
		return StandingWrong
	}
	return StandingCorrect
}
