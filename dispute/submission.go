package dispute

import (
	"bytes"

	errorsmod "cosmossdk.io/errors"

	"github.com/optiswap/optiswap/accumulator"
	"github.com/optiswap/optiswap/circuit"
	"github.com/optiswap/optiswap/core/types"
)

// Evidence is what a party holds off-chain to take part in a dispute: the
// agreed circuit and a copy of the committed trace.
type Evidence struct {
	Records []circuit.Record
	Circuit *accumulator.Tree
	Trace   [][]byte
	Tree    *accumulator.Tree
}

// NewEvidence builds both accumulator trees.
func NewEvidence(recs []circuit.Record, trace [][]byte) (*Evidence, error) {
	if len(recs) != len(trace) {
		return nil, errorsmod.Wrapf(types.ErrInvalidParams, "%d records for %d trace values", len(recs), len(trace))
	}
	ct, err := accumulator.Build(circuit.RecordValues(recs))
	if err != nil {
		return nil, err
	}
	tt, err := accumulator.Build(trace)
	if err != nil {
		return nil, err
	}
	return &Evidence{Records: recs, Circuit: ct, Trace: trace, Tree: tt}, nil
}

// Opening opens trace value i.
func (e *Evidence) Opening(i uint64) (Opening, error) {
	if i >= uint64(len(e.Trace)) {
		return Opening{}, errorsmod.Wrapf(types.ErrInvalidParams, "index %d outside a trace of %d", i, len(e.Trace))
	}
	proof, err := e.Tree.Prove(i)
	if err != nil {
		return Opening{}, err
	}
	return Opening{Index: i, Value: e.Trace[i], Proof: proof}, nil
}

// Submission assembles the final-gate evidence for gate k with the given
// output. proveOutput attaches an opening of the output, and at the last
// gate an opening of the digest gate, which the vendor side must provide.
func (e *Evidence) Submission(k uint64, version uint8, output []byte, proveOutput bool) (Submission, error) {
	if k >= uint64(len(e.Records)) {
		return Submission{}, errorsmod.Wrapf(types.ErrInvalidParams, "gate %d outside a circuit of %d", k, len(e.Records))
	}
	rec := e.Records[k]
	gateProof, err := e.Circuit.Prove(k)
	if err != nil {
		return Submission{}, err
	}
	g, err := circuit.Decode(rec, version)
	if err != nil {
		return Submission{}, err
	}
	sub := Submission{Record: rec, GateProof: gateProof, Output: output}
	for _, op := range g.Operands {
		o, err := e.Opening(op)
		if err != nil {
			return Submission{}, err
		}
		sub.Operands = append(sub.Operands, o)
	}
	if proveOutput {
		if sub.OutputProof, err = e.Tree.Prove(k); err != nil {
			return Submission{}, err
		}
		if k == uint64(len(e.Records)-1) {
			if sub.Digest, err = e.Opening(circuit.DigestGate); err != nil {
				return Submission{}, err
			}
		}
	}
	return sub, nil
}

// FirstFault returns the first gate whose committed output differs from a
// re-execution over the committed operands, or, when the trace is locally
// consistent throughout, the last gate if its value differs from expected.
// A zero expected falls back to the digest the circuit itself advertises at
// the digest gate. ok is false when the trace gives no grounds for a
// dispute.
func (e *Evidence) FirstFault(ev *circuit.Evaluator, expected types.Hash) (k uint64, ok bool) {
	for i, rec := range e.Records {
		g, err := circuit.Decode(rec, ev.Version)
		if err != nil {
			return uint64(i), true
		}
		out, err := ev.EvaluateAt(uint64(i), g, e.Trace)
		if err != nil || !bytes.Equal(out, e.Trace[i]) {
			return uint64(i), true
		}
	}
	last := uint64(len(e.Trace) - 1)
	want := expected[:]
	if expected.IsZero() {
		want = e.Trace[circuit.DigestGate]
	}
	if !bytes.Equal(e.Trace[last], want) {
		return last, true
	}
	return 0, false
}
