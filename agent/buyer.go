package agent

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	"github.com/holiman/uint256"

	"github.com/optiswap/optiswap/circuit"
	"github.com/optiswap/optiswap/core/types"
	"github.com/optiswap/optiswap/crypto"
	"github.com/optiswap/optiswap/dispute"
	"github.com/optiswap/optiswap/ledger"
)

// Buyer pays for a good, checks the vendor's trace once the key is out and
// plays the buyer side of a dispute.
type Buyer struct {
	*Party

	expected types.Hash
	salt     []byte

	evaluator *circuit.Evaluator
	evidence  *dispute.Evidence
	target    uint64
	fault     bool
}

// NewBuyer returns a buyer expecting the good to hash to expected. A zero
// expected digest skips the buyer commitment.
func NewBuyer(p *Party, expected types.Hash, salt []byte) *Buyer {
	return &Buyer{Party: p, expected: expected, salt: append([]byte(nil), salt...)}
}

// Commitment returns the commitment to the expected digest, zero when the
// buyer has none.
func (b *Buyer) Commitment() types.Hash {
	if b.expected.IsZero() {
		return types.Hash{}
	}
	return crypto.Commit(b.expected[:], b.salt)
}

// Pay escrows value on exchange ex.
func (b *Buyer) Pay(ctx context.Context, ex types.Address, value *uint256.Int) (*ledger.Receipt, error) {
	return b.Send(ctx, ex, ledger.OpPay, value, nil)
}

// Inspect checks the circuit and trace received from the vendor against the
// exchange commitments and locates the first fault under the released key.
// It reports whether there are grounds for a dispute.
func (b *Buyer) Inspect(ex types.Address, recs []circuit.Record, trace [][]byte) (bool, error) {
	snap, ok := b.Ledger.Exchange(ex)
	if !ok {
		return false, errorsmod.Wrapf(types.ErrUnknownTarget, "no exchange at %s", ex)
	}
	ev, err := dispute.NewEvidence(recs, trace)
	if err != nil {
		return false, err
	}
	if ev.Tree.Root() != snap.Params.Commitment || ev.Circuit.Root() != snap.Params.CircuitRoot {
		return false, errorsmod.Wrap(types.ErrProofInvalid, "received trace does not match the exchange commitments")
	}
	b.evidence = ev
	b.evaluator = &circuit.Evaluator{Version: snap.Params.Version, Key: snap.Key}
	b.target, b.fault = ev.FirstFault(b.evaluator, b.expected)
	if b.fault {
		b.log.Info("fault located", "gate", b.target)
	}
	return b.fault, nil
}

// Target returns the gate the buyer disputes.
func (b *Buyer) Target() uint64 { return b.target }

// Accept completes the exchange.
func (b *Buyer) Accept(ctx context.Context, ex types.Address) (*ledger.Receipt, error) {
	return b.Send(ctx, ex, ledger.OpAccept, nil, nil)
}

// StartDispute opens the dispute, revealing the expected digest when the
// buyer committed to one.
func (b *Buyer) StartDispute(ctx context.Context, ex types.Address) (*ledger.Receipt, error) {
	p := ledger.StartDisputePayload{}
	if !b.expected.IsZero() {
		p = ledger.StartDisputePayload{Open: true, Digest: b.expected, Salt: b.salt}
	}
	return b.Send(ctx, ex, ledger.OpStartDispute, nil, p)
}

// Respond agrees with a midpoint claim below the target and contests the
// rest, steering the bisection onto the target gate.
func (b *Buyer) Respond(ctx context.Context, d types.Address, mid uint64) (*ledger.Receipt, error) {
	return b.Send(ctx, d, ledger.OpRespond, nil, ledger.RespondPayload{Agree: mid < b.target})
}

// SubmitGate submits the re-executed output of gate k over the committed
// operands.
func (b *Buyer) SubmitGate(ctx context.Context, d types.Address, k uint64) (*ledger.Receipt, error) {
	if b.evidence == nil {
		return nil, errorsmod.Wrap(types.ErrInvalidState, "buyer has not inspected a trace")
	}
	if k >= uint64(len(b.evidence.Records)) {
		return nil, errorsmod.Wrapf(types.ErrInvalidParams, "gate %d", k)
	}
	out := b.evidence.Trace[k]
	if g, err := circuit.Decode(b.evidence.Records[k], b.evaluator.Version); err == nil {
		if v, err := b.evaluator.EvaluateAt(k, g, b.evidence.Trace); err == nil {
			out = v
		}
	}
	sub, err := b.evidence.Submission(k, b.evaluator.Version, out, false)
	if err != nil {
		return nil, err
	}
	return b.Send(ctx, d, ledger.OpSubmitGate, nil, sub)
}
