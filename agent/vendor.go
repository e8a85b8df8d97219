package agent

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	"github.com/holiman/uint256"

	"github.com/optiswap/optiswap/circuit"
	"github.com/optiswap/optiswap/core/types"
	"github.com/optiswap/optiswap/dispute"
	"github.com/optiswap/optiswap/exchange"
	"github.com/optiswap/optiswap/ledger"
)

// Offer is what the vendor publishes before a trade: the encrypted good and
// the commitments that bind the decryption circuit and its trace.
type Offer struct {
	Ciphertext  []byte
	IV          [circuit.AESBlockSize]byte
	Digest      types.Hash
	NumBlocks   uint64
	NumGates    uint64
	Commitment  types.Hash
	CircuitRoot types.Hash
}

// Vendor sells one good and answers disputes from its committed trace.
type Vendor struct {
	*Party

	key      []byte
	offer    Offer
	evidence *dispute.Evidence
}

// Tamper alters a trace before it is committed.
type Tamper func(trace [][]byte)

// TamperGate returns a Tamper flipping the first byte of gate k's value.
func TamperGate(k uint64) Tamper {
	return func(trace [][]byte) {
		if k < uint64(len(trace)) && len(trace[k]) > 0 {
			v := append([]byte(nil), trace[k]...)
			v[0] ^= 0xff
			trace[k] = v
		}
	}
}

// NewVendor encrypts plaintext under key, composes the decryption circuit and
// commits to its trace, applying tamper first when it is non-nil.
func NewVendor(p *Party, key []byte, iv [circuit.AESBlockSize]byte, plaintext []byte, tamper Tamper) (*Vendor, error) {
	return NewVendorAdvertising(p, key, iv, plaintext, circuit.Digest(plaintext), tamper)
}

// NewVendorAdvertising is NewVendor with the circuit's digest gate and the
// offer advertising digest, which need not be the digest of plaintext.
func NewVendorAdvertising(p *Party, key []byte, iv [circuit.AESBlockSize]byte, plaintext []byte, digest types.Hash, tamper Tamper) (*Vendor, error) {
	ct, err := circuit.EncryptCTR(key, iv, plaintext)
	if err != nil {
		return nil, err
	}
	gates, err := circuit.ComposeDecryption(ct, iv, digest)
	if err != nil {
		return nil, err
	}
	recs, err := circuit.EncodeAll(gates)
	if err != nil {
		return nil, err
	}
	trace, err := circuit.NewEvaluator(key).EvaluateTrace(recs)
	if err != nil {
		return nil, err
	}
	if tamper != nil {
		tamper(trace)
	}
	ev, err := dispute.NewEvidence(recs, trace)
	if err != nil {
		return nil, err
	}
	n := circuit.NumBlocks(len(plaintext))
	return &Vendor{
		Party: p,
		key:   append([]byte(nil), key...),
		offer: Offer{
			Ciphertext:  ct,
			IV:          iv,
			Digest:      digest,
			NumBlocks:   n,
			NumGates:    circuit.NumGates(n),
			Commitment:  ev.Tree.Root(),
			CircuitRoot: ev.Circuit.Root(),
		},
		evidence: ev,
	}, nil
}

// Offer returns the published offer.
func (v *Vendor) Offer() Offer { return v.offer }

// Records returns the gate records of the decryption circuit.
func (v *Vendor) Records() []circuit.Record {
	return append([]circuit.Record(nil), v.evidence.Records...)
}

// Trace returns a copy of the committed trace, handed to the buyer off-chain.
func (v *Vendor) Trace() [][]byte {
	out := make([][]byte, len(v.evidence.Trace))
	for i, b := range v.evidence.Trace {
		out[i] = append([]byte(nil), b...)
	}
	return out
}

// Terms are the commercial terms of an exchange.
type Terms struct {
	Price            *uint256.Int
	CompletionTip    *uint256.Int
	DisputeTip       *uint256.Int
	Penalty          *uint256.Int
	TimeoutIncrement uint64
	Sponsor          types.Address
}

// Params fills exchange parameters for a trade with buyer.
func (v *Vendor) Params(buyer types.Address, buyerCommitment types.Hash, t Terms) exchange.Params {
	return exchange.Params{
		Buyer:            buyer,
		Vendor:           v.Address,
		Sponsor:          t.Sponsor,
		Price:            t.Price,
		CompletionTip:    t.CompletionTip,
		DisputeTip:       t.DisputeTip,
		Penalty:          t.Penalty,
		TimeoutIncrement: t.TimeoutIncrement,
		NumBlocks:        v.offer.NumBlocks,
		NumGates:         v.offer.NumGates,
		Version:          circuit.CircuitVersion,
		Commitment:       v.offer.Commitment,
		CircuitRoot:      v.offer.CircuitRoot,
		BuyerCommitment:  buyerCommitment,
	}
}

// RevealKey releases the key on exchange ex.
func (v *Vendor) RevealKey(ctx context.Context, ex types.Address) (*ledger.Receipt, error) {
	return v.Send(ctx, ex, ledger.OpRevealKey, nil, ledger.RevealKeyPayload{Key: v.key})
}

// Claim answers the midpoint of dispute d.
func (v *Vendor) Claim(ctx context.Context, d types.Address, mid uint64) (*ledger.Receipt, error) {
	o, err := v.evidence.Opening(mid)
	if err != nil {
		return nil, err
	}
	return v.Send(ctx, d, ledger.OpClaim, nil, ledger.ClaimPayload{Value: o.Value, Proof: o.Proof})
}

// SubmitGate submits the committed value of gate k as the vendor's output.
func (v *Vendor) SubmitGate(ctx context.Context, d types.Address, k uint64) (*ledger.Receipt, error) {
	if k >= uint64(len(v.evidence.Trace)) {
		return nil, errorsmod.Wrapf(types.ErrInvalidParams, "gate %d", k)
	}
	sub, err := v.evidence.Submission(k, circuit.CircuitVersion, v.evidence.Trace[k], true)
	if err != nil {
		return nil, err
	}
	return v.Send(ctx, d, ledger.OpSubmitGate, nil, sub)
}
