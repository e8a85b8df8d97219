package agent

import (
	"bytes"
	"context"
	"math/bits"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/optiswap/optiswap/circuit"
	"github.com/optiswap/optiswap/core/types"
	"github.com/optiswap/optiswap/dispute"
	"github.com/optiswap/optiswap/exchange"
	"github.com/optiswap/optiswap/ledger"
)

const (
	start   = uint64(1_700_000_000)
	timeout = uint64(3600)
)

var (
	goodKey   = bytes.Repeat([]byte{0x42}, 16)
	goodIV    = [16]byte{0: 0xaa, 15: 0x01}
	plaintext = []byte("forty-two bytes of a perfectly fine good.!")
)

type world struct {
	ctx    context.Context
	ledger *ledger.Ledger
	clock  *ledger.ManualClock
	vendor *Vendor
	buyer  *Buyer
	bs     *Party
	vs     *Party
	tipper *Party
	ex     types.Address
}

func newParty(t *testing.T, name string, l *ledger.Ledger, funds uint64) *Party {
	p, err := GenerateParty(name, l)
	require.NoError(t, err)
	if funds > 0 {
		l.Credit(p.Address, uint256.NewInt(funds))
	}
	return p
}

// setup creates an exchange with price 1000 and tip 10, paid exactly and
// with the key released. expected is the digest the buyer commits to.
func setup(t *testing.T, tamper Tamper, expected types.Hash) *world {
	return setupWith(t, func(p *Party) (*Vendor, error) {
		return NewVendor(p, goodKey, goodIV, plaintext, tamper)
	}, expected)
}

func setupWith(t *testing.T, newVendor func(*Party) (*Vendor, error), expected types.Hash) *world {
	clock := ledger.NewManualClock(start)
	l := ledger.New(clock)
	w := &world{ctx: context.Background(), ledger: l, clock: clock}

	vp := newParty(t, "vendor", l, 0)
	bp := newParty(t, "buyer", l, 10_000)
	w.bs = newParty(t, "buyer-sponsor", l, 1_000)
	w.vs = newParty(t, "vendor-sponsor", l, 1_000)
	w.tipper = newParty(t, "sponsor", l, 0)

	var err error
	w.vendor, err = newVendor(vp)
	require.NoError(t, err)
	w.buyer = NewBuyer(bp, expected, []byte("buyer salt"))

	params := w.vendor.Params(bp.Address, w.buyer.Commitment(), Terms{
		Price:            uint256.NewInt(1000),
		CompletionTip:    uint256.NewInt(10),
		DisputeTip:       uint256.NewInt(30),
		Penalty:          uint256.NewInt(20),
		TimeoutIncrement: timeout,
		Sponsor:          w.tipper.Address,
	})
	rcpt, err := vp.Send(w.ctx, types.Address{}, ledger.OpCreateExchange, nil, params)
	require.NoError(t, err)
	w.ex = rcpt.Created

	w.clock.Advance(1)
	_, err = w.buyer.Pay(w.ctx, w.ex, uint256.NewInt(1010))
	require.NoError(t, err)
	w.clock.Advance(1)
	_, err = w.vendor.RevealKey(w.ctx, w.ex)
	require.NoError(t, err)
	return w
}

func (w *world) sponsor(t *testing.T) {
	w.clock.Advance(1)
	_, err := w.bs.Send(w.ctx, w.ex, ledger.OpSponsorBuyer, uint256.NewInt(50), nil)
	require.NoError(t, err)
	w.clock.Advance(1)
	_, err = w.vs.Send(w.ctx, w.ex, ledger.OpSponsorVendor, uint256.NewInt(50), nil)
	require.NoError(t, err)
}

// dispute inspects the vendor's trace, requires a fault and starts the
// dispute.
func (w *world) dispute(t *testing.T) types.Address {
	fault, err := w.buyer.Inspect(w.ex, w.vendor.Records(), w.vendor.Trace())
	require.NoError(t, err)
	require.True(t, fault)
	w.clock.Advance(1)
	rcpt, err := w.buyer.StartDispute(w.ctx, w.ex)
	require.NoError(t, err)
	require.Equal(t, dispute.AddressFor(w.ex), rcpt.Created)
	return rcpt.Created
}

func (w *world) balance(a types.Address) uint64 {
	return w.ledger.Balance(a).Uint64()
}

func (w *world) requireSettled(t *testing.T, d types.Address) exchange.Snapshot {
	snap, ok := w.ledger.Exchange(w.ex)
	require.True(t, ok)
	require.Equal(t, exchange.StateEnd, snap.State)
	require.Zero(t, w.balance(w.ex))
	if !d.IsZero() {
		require.Zero(t, w.balance(d))
	}
	return snap
}

func ceilLog2(n uint64) int { return bits.Len64(n - 1) }

// ---------------------------------------------------------------------------
// Without dispute
// ---------------------------------------------------------------------------

func TestNoDisputeBeforeDeadline(t *testing.T) {
	w := setup(t, nil, types.Hash{})
	snap, _ := w.ledger.Exchange(w.ex)
	require.Equal(t, exchange.StateWaitSB, snap.State)

	_, err := w.vendor.Send(w.ctx, w.ex, ledger.OpExchangeTimeout, nil, nil)
	require.ErrorIs(t, err, types.ErrDeadlineNotReached)

	w.clock.Set(snap.Deadline + 1)
	_, err = w.vendor.Send(w.ctx, w.ex, ledger.OpExchangeTimeout, nil, nil)
	require.NoError(t, err)

	require.Equal(t, uint64(10_000-1010), w.balance(w.buyer.Address))
	require.Equal(t, uint64(1000), w.balance(w.vendor.Address))
	require.Equal(t, uint64(10), w.balance(w.tipper.Address))
	require.Equal(t, exchange.EndCompleted, w.requireSettled(t, types.Address{}).EndReason)
}

func TestHonestTradeAccepted(t *testing.T) {
	w := setup(t, nil, circuit.Digest(plaintext))
	w.sponsor(t)

	fault, err := w.buyer.Inspect(w.ex, w.vendor.Records(), w.vendor.Trace())
	require.NoError(t, err)
	require.False(t, fault)

	w.clock.Advance(1)
	_, err = w.buyer.Accept(w.ctx, w.ex)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), w.balance(w.vendor.Address))
	require.Equal(t, uint64(1000), w.balance(w.bs.Address))
	require.Equal(t, uint64(1000), w.balance(w.vs.Address))
	w.requireSettled(t, types.Address{})
}

func TestInspectRejectsForeignTrace(t *testing.T) {
	w := setup(t, nil, types.Hash{})
	trace := w.vendor.Trace()
	trace[0] = []byte("swapped")
	_, err := w.buyer.Inspect(w.ex, w.vendor.Records(), trace)
	require.ErrorIs(t, err, types.ErrProofInvalid)
}

// ---------------------------------------------------------------------------
// Disputes
// ---------------------------------------------------------------------------

func TestTamperedTraceBuyerWins(t *testing.T) {
	k := circuit.PlaintextGate(1)
	w := setup(t, TamperGate(k), circuit.Digest(plaintext))
	w.sponsor(t)
	d := w.dispute(t)
	require.Equal(t, k, w.buyer.Target())

	final, err := RunDispute(w.ctx, &Game{Ledger: w.ledger, Clock: w.clock, Vendor: w.vendor, Buyer: w.buyer, Dispute: d})
	require.NoError(t, err)
	require.Equal(t, dispute.OutcomeBuyerWins, final.Outcome)
	require.Equal(t, dispute.ReasonAdjudicated, final.Reason)
	require.Equal(t, k, final.Index)
	require.LessOrEqual(t, final.Rounds, ceilLog2(final.NumGates))
	require.Equal(t, dispute.StandingWrong, final.VendorStanding)
	require.Equal(t, dispute.StandingCorrect, final.BuyerStanding)

	require.Equal(t, uint64(10_000), w.balance(w.buyer.Address))
	require.Equal(t, uint64(1050), w.balance(w.bs.Address))
	require.Equal(t, uint64(950), w.balance(w.vs.Address))
	require.Zero(t, w.balance(w.vendor.Address))
	require.Equal(t, exchange.EndDisputeResolved, w.requireSettled(t, d).EndReason)
}

func TestWrongGoodCaughtByDigest(t *testing.T) {
	w := setup(t, nil, circuit.Digest([]byte("the good that was advertised")))
	w.sponsor(t)
	d := w.dispute(t)
	require.Equal(t, circuit.NumGates(circuit.NumBlocks(len(plaintext)))-1, w.buyer.Target())

	final, err := RunDispute(w.ctx, &Game{Ledger: w.ledger, Clock: w.clock, Vendor: w.vendor, Buyer: w.buyer, Dispute: d})
	require.NoError(t, err)
	require.Equal(t, dispute.OutcomeBuyerWins, final.Outcome)
	require.Equal(t, uint64(10_000), w.balance(w.buyer.Address))
	w.requireSettled(t, d)
}

func TestWrongGoodCaughtByAdvertisedDigest(t *testing.T) {
	advertised := circuit.Digest([]byte("the good that was advertised"))
	w := setupWith(t, func(p *Party) (*Vendor, error) {
		return NewVendorAdvertising(p, goodKey, goodIV, plaintext, advertised, nil)
	}, types.Hash{})
	require.Equal(t, advertised, w.vendor.Offer().Digest)
	require.True(t, w.buyer.Commitment().IsZero())
	w.sponsor(t)
	d := w.dispute(t)
	require.Equal(t, circuit.NumGates(circuit.NumBlocks(len(plaintext)))-1, w.buyer.Target())

	final, err := RunDispute(w.ctx, &Game{Ledger: w.ledger, Clock: w.clock, Vendor: w.vendor, Buyer: w.buyer, Dispute: d})
	require.NoError(t, err)
	require.Equal(t, dispute.OutcomeBuyerWins, final.Outcome)
	require.Equal(t, dispute.ReasonAdjudicated, final.Reason)
	require.Equal(t, uint64(10_000), w.balance(w.buyer.Address))
	require.Equal(t, uint64(1050), w.balance(w.bs.Address))
	w.requireSettled(t, d)
}

func TestSilentVendorForfeits(t *testing.T) {
	w := setup(t, TamperGate(circuit.ChainGate(0)), types.Hash{})
	w.sponsor(t)
	d := w.dispute(t)

	final, err := RunDispute(w.ctx, &Game{Ledger: w.ledger, Clock: w.clock, Vendor: w.vendor, Buyer: w.buyer, Dispute: d, Silent: dispute.SideVendor})
	require.NoError(t, err)
	require.Equal(t, dispute.OutcomeBuyerWins, final.Outcome)
	require.Equal(t, dispute.ReasonClaimTimeout, final.Reason)
	require.Equal(t, uint64(1050), w.balance(w.bs.Address))
	w.requireSettled(t, d)
}

func TestSilentBuyerForfeits(t *testing.T) {
	w := setup(t, TamperGate(circuit.ChainGate(0)), types.Hash{})
	w.sponsor(t)
	d := w.dispute(t)

	final, err := RunDispute(w.ctx, &Game{Ledger: w.ledger, Clock: w.clock, Vendor: w.vendor, Buyer: w.buyer, Dispute: d, Silent: dispute.SideBuyer})
	require.NoError(t, err)
	require.Equal(t, dispute.OutcomeVendorWins, final.Outcome, "a missed round forfeits regardless of the trace")
	require.Equal(t, dispute.ReasonResponseTimeout, final.Reason)
	require.Equal(t, uint64(1050), w.balance(w.vs.Address))
	require.Equal(t, uint64(1000), w.balance(w.vendor.Address))
	require.Equal(t, uint64(10), w.balance(w.tipper.Address))
	w.requireSettled(t, d)
}

func TestNoFinalSubmissionsUnresolved(t *testing.T) {
	w := setup(t, TamperGate(circuit.PlaintextGate(2)), types.Hash{})
	w.sponsor(t)
	d := w.dispute(t)

	final, err := RunDispute(w.ctx, &Game{Ledger: w.ledger, Clock: w.clock, Vendor: w.vendor, Buyer: w.buyer, Dispute: d, SkipFinal: true})
	require.NoError(t, err)
	require.Equal(t, dispute.OutcomeUnresolved, final.Outcome)
	require.Equal(t, dispute.ReasonFinalTimeout, final.Reason)
	require.Equal(t, uint64(1000), w.balance(w.bs.Address))
	require.Equal(t, uint64(1000), w.balance(w.vs.Address))
	require.Equal(t, uint64(10_000), w.balance(w.buyer.Address), "unresolved refunds the buyer")
	w.requireSettled(t, d)
}

func TestRunDisputeCanceled(t *testing.T) {
	w := setup(t, TamperGate(circuit.PlaintextGate(0)), types.Hash{})
	w.sponsor(t)
	d := w.dispute(t)

	ctx, cancel := context.WithCancel(w.ctx)
	cancel()
	_, err := RunDispute(ctx, &Game{Ledger: w.ledger, Clock: w.clock, Vendor: w.vendor, Buyer: w.buyer, Dispute: d})
	require.ErrorIs(t, err, context.Canceled)
}
