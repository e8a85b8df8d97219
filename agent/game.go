package agent

import (
	"context"

	errorsmod "cosmossdk.io/errors"

	"github.com/optiswap/optiswap/core/types"
	"github.com/optiswap/optiswap/dispute"
	"github.com/optiswap/optiswap/ledger"
)

// Game drives one dispute on a ledger with a manual clock.
type Game struct {
	Ledger  *ledger.Ledger
	Clock   *ledger.ManualClock
	Vendor  *Vendor
	Buyer   *Buyer
	Dispute types.Address

	// Silent makes one side stop answering; its counterparty then claims
	// the timeout.
	Silent dispute.Side

	// SkipFinal makes both sides withhold their final-gate submissions.
	SkipFinal bool

	// Step is the time that passes between two moves.
	Step uint64
}

// maxMoves bounds the driver loop; a dispute ends in far fewer moves.
const maxMoves = 4 * 64

// RunDispute plays g to the end and returns the final dispute state.
func RunDispute(ctx context.Context, g *Game) (dispute.Snapshot, error) {
	step := g.Step
	if step == 0 {
		step = 1
	}
	for range maxMoves {
		if err := ctx.Err(); err != nil {
			return dispute.Snapshot{}, err
		}
		snap, ok := g.Ledger.Dispute(g.Dispute)
		if !ok {
			return dispute.Snapshot{}, errorsmod.Wrapf(types.ErrUnknownTarget, "no dispute at %s", g.Dispute)
		}
		if snap.Phase == dispute.PhaseEnd {
			return snap, nil
		}
		g.Clock.Advance(step)

		var err error
		switch snap.Phase {
		case dispute.PhaseClaim:
			if g.Silent == dispute.SideVendor {
				err = g.timeout(ctx, g.Buyer.Party, snap.Deadline)
			} else {
				_, err = g.Vendor.Claim(ctx, g.Dispute, snap.Mid)
			}
		case dispute.PhaseResponse:
			if g.Silent == dispute.SideBuyer {
				err = g.timeout(ctx, g.Vendor.Party, snap.Deadline)
			} else {
				_, err = g.Buyer.Respond(ctx, g.Dispute, snap.Mid)
			}
		case dispute.PhaseFinal:
			err = g.final(ctx, snap)
		}
		if err != nil {
			return dispute.Snapshot{}, err
		}
	}
	return dispute.Snapshot{}, errorsmod.Wrap(types.ErrInvalidState, "dispute did not end")
}

// final submits for every side still due and willing, then claims the
// timeout once nothing more will arrive.
func (g *Game) final(ctx context.Context, snap dispute.Snapshot) error {
	if !g.SkipFinal {
		if !snap.VendorSubmitted && g.Silent != dispute.SideVendor {
			_, err := g.Vendor.SubmitGate(ctx, g.Dispute, snap.Index)
			return err
		}
		if !snap.BuyerSubmitted && g.Silent != dispute.SideBuyer {
			_, err := g.Buyer.SubmitGate(ctx, g.Dispute, snap.Index)
			return err
		}
	}
	claimant := g.Vendor.Party
	if g.Silent == dispute.SideVendor {
		claimant = g.Buyer.Party
	}
	return g.timeout(ctx, claimant, snap.Deadline)
}

func (g *Game) timeout(ctx context.Context, p *Party, deadline uint64) error {
	if now := g.Clock.Now(); now <= deadline {
		g.Clock.Set(deadline + 1)
	}
	_, err := p.Send(ctx, g.Dispute, ledger.OpDisputeTimeout, nil, nil)
	return err
}
