package exchange

import (
	errorsmod "cosmossdk.io/errors"
	"github.com/holiman/uint256"

	"github.com/optiswap/optiswap/circuit"
	"github.com/optiswap/optiswap/core/types"
	"github.com/optiswap/optiswap/dispute"
)

// State is the state tag of an exchange.
type State uint8

const (
	StateWaitPayment State = iota
	StateWaitKey
	StateWaitSB
	StateWaitSV
	StateWaitDisputeStart
	StateInDispute
	StateEnd
)

func (s State) String() string {
	switch s {
	case StateWaitPayment:
		return "WaitPayment"
	case StateWaitKey:
		return "WaitKey"
	case StateWaitSB:
		return "WaitSB"
	case StateWaitSV:
		return "WaitSV"
	case StateWaitDisputeStart:
		return "WaitDisputeStart"
	case StateInDispute:
		return "InDispute"
	case StateEnd:
		return "End"
	default:
		return "Unknown"
	}
}

// EndReason records how an exchange reached StateEnd.
type EndReason uint8

const (
	EndNone EndReason = iota
	EndCompleted
	EndRefunded
	EndCancelled
	EndDisputeResolved
)

func (r EndReason) String() string {
	switch r {
	case EndCompleted:
		return "Completed"
	case EndRefunded:
		return "Refunded"
	case EndCancelled:
		return "Cancelled"
	case EndDisputeResolved:
		return "DisputeResolved"
	default:
		return "None"
	}
}

// Params are fixed when the exchange is created.
type Params struct {
	Buyer   types.Address
	Vendor  types.Address
	Sponsor types.Address // receives the completion tip; zero pays it to the vendor

	// Optional dispute sponsor reservations. A reserved slot can only be
	// filled by its identity; with a zero bond it counts as filled.
	BuyerDisputeSponsor  types.Address
	VendorDisputeSponsor types.Address

	Price            *uint256.Int
	CompletionTip    *uint256.Int
	DisputeTip       *uint256.Int
	Penalty          *uint256.Int
	TimeoutIncrement uint64

	NumBlocks       uint64
	NumGates        uint64
	Version         uint8
	Commitment      types.Hash // trace commitment
	CircuitRoot     types.Hash // accumulator root over the gate records
	BuyerCommitment types.Hash // optional commitment to the expected digest
}

// Validate checks p for internal consistency.
func (p *Params) Validate() error {
	if p.Buyer.IsZero() || p.Vendor.IsZero() || p.Buyer == p.Vendor {
		return errorsmod.Wrap(types.ErrInvalidParams, "distinct buyer and vendor are required")
	}
	if p.TimeoutIncrement == 0 {
		return errorsmod.Wrap(types.ErrInvalidParams, "timeout increment must be positive")
	}
	if p.Version != circuit.CircuitVersion {
		return errorsmod.Wrapf(types.ErrUnsupportedVersion, "circuit version %d", p.Version)
	}
	if err := circuit.CheckLayout(p.NumBlocks, p.NumGates); err != nil {
		return err
	}
	if p.Commitment.IsZero() || p.CircuitRoot.IsZero() {
		return errorsmod.Wrap(types.ErrInvalidParams, "commitment and circuit root are required")
	}
	if p.BuyerDisputeSponsor == p.Vendor || p.VendorDisputeSponsor == p.Buyer {
		return errorsmod.Wrap(types.ErrInvalidParams, "a party cannot sponsor its counterparty")
	}
	if _, overflow := new(uint256.Int).AddOverflow(amount(p.Price), amount(p.CompletionTip)); overflow {
		return errorsmod.Wrap(types.ErrInvalidParams, "price overflows")
	}
	if _, overflow := new(uint256.Int).AddOverflow(amount(p.DisputeTip), amount(p.Penalty)); overflow {
		return errorsmod.Wrap(types.ErrInvalidParams, "bond overflows")
	}
	return nil
}

// Due returns Price + CompletionTip, the minimum payment.
func (p *Params) Due() *uint256.Int {
	return new(uint256.Int).Add(amount(p.Price), amount(p.CompletionTip))
}

// Bond returns the deposit each dispute sponsor must make.
func (p *Params) Bond() *uint256.Int {
	return new(uint256.Int).Add(amount(p.DisputeTip), amount(p.Penalty))
}

// Opening reveals the digest behind BuyerCommitment.
type Opening struct {
	Digest types.Hash
	Salt   []byte
}

// Result carries the effects of an accepted call.
type Result struct {
	// Transfers are paid out of the exchange's escrow.
	Transfers types.Transfers

	// Dispute is set by StartDispute.
	Dispute *dispute.Dispute
}

// Snapshot is a read-only view of an exchange.
type Snapshot struct {
	Address       types.Address
	Params        Params
	State         State
	EndReason     EndReason
	Deadline      uint64
	Paid          *uint256.Int
	Escrow        *uint256.Int
	Key           []byte
	BuyerSponsor  dispute.Sponsor
	VendorSponsor dispute.Sponsor
	Expected      types.Hash
	Dispute       types.Address
}

func amount(x *uint256.Int) *uint256.Int {
	if x == nil {
		return new(uint256.Int)
	}
	return x
}

func clone(x *uint256.Int) *uint256.Int {
	return new(uint256.Int).Set(amount(x))
}
