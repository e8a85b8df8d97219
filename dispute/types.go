package dispute

import (
	"github.com/holiman/uint256"

	"github.com/optiswap/optiswap/accumulator"
	"github.com/optiswap/optiswap/auth"
	"github.com/optiswap/optiswap/circuit"
	"github.com/optiswap/optiswap/core/types"
)

// Phase is the state tag of a dispute.
type Phase uint8

const (
	PhaseClaim Phase = iota
	PhaseResponse
	PhaseFinal
	PhaseEnd
)

func (p Phase) String() string {
	switch p {
	case PhaseClaim:
		return "Claim"
	case PhaseResponse:
		return "Response"
	case PhaseFinal:
		return "Final"
	case PhaseEnd:
		return "End"
	default:
		return "Unknown"
	}
}

// Outcome is the result of a finished dispute.
type Outcome uint8

const (
	OutcomeNone Outcome = iota
	OutcomeVendorWins
	OutcomeBuyerWins
	OutcomeUnresolved
)

func (o Outcome) String() string {
	switch o {
	case OutcomeVendorWins:
		return "VendorWins"
	case OutcomeBuyerWins:
		return "BuyerWins"
	case OutcomeUnresolved:
		return "Unresolved"
	default:
		return "None"
	}
}

// Reason records why a dispute ended.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonProofInvalid
	ReasonClaimTimeout
	ReasonResponseTimeout
	ReasonAdjudicated
	ReasonFinalTimeout
)

func (r Reason) String() string {
	switch r {
	case ReasonProofInvalid:
		return "ProofInvalid"
	case ReasonClaimTimeout:
		return "ClaimTimeout"
	case ReasonResponseTimeout:
		return "ResponseTimeout"
	case ReasonAdjudicated:
		return "Adjudicated"
	case ReasonFinalTimeout:
		return "FinalTimeout"
	default:
		return "None"
	}
}

// Side identifies the two camps of a dispute.
type Side uint8

const (
	SideNone Side = iota
	SideBuyer
	SideVendor
)

func (s Side) String() string {
	switch s {
	case SideBuyer:
		return "buyer"
	case SideVendor:
		return "vendor"
	default:
		return "none"
	}
}

// Standing grades one final-gate submission.
type Standing uint8

const (
	StandingAbsent Standing = iota
	StandingInvalid
	StandingWrong
	StandingCorrect
)

func (s Standing) String() string {
	switch s {
	case StandingInvalid:
		return "Invalid"
	case StandingWrong:
		return "Wrong"
	case StandingCorrect:
		return "Correct"
	default:
		return "Absent"
	}
}

// Opening reveals one committed trace value.
type Opening struct {
	Index uint64
	Value []byte
	Proof accumulator.Proof
}

// Submission is one side's evidence for the single disputed gate.
type Submission struct {
	// Record is the gate record at the disputed index, opened against the
	// circuit root by GateProof.
	Record    circuit.Record
	GateProof accumulator.Proof

	// Operands open the gate's operand values against the trace commitment,
	// in operand order.
	Operands []Opening

	// Output is the value the submitter asserts the gate produces.
	Output []byte

	// OutputProof opens Output against the trace commitment. Required from
	// the vendor, whose output is the committed one.
	OutputProof accumulator.Proof

	// Digest opens the digest gate against the trace commitment. When the
	// buyer revealed no digest, the vendor's Output at the last gate must
	// equal its value.
	Digest Opening
}

// Sponsor is a dispute sponsor and the bond it deposited.
type Sponsor struct {
	Address types.Address
	Deposit *uint256.Int
}

// Terms are the exchange parameters a dispute inherits.
type Terms struct {
	CircuitRoot      types.Hash
	Expected         types.Hash
	Key              []byte
	Version          uint8
	DisputeTip       *uint256.Int
	Penalty          *uint256.Int
	TimeoutIncrement uint64
	// Policy is the exchange's live policy. Delegations registered or
	// revoked on the exchange apply to the dispute's moves.
	Policy *auth.Policy
}

// Bond returns DisputeTip + Penalty.
func (t Terms) Bond() *uint256.Int {
	return new(uint256.Int).Add(amount(t.DisputeTip), amount(t.Penalty))
}

// Verdict is reported to the exchange when the dispute ends.
type Verdict struct {
	Outcome Outcome
	Reason  Reason
	Rounds  int
}

// Result carries the effects of an accepted call.
type Result struct {
	// Transfers are paid out of the dispute's escrow.
	Transfers types.Transfers

	// Verdict is set when the call ended the dispute.
	Verdict *Verdict
}

// Snapshot is a read-only view of a dispute.
type Snapshot struct {
	Address         types.Address
	Exchange        types.Address
	NumBlocks       uint64
	NumGates        uint64
	Commitment      types.Hash
	CircuitRoot     types.Hash
	Expected        types.Hash
	BuyerSponsor    Sponsor
	VendorSponsor   Sponsor
	Phase           Phase
	Lo              uint64
	Hi              uint64
	Mid             uint64
	ClaimedValue    []byte
	LastMover       Side
	Rounds          int
	Deadline        uint64
	Index           uint64
	BuyerStanding   Standing
	VendorStanding  Standing
	BuyerSubmitted  bool
	VendorSubmitted bool
	Outcome         Outcome
	Reason          Reason
	Funding         *uint256.Int
}

func amount(x *uint256.Int) *uint256.Int {
	if x == nil {
		return new(uint256.Int)
	}
	return x
}
