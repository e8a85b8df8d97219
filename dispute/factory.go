package dispute

import (
	errorsmod "cosmossdk.io/errors"
	"github.com/holiman/uint256"

	"github.com/optiswap/optiswap/auth"
	"github.com/optiswap/optiswap/circuit"
	"github.com/optiswap/optiswap/core/types"
	"github.com/optiswap/optiswap/crypto"
	"github.com/optiswap/optiswap/log"
)

// ExchangeView is what the factory reads from the exchange a dispute is
// attached to.
type ExchangeView interface {
	Address() types.Address
	Commitment() types.Hash
	DisputeTerms() Terms
}

// Factory constructs disputes after validating their parameters against the
// exchange.
type Factory struct {
	Log *log.Logger
}

// NewFactory returns a factory logging through the default logger.
func NewFactory() *Factory {
	return &Factory{Log: log.Default().Module("dispute")}
}

// AddressFor returns the address the dispute of exchange is created at.
// An exchange spawns at most one dispute, so the creation nonce is fixed.
func AddressFor(exchange types.Address) types.Address {
	return crypto.CreateAddress(exchange, 0)
}

// Create validates the constructor parameters and returns a dispute in its
// first phase with deadline now + TimeoutIncrement.
func (f *Factory) Create(
	ex ExchangeView,
	numBlocks, numGates uint64,
	commitment types.Hash,
	buyerSponsor, vendorSponsor Sponsor,
	funding *uint256.Int,
	now uint64,
) (*Dispute, error) {
	if err := circuit.CheckLayout(numBlocks, numGates); err != nil {
		return nil, err
	}
	if commitment != ex.Commitment() {
		return nil, errorsmod.Wrapf(types.ErrInvalidParams, "commitment %s does not match exchange %s", commitment, ex.Commitment())
	}
	terms := ex.DisputeTerms()
	if terms.Policy == nil {
		return nil, errorsmod.Wrap(types.ErrInvalidParams, "exchange has no authorization policy")
	}
	if buyerSponsor.Address.IsZero() || vendorSponsor.Address.IsZero() {
		return nil, errorsmod.Wrap(types.ErrInvalidParams, "both dispute sponsors are required")
	}
	if buyerSponsor.Address == vendorSponsor.Address ||
		terms.Policy.Holds(buyerSponsor.Address, now, auth.RoleVendor) ||
		terms.Policy.Holds(vendorSponsor.Address, now, auth.RoleBuyer) {
		return nil, errorsmod.Wrap(types.ErrInvalidParams, "a sponsor cannot back both sides")
	}

	bond := terms.Bond()
	minFunding := new(uint256.Int).Mul(bond, uint256.NewInt(2))
	funding = amount(funding)
	if funding.Lt(minFunding) {
		return nil, errorsmod.Wrapf(types.ErrInsufficientFunds, "funding %s below %s", funding, minFunding)
	}
	if amount(buyerSponsor.Deposit).Lt(bond) || amount(vendorSponsor.Deposit).Lt(bond) {
		return nil, errorsmod.Wrapf(types.ErrInsufficientFunds, "each sponsor must deposit %s", bond)
	}
	deposits := new(uint256.Int).Add(amount(buyerSponsor.Deposit), amount(vendorSponsor.Deposit))
	if !deposits.Eq(funding) {
		return nil, errorsmod.Wrapf(types.ErrInvalidParams, "deposits %s do not add up to funding %s", deposits, funding)
	}

	logger := f.Log
	if logger == nil {
		logger = log.Default().Module("dispute")
	}
	addr := AddressFor(ex.Address())
	d := &Dispute{
		address:       addr,
		exchange:      ex.Address(),
		numBlocks:     numBlocks,
		numGates:      numGates,
		commitment:    commitment,
		terms:         terms,
		policy:        terms.Policy,
		buyerSponsor:  copySponsor(buyerSponsor),
		vendorSponsor: copySponsor(vendorSponsor),
		funding:       new(uint256.Int).Set(funding),
		phase:         PhaseClaim,
		lo:            0,
		hi:            numGates,
		deadline:      now + terms.TimeoutIncrement,
		log:           logger.With("dispute", addr.Hex()),
	}
	if numGates == 1 {
		d.phase = PhaseFinal
	}
	d.log.Info("dispute created", "exchange", ex.Address().Hex(), "gates", numGates, "funding", funding.Dec())
	return d, nil
}
