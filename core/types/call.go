package types

import "github.com/holiman/uint256"

// Call is the context of one authorized state transition: who signed it,
// the ledger time at which it executes, and the value attached to it.
type Call struct {
	Signer Address
	Time   uint64
	Value  *uint256.Int
}

// Amount returns the attached value, treating nil as zero.
func (c Call) Amount() *uint256.Int {
	if c.Value == nil {
		return new(uint256.Int)
	}
	return c.Value
}

// Transfer is a payout from a machine's escrow to an account.
type Transfer struct {
	To     Address
	Amount *uint256.Int
}

// Transfers is an ordered list of payouts produced by a transition.
type Transfers []Transfer

// Add appends a payout, skipping zero amounts.
func (ts *Transfers) Add(to Address, amount *uint256.Int) {
	if amount == nil || amount.IsZero() {
		return
	}
	*ts = append(*ts, Transfer{To: to, Amount: new(uint256.Int).Set(amount)})
}

// Total sums all payouts.
func (ts Transfers) Total() *uint256.Int {
	sum := new(uint256.Int)
	for _, t := range ts {
		sum.Add(sum, t.Amount)
	}
	return sum
}
